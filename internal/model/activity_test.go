package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityDecodesBackendPayload(t *testing.T) {
	payload := `{
		"id": 42,
		"user_id": 7,
		"activity_type": "fertilizer",
		"title": "Fertilizer Analysis for rice",
		"status": "completed",
		"result": "<b>Nitrogen is high</b><br/>Add manure",
		"details": "{\"crop_name\":\"rice\",\"nitrogen\":90}",
		"created_at": "2025-06-01 09:30:00"
	}`

	var a Activity
	require.NoError(t, json.Unmarshal([]byte(payload), &a))

	assert.Equal(t, ID("42"), a.ID)
	assert.Equal(t, ActivityFertilizer, a.Type)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), a.CreatedAt.Time)
	assert.Equal(t, "Nitrogen is high", a.Summary())
	assert.Equal(t, "Nitrogen is high\nAdd manure", a.PlainResult())

	var d FertilizerDetails
	require.NoError(t, a.DecodeDetails(&d))
	assert.Equal(t, "rice", d.CropName)
	assert.Equal(t, 90.0, d.Nitrogen)
}

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","name":"Asha Rao"}`), &u))
	assert.Equal(t, ID("u1"), u.ID)
	assert.Equal(t, "Asha", u.FirstName())

	require.NoError(t, json.Unmarshal([]byte(`{"id":12}`), &u))
	assert.Equal(t, ID("12"), u.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &u))
}

func TestFirstNameFallback(t *testing.T) {
	var nilUser *User
	assert.Equal(t, "User", nilUser.FirstName())
	assert.Equal(t, "User", (&User{Name: "  "}).FirstName())
}

func TestTimestampRejectsUnknownLayout(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestActivityTypeValid(t *testing.T) {
	assert.True(t, ActivityDisease.Valid())
	assert.False(t, ActivityType("weather").Valid())
}
