package tui

import (
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/agrisense/internal/feed"
	"github.com/existflow/agrisense/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(list ...model.Activity) Model {
	f := feed.New(nil, feed.TokenFunc(func() string { return "" }))
	return Model{
		feed:            f,
		activities:      list,
		pollRefreshChan: make(chan struct{}, 1),
		width:           100,
		height:          30,
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Crop Re...", truncate("Crop Recommendation for Pune", 10))
	assert.Equal(t, "🌾🌾...", truncate("🌾🌾🌾🌾🌾🌾", 5))
}

func TestDetailContentCrop(t *testing.T) {
	details, err := json.Marshal(model.CropDetails{
		Nitrogen: 90, Phosphorus: 42, Potassium: 43, PH: 6.5, Rainfall: 202.9, City: "Pune",
		Recommendations: []model.CropScore{{Crop: "rice", Confidence: 0.91}},
	})
	require.NoError(t, err)

	out := detailContent(model.Activity{
		ID: "1", Type: model.ActivityCrop, Title: "Crop Recommendation for Pune",
		Status: model.StatusCompleted, Result: "Recommended crop: rice", Details: details,
	})
	assert.Contains(t, out, "Crop Recommendation for Pune")
	assert.Contains(t, out, "N 90  P 42  K 43  pH 6.5")
	assert.Contains(t, out, "1. rice")
	assert.Contains(t, out, "91.0%")
}

func TestDetailContentDiseaseInfo(t *testing.T) {
	out := detailContent(model.Activity{
		ID: "2", Type: model.ActivityDisease, Title: "Disease Detection Analysis",
		Result:  "Tomato Early Blight",
		Details: json.RawMessage(`"{\"disease_name\":\"Tomato Early Blight\",\"confidence\":0.8,\"disease_info\":\"<b>Cause</b>: fungus<br/>Spray copper\"}"`),
	})
	assert.Contains(t, out, "Disease     Tomato Early Blight")
	assert.Contains(t, out, "Cause: fungus\nSpray copper")
}

func TestCursorMovement(t *testing.T) {
	m := testModel(
		model.Activity{ID: "1", Title: "one"},
		model.Activity{ID: "2", Title: "two"},
	)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Equal(t, ModeDetail, m.mode)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, ModeNormal, m.mode)
}

func TestCheckForNewUsesPoller(t *testing.T) {
	m := testModel(model.Activity{ID: "1", Title: "one"})
	m.poller = feed.NewPoller(m.feed, time.Hour)
	defer m.poller.Stop()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.loading)
	assert.Equal(t, "Checking for new activity...", m.message)
}

func TestPollRefreshSyncsActivities(t *testing.T) {
	m := testModel()
	m.activities = []model.Activity{{ID: "stale"}}

	next, _ := m.Update(pollRefreshMsg{})
	m = next.(Model)
	assert.Empty(t, m.activities)
	assert.Equal(t, "New activity", m.message)
	assert.False(t, m.lastPoll.IsZero())
}

func TestPageErrorShowsMessage(t *testing.T) {
	m := testModel()
	m.loading = true

	next, _ := m.Update(pageLoadedMsg{feed: m.feed, page: 1, err: assert.AnError})
	m = next.(Model)
	assert.False(t, m.loading)
	assert.Contains(t, m.message, "Failed to load activities")
}

func TestStalePageIgnored(t *testing.T) {
	m := testModel()
	m.loading = true

	other := feed.New(nil, feed.TokenFunc(func() string { return "" }))
	next, _ := m.Update(pageLoadedMsg{feed: other, page: 1})
	m = next.(Model)
	assert.True(t, m.loading)
}

func TestViewRendersGreeting(t *testing.T) {
	m := testModel(model.Activity{ID: "1", Type: model.ActivityFertilizer, Title: "Fertilizer Analysis for Wheat", Result: "Add urea<br/>Water well"})
	m.user = &model.User{ID: "u1", Name: "Asha Patil"}

	out := m.View()
	assert.Contains(t, out, "Welcome back, Asha")
	assert.Contains(t, out, "Fertilizer Analysis for Wheat")
	assert.Contains(t, out, "Add urea")
}
