package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// ActivityType identifies which advisor produced an activity
type ActivityType string

const (
	ActivityCrop       ActivityType = "crop"
	ActivityFertilizer ActivityType = "fertilizer"
	ActivityDisease    ActivityType = "disease"
)

// Valid reports whether t is one of the known activity types
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCrop, ActivityFertilizer, ActivityDisease:
		return true
	}
	return false
}

// Activity statuses written by the client
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Activity is one recorded recommendation or detection run
type Activity struct {
	ID        ID              `json:"id"`
	Type      ActivityType    `json:"activity_type"`
	Title     string          `json:"title"`
	CreatedAt Timestamp       `json:"created_at"`
	Status    string          `json:"status"`
	Result    string          `json:"result"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// ActivityInput is the payload for creating an activity
type ActivityInput struct {
	Type    ActivityType `json:"activity_type"`
	Title   string       `json:"title"`
	Result  string       `json:"result"`
	Details interface{}  `json:"details"`
	Status  string       `json:"status"`
}

// Pagination is the server's page metadata for activity listings
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"total_count"`
	HasMore    bool `json:"has_more"`
}

var (
	breakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag   = regexp.MustCompile(`<[^>]*>`)
)

// PlainResult renders Result without markup, one line per <br/>
func (a Activity) PlainResult() string {
	return PlainText(a.Result)
}

// PlainText strips HTML from s, turning <br/> into newlines
func PlainText(s string) string {
	lines := breakTag.Split(s, -1)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(l, "")))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Summary is the first line of the plain result
func (a Activity) Summary() string {
	plain := a.PlainResult()
	if i := strings.IndexByte(plain, '\n'); i >= 0 {
		return plain[:i]
	}
	return plain
}

// DecodeDetails unmarshals Details into v. Details stored as a JSON-encoded
// string are unwrapped first.
func (a Activity) DecodeDetails(v interface{}) error {
	raw := bytes.TrimSpace(a.Details)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("activity %s details: %w", a.ID, err)
		}
		raw = []byte(s)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("activity %s details: %w", a.ID, err)
	}
	return nil
}

// CropScore is one ranked crop in a recommendation
type CropScore struct {
	Crop       string  `json:"crop"`
	Confidence float64 `json:"confidence"`
}

// CropChoice describes a recommended or alternative crop
type CropChoice struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// CropDetails is the details payload of a crop activity
type CropDetails struct {
	Nitrogen              float64                `json:"nitrogen"`
	Phosphorus            float64                `json:"phosphorus"`
	Potassium             float64                `json:"potassium"`
	PH                    float64                `json:"ph"`
	Rainfall              float64                `json:"rainfall"`
	City                  string                 `json:"city"`
	RecommendedCrop       CropChoice             `json:"recommended_crop"`
	Recommendations       []CropScore            `json:"recommendations"`
	Alternatives          []CropChoice           `json:"alternatives"`
	SoilHealth            string                 `json:"soil_health"`
	SoilHealthDescription string                 `json:"soil_health_description"`
	Conditions            map[string]interface{} `json:"conditions"`
}

// FertilizerDetails is the details payload of a fertilizer activity
type FertilizerDetails struct {
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	SoilType   string  `json:"soil_type"`
	CropName   string  `json:"crop_name"`
}

// DiseaseDetails is the details payload of a disease activity
type DiseaseDetails struct {
	DiseaseName string          `json:"disease_name"`
	Confidence  float64         `json:"confidence"`
	DiseaseInfo json.RawMessage `json:"disease_info,omitempty"`
}

// Timestamp decodes the formats the backend has emitted for created_at
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// ParseTimestamp parses s using the known backend layouts
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("timestamp: unrecognised format %q", s)
}

// UnmarshalJSON accepts a string in any known layout, or null
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalJSON writes RFC 3339
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339))
}
