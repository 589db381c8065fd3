package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/agrisense/internal/model"
)

// Color palette
var (
	// Activity type colors
	CropColor       = lipgloss.Color("#95E1A3") // Green
	FertilizerColor = lipgloss.Color("#FFB347") // Orange
	DiseaseColor    = lipgloss.Color("#FF6B6B") // Red

	// Status colors
	Completed = lipgloss.Color("#95E1A3")
	Failed    = lipgloss.Color("#FF6B6B")
	Polling   = lipgloss.Color("#FFE66D")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	GreetingStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	ItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	SummaryStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			PaddingLeft(6)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	DetailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	ErrorStyle = lipgloss.NewStyle().Foreground(Failed)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// TypeStyle returns the accent style for an activity type
func TypeStyle(t model.ActivityType) lipgloss.Style {
	switch t {
	case model.ActivityCrop:
		return lipgloss.NewStyle().Foreground(CropColor).Bold(true)
	case model.ActivityFertilizer:
		return lipgloss.NewStyle().Foreground(FertilizerColor).Bold(true)
	case model.ActivityDisease:
		return lipgloss.NewStyle().Foreground(DiseaseColor).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(TextMuted)
}

// TypeIcon returns the badge drawn next to an activity
func TypeIcon(t model.ActivityType) string {
	switch t {
	case model.ActivityCrop:
		return "🌾"
	case model.ActivityFertilizer:
		return "🧪"
	case model.ActivityDisease:
		return "🍃"
	}
	return "• "
}

// FormatStatus renders an activity status
func FormatStatus(status string) string {
	switch status {
	case "", model.StatusCompleted:
		return lipgloss.NewStyle().Foreground(Completed).Render("✓")
	case model.StatusFailed:
		return lipgloss.NewStyle().Foreground(Failed).Render("✗")
	}
	return HelpStyle.Render(status)
}
