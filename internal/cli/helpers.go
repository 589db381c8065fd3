package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/model"
)

// userError reduces err to the message shown to the user
func userError(err error) error {
	return errors.New(api.Message(err))
}

var typeIcons = map[model.ActivityType]string{
	model.ActivityCrop:       "🌾",
	model.ActivityFertilizer: "🧪",
	model.ActivityDisease:    "🍃",
}

func printActivity(num int, a model.Activity) {
	icon := typeIcons[a.Type]
	if icon == "" {
		icon = "•"
	}

	date := ""
	if !a.CreatedAt.IsZero() {
		date = a.CreatedAt.Local().Format("Jan 2 15:04")
	}

	status := ""
	if a.Status != "" && a.Status != model.StatusCompleted {
		status = " [" + a.Status + "]"
	}

	fmt.Printf("%3d. %s %-40s %s%s\n", num, icon, truncate(a.Title, 40), date, status)
	if summary := a.Summary(); summary != "" {
		fmt.Printf("       %s\n", truncate(summary, 70))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
