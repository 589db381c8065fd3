package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/existflow/agrisense/internal/model"
)

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max < 4 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// filterLabel names the active type filter
func filterLabel(t model.ActivityType) string {
	if t == "" {
		return "all"
	}
	return string(t)
}

// detailContent renders everything known about an activity for the detail pane
func detailContent(a model.Activity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", TypeIcon(a.Type), a.Title)
	if !a.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "%s\n", a.CreatedAt.Local().Format("Mon Jan 2, 2006 15:04"))
	}
	fmt.Fprintf(&b, "Status: %s\n\n", a.Status)
	b.WriteString(a.PlainResult())
	b.WriteString("\n\n")

	switch a.Type {
	case model.ActivityCrop:
		var d model.CropDetails
		if err := a.DecodeDetails(&d); err != nil {
			break
		}
		fmt.Fprintf(&b, "Soil    N %.0f  P %.0f  K %.0f  pH %.1f\n", d.Nitrogen, d.Phosphorus, d.Potassium, d.PH)
		fmt.Fprintf(&b, "Rain    %.1f mm\n", d.Rainfall)
		if d.City != "" {
			fmt.Fprintf(&b, "City    %s\n", d.City)
		}
		if d.SoilHealth != "" {
			fmt.Fprintf(&b, "Health  %s\n", d.SoilHealth)
		}
		if len(d.Recommendations) > 0 {
			b.WriteString("\nRanked crops\n")
			for i, r := range d.Recommendations {
				fmt.Fprintf(&b, "  %d. %-14s %5.1f%%\n", i+1, r.Crop, r.Confidence*100)
			}
		}
		for _, alt := range d.Alternatives {
			fmt.Fprintf(&b, "  • %s %s\n", alt.Name, alt.Reason)
		}

	case model.ActivityFertilizer:
		var d model.FertilizerDetails
		if err := a.DecodeDetails(&d); err != nil {
			break
		}
		fmt.Fprintf(&b, "Soil    N %.0f  P %.0f  K %.0f\n", d.Nitrogen, d.Phosphorus, d.Potassium)
		fmt.Fprintf(&b, "Crop    %s\n", d.CropName)
		if d.SoilType != "" {
			fmt.Fprintf(&b, "Type    %s\n", d.SoilType)
		}

	case model.ActivityDisease:
		var d model.DiseaseDetails
		if err := a.DecodeDetails(&d); err != nil {
			break
		}
		fmt.Fprintf(&b, "Disease     %s\n", d.DiseaseName)
		if d.Confidence > 0 {
			fmt.Fprintf(&b, "Confidence  %.1f%%\n", d.Confidence*100)
		}
		var info string
		if err := json.Unmarshal(d.DiseaseInfo, &info); err == nil && info != "" {
			b.WriteString("\n" + model.PlainText(info) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// typeCounts tallies the held activities per type
func typeCounts(list []model.Activity) map[model.ActivityType]int {
	counts := make(map[model.ActivityType]int)
	for _, a := range list {
		counts[a.Type]++
	}
	return counts
}
