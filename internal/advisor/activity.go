package advisor

import (
	"encoding/json"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/model"
)

// CropActivity builds the history entry for a crop recommendation
func CropActivity(in CropInput, p *api.CropPrediction) model.ActivityInput {
	crop := p.Primary()

	var confidence float64
	if len(p.Recommendations) > 0 {
		confidence = p.Recommendations[0].Confidence
	}

	scores := p.Recommendations
	switch {
	case len(scores) > 0:
	case len(p.Alternatives) > 0:
		scores = make([]model.CropScore, len(p.Alternatives))
		for i, alt := range p.Alternatives {
			scores[i] = model.CropScore{Crop: alt.Name, Confidence: alt.Confidence}
		}
	default:
		scores = []model.CropScore{{Crop: crop, Confidence: confidence}}
	}

	alternatives := p.Alternatives
	if alternatives == nil {
		alternatives = []model.CropChoice{}
	}

	soilHealth := p.Conditions.SoilHealth
	if soilHealth == "" {
		soilHealth = "Good"
	}

	city := in.City
	if city == "" {
		city = "Unknown Location"
	}

	return model.ActivityInput{
		Type:   model.ActivityCrop,
		Title:  "Crop Recommendation for " + city,
		Result: "Recommended crop: " + crop,
		Status: model.StatusCompleted,
		Details: model.CropDetails{
			Nitrogen:   float64(in.Nitrogen),
			Phosphorus: float64(in.Phosphorus),
			Potassium:  float64(in.Potassium),
			PH:         in.PH,
			Rainfall:   in.Rainfall,
			City:       in.City,
			RecommendedCrop: model.CropChoice{
				Name:        crop,
				Confidence:  confidence,
				Description: crop + " is suitable for your conditions.",
			},
			Recommendations:       scores,
			Alternatives:          alternatives,
			SoilHealth:            soilHealth,
			SoilHealthDescription: "Soil conditions are suitable for farming.",
			Conditions: map[string]interface{}{
				"temperature": orNA(p.Conditions.Temperature),
				"humidity":    orNA(p.Conditions.Humidity),
				"soil_health": soilHealth,
			},
		},
	}
}

func orNA(v float64) interface{} {
	if v == 0 {
		return "N/A"
	}
	return v
}

// FertilizerActivity builds the history entry for a fertilizer recommendation
func FertilizerActivity(in FertilizerInput, recommendation string) model.ActivityInput {
	crop := in.CropName
	if crop == "" {
		crop = "Unknown Crop"
	}
	if recommendation == "" {
		recommendation = "No recommendation available"
	}
	return model.ActivityInput{
		Type:   model.ActivityFertilizer,
		Title:  "Fertilizer Analysis for " + crop,
		Result: recommendation,
		Status: model.StatusCompleted,
		Details: model.FertilizerDetails{
			Nitrogen:   float64(in.Nitrogen),
			Phosphorus: float64(in.Phosphorus),
			Potassium:  float64(in.Potassium),
			SoilType:   in.SoilType,
			CropName:   in.CropName,
		},
	}
}

// DiseaseActivity builds the history entry for a disease detection
func DiseaseActivity(p *api.DiseasePrediction) model.ActivityInput {
	result := p.Prediction
	if result == "" {
		result = "No prediction available"
	}
	name := p.Prediction
	if name == "" {
		name = "Unknown"
	}
	info := p.DiseaseInfo
	if len(info) == 0 || string(info) == "null" {
		info = json.RawMessage(`{}`)
	}
	return model.ActivityInput{
		Type:   model.ActivityDisease,
		Title:  "Disease Detection Analysis",
		Result: result,
		Status: model.StatusCompleted,
		Details: model.DiseaseDetails{
			DiseaseName: name,
			Confidence:  p.Confidence,
			DiseaseInfo: info,
		},
	}
}
