// Package advisor runs the crop, fertilizer and disease recommendations and
// records each successful run in the user's activity history.
package advisor

import (
	"context"
	"io"
	"strings"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
)

// Backend is the subset of the API client the advisor needs
type Backend interface {
	PredictCrop(ctx context.Context, token string, in api.CropRequest) (*api.CropPrediction, error)
	PredictFertilizer(ctx context.Context, token string, in api.FertilizerRequest) (*api.FertilizerPrediction, error)
	PredictDisease(ctx context.Context, token, filename string, image io.Reader) (*api.DiseasePrediction, error)
	CreateActivity(ctx context.Context, token string, in model.ActivityInput) error
}

// TokenSource supplies the current bearer token
type TokenSource interface {
	Token() string
}

// Advisor submits inputs for prediction
type Advisor struct {
	backend Backend
	tokens  TokenSource
}

// New creates an Advisor
func New(backend Backend, tokens TokenSource) *Advisor {
	return &Advisor{backend: backend, tokens: tokens}
}

// CropInput is the soil and location reading for a crop recommendation
type CropInput struct {
	Nitrogen   int
	Phosphorus int
	Potassium  int
	PH         float64
	Rainfall   float64
	State      string
	City       string
}

// Validate checks every field is present and in range
func (in CropInput) Validate() error {
	if err := validateNPK(in.Nitrogen, in.Phosphorus, in.Potassium); err != nil {
		return err
	}
	if in.PH <= 0 || in.PH > 14 {
		return &api.ValidationError{Field: "ph", Message: "pH must be between 0 and 14"}
	}
	if in.Rainfall < 0 {
		return &api.ValidationError{Field: "rainfall", Message: "rainfall cannot be negative"}
	}
	if strings.TrimSpace(in.State) == "" {
		return &api.ValidationError{Field: "state", Message: "state is required"}
	}
	if strings.TrimSpace(in.City) == "" {
		return &api.ValidationError{Field: "city", Message: "city is required"}
	}
	return nil
}

// FertilizerInput is the NPK reading for a fertilizer recommendation
type FertilizerInput struct {
	Nitrogen   int
	Phosphorus int
	Potassium  int
	CropName   string
	SoilType   string
}

func (in FertilizerInput) Validate() error {
	if err := validateNPK(in.Nitrogen, in.Phosphorus, in.Potassium); err != nil {
		return err
	}
	if strings.TrimSpace(in.CropName) == "" {
		return &api.ValidationError{Field: "cropname", Message: "crop name is required"}
	}
	return nil
}

// DiseaseInput is a plant image to classify
type DiseaseInput struct {
	Filename string
	Image    io.Reader
}

func (in DiseaseInput) Validate() error {
	if in.Image == nil {
		return &api.ValidationError{Field: "file", Message: "Please select an image first"}
	}
	return nil
}

func validateNPK(n, p, k int) error {
	switch {
	case n < 0:
		return &api.ValidationError{Field: "nitrogen", Message: "nitrogen cannot be negative"}
	case p < 0:
		return &api.ValidationError{Field: "phosphorus", Message: "phosphorus cannot be negative"}
	case k < 0:
		return &api.ValidationError{Field: "potassium", Message: "potassium cannot be negative"}
	}
	return nil
}

// CropResult is a crop recommendation and the activity recorded for it
type CropResult struct {
	Prediction *api.CropPrediction
	Activity   model.ActivityInput
	Recorded   bool
}

// FertilizerResult is a fertilizer recommendation and its activity
type FertilizerResult struct {
	Prediction *api.FertilizerPrediction
	Activity   model.ActivityInput
	Recorded   bool
}

// Text is the recommendation without markup
func (r *FertilizerResult) Text() string {
	return model.PlainText(r.Prediction.Recommendation)
}

// DiseaseResult is a disease detection and its activity
type DiseaseResult struct {
	Prediction *api.DiseasePrediction
	Activity   model.ActivityInput
	Recorded   bool
}

// RecommendCrop validates in, asks for a recommendation and records it
func (a *Advisor) RecommendCrop(ctx context.Context, in CropInput) (*CropResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	token := a.tokens.Token()

	pred, err := a.backend.PredictCrop(ctx, token, api.CropRequest{
		Nitrogen:   in.Nitrogen,
		Phosphorus: in.Phosphorus,
		Potassium:  in.Potassium,
		PH:         in.PH,
		Rainfall:   in.Rainfall,
		State:      strings.TrimSpace(in.State),
		City:       strings.TrimSpace(in.City),
	})
	if err != nil {
		return nil, err
	}

	res := &CropResult{Prediction: pred, Activity: CropActivity(in, pred)}
	res.Recorded = a.record(ctx, token, res.Activity)
	return res, nil
}

// RecommendFertilizer validates in, asks for a recommendation and records it
func (a *Advisor) RecommendFertilizer(ctx context.Context, in FertilizerInput) (*FertilizerResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	token := a.tokens.Token()

	pred, err := a.backend.PredictFertilizer(ctx, token, api.FertilizerRequest{
		Nitrogen:   in.Nitrogen,
		Phosphorus: in.Phosphorus,
		Potassium:  in.Potassium,
		CropName:   strings.TrimSpace(in.CropName),
		SoilType:   strings.TrimSpace(in.SoilType),
	})
	if err != nil {
		return nil, err
	}

	res := &FertilizerResult{Prediction: pred, Activity: FertilizerActivity(in, pred.Recommendation)}
	res.Recorded = a.record(ctx, token, res.Activity)
	return res, nil
}

// DetectDisease uploads the image, then records the detection
func (a *Advisor) DetectDisease(ctx context.Context, in DiseaseInput) (*DiseaseResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	filename := in.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	token := a.tokens.Token()

	pred, err := a.backend.PredictDisease(ctx, token, filename, in.Image)
	if err != nil {
		return nil, err
	}

	res := &DiseaseResult{Prediction: pred, Activity: DiseaseActivity(pred)}
	res.Recorded = a.record(ctx, token, res.Activity)
	return res, nil
}

// record saves the activity. A failure here never fails the prediction.
func (a *Advisor) record(ctx context.Context, token string, in model.ActivityInput) bool {
	if err := a.backend.CreateActivity(ctx, token, in); err != nil {
		logger.Warn("Failed to record activity",
			logger.Err(err),
			logger.F("type", string(in.Type)),
			logger.F("title", in.Title))
		return false
	}
	logger.Info("Activity recorded", logger.F("type", string(in.Type)))
	return true
}
