package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/existflow/agrisense/internal/model"
)

// CropRequest carries soil and location parameters
type CropRequest struct {
	Nitrogen   int     `json:"nitrogen"`
	Phosphorus int     `json:"phosphorus"`
	Potassium  int     `json:"potassium"`
	PH         float64 `json:"ph"`
	Rainfall   float64 `json:"rainfall"`
	State      string  `json:"state"`
	City       string  `json:"city"`
}

// CropConditions is the weather and soil context the model used
type CropConditions struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	SoilHealth  string  `json:"soil_health"`
	Location    string  `json:"location"`
}

// CropPrediction is the crop-predict response
type CropPrediction struct {
	Prediction            string             `json:"prediction"`
	PrimaryRecommendation string             `json:"primary_recommendation"`
	Recommendations       []model.CropScore  `json:"recommendations"`
	Alternatives          []model.CropChoice `json:"alternatives"`
	Conditions            CropConditions     `json:"conditions"`
}

// Primary returns the top recommended crop
func (p *CropPrediction) Primary() string {
	switch {
	case p.PrimaryRecommendation != "":
		return p.PrimaryRecommendation
	case p.Prediction != "":
		return p.Prediction
	case len(p.Recommendations) > 0:
		return p.Recommendations[0].Crop
	}
	return "Unknown"
}

// FertilizerRequest carries NPK readings and the target crop
type FertilizerRequest struct {
	Nitrogen   int    `json:"nitrogen"`
	Phosphorus int    `json:"phosphorus"`
	Potassium  int    `json:"potassium"`
	CropName   string `json:"cropname"`
	SoilType   string `json:"soiltype,omitempty"`
}

// FertilizerPrediction is the fertilizer-predict response
type FertilizerPrediction struct {
	Recommendation string `json:"recommendation"`
}

// DiseasePrediction is the disease-predict response
type DiseasePrediction struct {
	Prediction  string          `json:"prediction"`
	Confidence  float64         `json:"confidence"`
	DiseaseInfo json.RawMessage `json:"disease_info"`
}

// DiseaseInfoText returns disease_info when the backend sent it as text
func (p *DiseasePrediction) DiseaseInfoText() string {
	var s string
	if err := json.Unmarshal(p.DiseaseInfo, &s); err == nil {
		return s
	}
	return ""
}

// PredictCrop asks the ML service for crop recommendations
func (c *Client) PredictCrop(ctx context.Context, token string, in CropRequest) (*CropPrediction, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var out CropPrediction
	if err := c.do(ctx, "crop prediction", request{
		method: http.MethodPost, path: "/api/crop-predict",
		token: token, auth: true, body: body, contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictFertilizer asks the ML service for a fertilizer recommendation
func (c *Client) PredictFertilizer(ctx context.Context, token string, in FertilizerRequest) (*FertilizerPrediction, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var out FertilizerPrediction
	if err := c.do(ctx, "fertilizer prediction", request{
		method: http.MethodPost, path: "/api/fertilizer-predict",
		token: token, auth: true, body: body, contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictDisease uploads a plant image as multipart field "file"
func (c *Client) PredictDisease(ctx context.Context, token, filename string, image io.Reader) (*DiseasePrediction, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out DiseasePrediction
	if err := c.do(ctx, "disease prediction", request{
		method: http.MethodPost, path: "/api/disease-predict",
		token: token, auth: true, body: &buf, contentType: mw.FormDataContentType(),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Weather is the current conditions block of the weather endpoint
type Weather struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Rainfall    string `json:"rainfall"`
	Description string `json:"description"`
	WindSpeed   string `json:"wind_speed"`
}

// ForecastSlot is one forecast entry
type ForecastSlot struct {
	Datetime    string  `json:"datetime"`
	Temp        float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
	Rainfall    float64 `json:"rainfall"`
}

// WeatherReport is the weather endpoint payload
type WeatherReport struct {
	Current  Weather        `json:"current"`
	Forecast []ForecastSlot `json:"forecast"`
}

// Weather fetches conditions at the given coordinates. No token is needed.
func (c *Client) Weather(ctx context.Context, lat, lon float64) (*WeatherReport, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%g", lat))
	params.Set("lon", fmt.Sprintf("%g", lon))

	var out struct {
		Data WeatherReport `json:"data"`
	}
	if err := c.do(ctx, "weather", request{
		method: http.MethodGet, path: "/api/weather?" + params.Encode(),
	}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
