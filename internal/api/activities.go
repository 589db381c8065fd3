package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/existflow/agrisense/internal/model"
)

// ActivityQuery selects one page of the activity history
type ActivityQuery struct {
	Page  int
	Limit int
	Type  model.ActivityType // optional filter
}

// ActivityPage is one page of activities, newest first
type ActivityPage struct {
	Activities []model.Activity `json:"activities"`
	Pagination model.Pagination `json:"pagination"`
}

// ListActivities fetches one page of the user's activities
func (c *Client) ListActivities(ctx context.Context, token string, q ActivityQuery) (*ActivityPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}

	var page ActivityPage
	if err := c.do(ctx, "list activities", request{
		method: http.MethodGet, path: "/api/activities?" + params.Encode(),
		token: token, auth: true,
	}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateActivity records a completed advisor run
func (c *Client) CreateActivity(ctx context.Context, token string, in model.ActivityInput) error {
	if !in.Type.Valid() {
		return &ValidationError{Field: "activity_type", Message: "activity_type and title are required"}
	}
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "activity_type and title are required"}
	}
	if in.Status == "" {
		in.Status = model.StatusCompleted
	}
	if in.Details == nil {
		in.Details = map[string]interface{}{}
	}

	body, err := jsonBody(in)
	if err != nil {
		return err
	}
	return c.do(ctx, "create activity", request{
		method: http.MethodPost, path: "/api/activities/create",
		token: token, auth: true, body: body, contentType: "application/json",
	}, nil)
}

// DeleteActivity removes one activity from the history
func (c *Client) DeleteActivity(ctx context.Context, token string, id model.ID) error {
	return c.do(ctx, "delete activity", request{
		method: http.MethodDelete, path: "/api/activities/" + url.PathEscape(id.String()),
		token: token, auth: true,
	}, nil)
}

// GetActivity fetches a single activity by id
func (c *Client) GetActivity(ctx context.Context, token string, id model.ID) (*model.Activity, error) {
	var out struct {
		Activity model.Activity `json:"activity"`
	}
	if err := c.do(ctx, "get activity", request{
		method: http.MethodGet, path: "/api/activities/" + url.PathEscape(id.String()),
		token: token, auth: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out.Activity, nil
}
