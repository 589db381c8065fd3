package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	// maxPage keeps (page-1)*limit well inside the SQL integer range
	maxPage = 1_000_000
)

type createActivityRequest struct {
	Type    string          `json:"activity_type"`
	Title   string          `json:"title"`
	Status  string          `json:"status"`
	Result  string          `json:"result"`
	Details json.RawMessage `json:"details"`
}

type updateActivityRequest struct {
	Status  *string         `json:"status"`
	Result  *string         `json:"result"`
	Details json.RawMessage `json:"details"`
}

// storedDetails turns a details payload into the stored text. A JSON string
// is stored as its content, anything else as the JSON itself.
func storedDetails(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "{}"
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func activityID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// handleListActivities returns one page of the caller's activities
func (s *Server) handleListActivities(c echo.Context) error {
	page, okPage := queryInt(c, "page", 1)
	limit, okLimit := queryInt(c, "limit", defaultPageLimit)
	if !okPage || !okLimit {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "page and limit must be positive integers"})
	}
	limit = min(limit, maxPageLimit)
	if page > maxPage {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "page is out of range"})
	}

	activityType := c.QueryParam("type")
	if activityType != "" && !model.ActivityType(activityType).Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown activity type"})
	}

	list, total, err := s.store.ListActivities(c.Request().Context(), userID(c), activityType, limit, (page-1)*limit)
	if err != nil {
		logger.Error("List activities failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch activities"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"activities": list,
		"pagination": model.Pagination{
			Page:       page,
			Limit:      limit,
			TotalCount: total,
			HasMore:    page*limit < total,
		},
	})
}

// handleCreateActivity records an advisor run
func (s *Server) handleCreateActivity(c echo.Context) error {
	var req createActivityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "activity_type is required"})
	}
	if !model.ActivityType(req.Type).Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown activity type"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	if req.Status == "" {
		req.Status = model.StatusCompleted
	}

	a, err := s.store.CreateActivity(c.Request().Context(), userID(c),
		req.Type, req.Title, req.Status, req.Result, storedDetails(req.Details))
	if err != nil {
		logger.Error("Create activity failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create activity"})
	}

	activitiesCreated.WithLabelValues(a.Type).Inc()
	logger.Info("Activity recorded", logger.F("id", a.ID), logger.F("type", a.Type))
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "activity": a})
}

// handleGetActivity returns one activity
func (s *Server) handleGetActivity(c echo.Context) error {
	id, ok := activityID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Activity not found"})
	}

	a, err := s.store.GetActivity(c.Request().Context(), userID(c), id)
	if err != nil {
		return s.activityError(c, err, "Failed to fetch activity")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "activity": a})
}

// handleUpdateActivity changes the status, result or details of an activity
func (s *Server) handleUpdateActivity(c echo.Context) error {
	id, ok := activityID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Activity not found"})
	}

	var req updateActivityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request"})
	}

	patch := ActivityPatch{Status: req.Status, Result: req.Result}
	if len(bytes.TrimSpace(req.Details)) > 0 && !bytes.Equal(bytes.TrimSpace(req.Details), []byte("null")) {
		details := storedDetails(req.Details)
		patch.Details = &details
	}

	a, err := s.store.UpdateActivity(c.Request().Context(), userID(c), id, patch)
	if err != nil {
		return s.activityError(c, err, "Failed to update activity")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "activity": a})
}

// handleDeleteActivity removes an activity
func (s *Server) handleDeleteActivity(c echo.Context) error {
	id, ok := activityID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Activity not found"})
	}

	if err := s.store.DeleteActivity(c.Request().Context(), userID(c), id); err != nil {
		return s.activityError(c, err, "Failed to delete activity")
	}
	logger.Info("Activity deleted", logger.F("id", id))
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "Activity deleted"})
}

func (s *Server) activityError(c echo.Context, err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Activity not found"})
	}
	logger.Error(msg, logger.Err(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
}
