package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		DatabaseURL:       "sqlite://:memory:",
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		GoogleClientID:    "client-123",
		GoogleRedirectURI: "http://localhost:8000/api/auth/google/callback",
		LoginRateRPS:      1000,
		LoginRateBurst:    1000,
	}
}

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doReq(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(data)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerAndLogin(t *testing.T, s *Server, email string) string {
	t.Helper()
	rec := doReq(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Asha Patil", "email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doReq(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "asha@example.com", body["email"])
	assert.Equal(t, "Asha Patil", body["name"])
	assert.NotNil(t, body["id"])

	rec = doReq(t, s, http.MethodGet, "/api/auth/username", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asha Patil", decode(t, rec)["name"])
}

func TestRegisterRejectsDuplicateAndMissingFields(t *testing.T) {
	s := newTestServer(t, testConfig())
	registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ASHA@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", decode(t, rec)["msg"])

	rec = doReq(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	s := newTestServer(t, testConfig())
	registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "asha@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec)["msg"])

	rec = doReq(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRequiresValidToken(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doReq(t, s, http.MethodGet, "/api/auth/session", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	other := NewTokens("another-secret", time.Hour)
	forged, _, _, err := other.Issue(1)
	require.NoError(t, err)
	rec := doReq(t, s, http.MethodGet, "/api/auth/session", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredToken(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	s.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rec := doReq(t, s, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", decode(t, rec)["msg"])
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodDelete, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, s, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", decode(t, rec)["msg"])
}

func TestActivitiesPagination(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	for i := 1; i <= 12; i++ {
		typ := model.ActivityCrop
		if i%3 == 0 {
			typ = model.ActivityDisease
		}
		rec := doReq(t, s, http.MethodPost, "/api/activities/create", token, map[string]interface{}{
			"activity_type": typ,
			"title":         fmt.Sprintf("Activity %d", i),
			"result":        "ok",
			"details":       map[string]interface{}{"n": i},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var page api.ActivityPage
	rec := doReq(t, s, http.MethodGet, "/api/activities?page=1&limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Activities, 5)
	assert.Equal(t, "Activity 12", page.Activities[0].Title)
	assert.Equal(t, model.Pagination{Page: 1, Limit: 5, TotalCount: 12, HasMore: true}, page.Pagination)

	rec = doReq(t, s, http.MethodGet, "/api/activities?page=3&limit=5", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Activities, 2)
	assert.False(t, page.Pagination.HasMore)

	rec = doReq(t, s, http.MethodGet, "/api/activities?type=disease", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Activities, 4)
	assert.Equal(t, 4, page.Pagination.TotalCount)
	for _, a := range page.Activities {
		assert.Equal(t, model.ActivityDisease, a.Type)
	}

	rec = doReq(t, s, http.MethodGet, "/api/activities?page=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivitiesPageBounds(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"last allowed page is empty", fmt.Sprintf("page=%d&limit=100", maxPage), http.StatusOK},
		{"past the cap", fmt.Sprintf("page=%d", maxPage+1), http.StatusBadRequest},
		{"offset would overflow", "page=9223372036854775807&limit=100", http.StatusBadRequest},
		{"not a number", "page=99999999999999999999", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doReq(t, s, http.MethodGet, "/api/activities?"+tt.query, token, nil)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestActivitiesArePerUser(t *testing.T) {
	s := newTestServer(t, testConfig())
	asha := registerAndLogin(t, s, "asha@example.com")
	ravi := registerAndLogin(t, s, "ravi@example.com")

	rec := doReq(t, s, http.MethodPost, "/api/activities/create", asha, map[string]interface{}{
		"activity_type": "crop", "title": "Crop Recommendation for Pune",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode(t, rec)["activity"].(map[string]interface{})["id"].(float64))

	rec = doReq(t, s, http.MethodGet, fmt.Sprintf("/api/activities/%d", id), ravi, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doReq(t, s, http.MethodDelete, fmt.Sprintf("/api/activities/%d", id), ravi, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doReq(t, s, http.MethodGet, "/api/activities", ravi, nil)
	assert.Empty(t, decode(t, rec)["activities"])
}

func TestCreateActivityValidation(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"missing type", map[string]interface{}{"title": "x"}, "activity_type is required"},
		{"unknown type", map[string]interface{}{"activity_type": "weather", "title": "x"}, "unknown activity type"},
		{"missing title", map[string]interface{}{"activity_type": "crop"}, "title is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doReq(t, s, http.MethodPost, "/api/activities/create", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec)["error"])
		})
	}
}

func TestActivityDetailsStoredAsJSON(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodPost, "/api/activities/create", token, map[string]interface{}{
		"activity_type": "disease",
		"title":         "Disease Detection Analysis",
		"details":       `{"disease_name":"Tomato Early Blight","confidence":0.8}`,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)["activity"].(map[string]interface{})
	assert.Equal(t, "completed", created["status"])
	assert.Equal(t, "Tomato Early Blight", created["details"].(map[string]interface{})["disease_name"])
}

func TestUpdateAndDeleteActivity(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := registerAndLogin(t, s, "asha@example.com")

	rec := doReq(t, s, http.MethodPost, "/api/activities/create", token, map[string]interface{}{
		"activity_type": "fertilizer", "title": "Fertilizer Analysis for Wheat", "result": "Add urea",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode(t, rec)["activity"].(map[string]interface{})["id"].(float64))
	path := fmt.Sprintf("/api/activities/%d", id)

	rec = doReq(t, s, http.MethodPut, path, token, map[string]interface{}{"status": "failed"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode(t, rec)["activity"].(map[string]interface{})
	assert.Equal(t, "failed", updated["status"])
	assert.Equal(t, "Add urea", updated["result"])

	rec = doReq(t, s, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, s, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doReq(t, s, http.MethodPut, path, token, map[string]interface{}{"status": "failed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleLoginURL(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doReq(t, s, http.MethodPost, "/api/auth/google/login", "", map[string]string{
		"frontend_url": "http://127.0.0.1:43210",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	authURL, _ := decode(t, rec)["auth_url"].(string)
	assert.True(t, strings.HasPrefix(authURL, googleAuthURL+"?"))
	assert.Contains(t, authURL, "client_id=client-123")
	assert.Contains(t, authURL, "response_type=code")

	cfg := testConfig()
	cfg.GoogleClientID = ""
	rec = doReq(t, newTestServer(t, cfg), http.MethodPost, "/api/auth/google/login", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateRPS = 0.001
	cfg.LoginRateBurst = 2
	s := newTestServer(t, cfg)

	creds := map[string]string{"email": "asha@example.com", "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, doReq(t, s, http.MethodPost, "/api/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, doReq(t, s, http.MethodPost, "/api/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, doReq(t, s, http.MethodPost, "/api/auth/login", "", creds).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := doReq(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agrisense_http_requests_total")
}

func TestClientAgainstServer(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	client := api.New(ts.URL)

	require.NoError(t, client.Register(ctx, "Asha Patil", "asha@example.com", "hunter22"))
	token, err := client.Login(ctx, "asha@example.com", "hunter22")
	require.NoError(t, err)

	user, err := client.Session(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.FirstName())

	require.NoError(t, client.CreateActivity(ctx, token, model.ActivityInput{
		Type: model.ActivityCrop, Title: "Crop Recommendation for Pune", Result: "Recommended crop: rice",
	}))
	page, err := client.ListActivities(ctx, token, api.ActivityQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Activities, 1)
	assert.False(t, page.Activities[0].CreatedAt.IsZero())

	got, err := client.GetActivity(ctx, token, page.Activities[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Crop Recommendation for Pune", got.Title)

	require.NoError(t, client.EndSession(ctx, token))
	_, err = client.Session(ctx, token)
	assert.ErrorIs(t, err, api.ErrAuthRejected)

	_, err = client.Login(ctx, "asha@example.com", "wrong")
	assert.Equal(t, "Invalid credentials", api.Message(err))
}
