package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// handleRegister creates an account. It does not log the user in.
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Invalid request"})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Name, email and password required"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("bcrypt failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Registration failed"})
	}

	id, err := s.store.CreateUser(c.Request().Context(), req.Name, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return c.JSON(http.StatusConflict, map[string]string{"msg": "User already exists"})
		}
		logger.Error("Create user failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Registration failed"})
	}

	logger.Info("User registered", logger.F("userID", id))
	return c.JSON(http.StatusCreated, map[string]string{"msg": "User registered successfully"})
}

// handleLogin exchanges credentials for an access token
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Invalid request"})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"msg": "Email and password required"})
	}

	ctx := c.Request().Context()
	user, err := s.store.UserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("User lookup failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Login failed"})
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		loginAttempts.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Invalid credentials"})
	}

	token, sessionID, expiresAt, err := s.tokens.Issue(user.ID)
	if err == nil {
		err = s.store.CreateSession(ctx, sessionID, user.ID, expiresAt)
	}
	if err != nil {
		logger.Error("Session creation failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Login failed"})
	}

	loginAttempts.WithLabelValues("accepted").Inc()
	logger.Info("User logged in", logger.F("userID", user.ID))
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

// handleSession resolves the bearer token to its user
func (s *Server) handleSession(c echo.Context) error {
	user, err := s.store.UserByID(c.Request().Context(), userID(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"msg": "User not found"})
		}
		logger.Error("Session check failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Session check failed"})
	}
	return c.JSON(http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

// handleUsername returns the display name of the token's owner
func (s *Server) handleUsername(c echo.Context) error {
	user, err := s.store.UserByID(c.Request().Context(), userID(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "msg": "User not found"})
		}
		logger.Error("Username lookup failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"success": false, "msg": "Failed to fetch username"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "name": user.Name})
}

// handleLogout revokes the session behind the bearer token
func (s *Server) handleLogout(c echo.Context) error {
	sessionID, _ := c.Get(ctxSessionID).(string)
	if err := s.store.RevokeSession(c.Request().Context(), sessionID); err != nil {
		logger.Error("Session revoke failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Logout failed"})
	}
	logger.Info("User logged out", logger.F("userID", userID(c)))
	return c.JSON(http.StatusOK, map[string]string{"msg": "Logged out"})
}

const (
	googleAuthURL      = "https://accounts.google.com/o/oauth2/auth"
	defaultFrontendURL = "http://localhost:5173"
	maxOAuthStates     = 100
)

// oauthStates remembers where each pending Google sign-in should return to
type oauthStates struct {
	mu      sync.Mutex
	pending map[string]oauthState
}

type oauthState struct {
	frontendURL string
	created     time.Time
}

var pendingStates = &oauthStates{pending: make(map[string]oauthState)}

func (o *oauthStates) add(state, frontendURL string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending[state] = oauthState{frontendURL: frontendURL, created: time.Now()}
	for len(o.pending) > maxOAuthStates {
		var oldest string
		for k, v := range o.pending {
			if oldest == "" || v.created.Before(o.pending[oldest].created) {
				oldest = k
			}
		}
		delete(o.pending, oldest)
	}
}

type googleLoginRequest struct {
	FrontendURL string `json:"frontend_url"`
}

// handleGoogleLogin returns the provider URL that starts a Google sign-in
func (s *Server) handleGoogleLogin(c echo.Context) error {
	var req googleLoginRequest
	_ = c.Bind(&req)
	if req.FrontendURL == "" {
		req.FrontendURL = defaultFrontendURL
	}

	if s.cfg.GoogleClientID == "" {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"success": false, "error": "Google sign-in is not configured",
		})
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Error("OAuth state generation failed", logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false, "error": "Failed to initiate Google login",
		})
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	pendingStates.add(state, req.FrontendURL)

	q := url.Values{}
	q.Set("client_id", s.cfg.GoogleClientID)
	q.Set("redirect_uri", s.cfg.GoogleRedirectURI)
	q.Set("scope", "openid email profile")
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"auth_url": googleAuthURL + "?" + q.Encode(),
		"state":    state,
	})
}
