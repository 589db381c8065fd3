package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every request made by the client
const DefaultTimeout = 30 * time.Second

// Client talks to the advisory backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common shape of error and status fields in backend responses
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Msg     string `json:"msg"`
}

func (e envelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Msg
}

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
	auth        bool
}

func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// do sends r and decodes a 2xx body into out. Non-2xx statuses and
// {"success": false} bodies become *ServerError.
func (c *Client) do(ctx context.Context, op string, r request, out interface{}) error {
	if r.auth && r.token == "" {
		return ErrNoToken
	}

	url := c.baseURL + r.path
	req, err := http.NewRequestWithContext(ctx, r.method, url, r.body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	logger.Debug("HTTP Request",
		logger.F("method", r.method),
		logger.F("url", url),
		logger.F("requestID", req.Header.Get("X-Request-ID")))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed", logger.Err(err), logger.F("url", url))
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	logger.Debug("HTTP Response",
		logger.F("status", resp.StatusCode),
		logger.F("url", url))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	var env envelope
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.message()
		if msg == "" {
			msg = fmt.Sprintf("%s failed: %s", op, http.StatusText(resp.StatusCode))
		}
		logger.Warn("Request rejected",
			logger.F("op", op),
			logger.F("status", resp.StatusCode),
			logger.F("message", msg))
		return &ServerError{
			Status:   resp.StatusCode,
			Message:  msg,
			rejected: r.auth && resp.StatusCode == http.StatusUnauthorized,
		}
	}

	if env.Success != nil && !*env.Success {
		msg := env.message()
		if msg == "" {
			msg = op + " failed"
		}
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: invalid response: %w", op, err)
	}
	return nil
}

// Login exchanges email and password for an access token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	err = c.do(ctx, "login", request{
		method: http.MethodPost, path: "/api/auth/login",
		body: body, contentType: "application/json",
	}, &result)
	if err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", &ServerError{Status: http.StatusOK, Message: "Login failed"}
	}
	return result.AccessToken, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body, err := jsonBody(map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return err
	}
	return c.do(ctx, "register", request{
		method: http.MethodPost, path: "/api/auth/register",
		body: body, contentType: "application/json",
	}, nil)
}

// Session resolves token to the user it belongs to
func (c *Client) Session(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	err := c.do(ctx, "session", request{
		method: http.MethodGet, path: "/api/auth/session", token: token, auth: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" && user.Email == "" {
		return nil, &ServerError{Status: http.StatusOK, Message: "session response carried no user"}
	}
	return &user, nil
}

// EndSession asks the backend to terminate the session behind token
func (c *Client) EndSession(ctx context.Context, token string) error {
	return c.do(ctx, "logout", request{
		method: http.MethodDelete, path: "/api/auth/session", token: token, auth: true,
	}, nil)
}

// Username returns the display name of the token's owner
func (c *Client) Username(ctx context.Context, token string) (string, error) {
	var result struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, "username", request{
		method: http.MethodGet, path: "/api/auth/username", token: token, auth: true,
	}, &result); err != nil {
		return "", err
	}
	return result.Name, nil
}

// GoogleLogin starts the OAuth flow. The provider eventually redirects the
// browser to <frontendURL>/auth/callback.
func (c *Client) GoogleLogin(ctx context.Context, frontendURL string) (string, error) {
	body, err := jsonBody(map[string]string{"frontend_url": frontendURL})
	if err != nil {
		return "", err
	}

	var result struct {
		AuthURL string `json:"auth_url"`
	}
	if err := c.do(ctx, "google login", request{
		method: http.MethodPost, path: "/api/auth/google/login",
		body: body, contentType: "application/json",
	}, &result); err != nil {
		return "", err
	}
	if result.AuthURL == "" {
		return "", errors.New("google login: backend returned no auth_url")
	}
	return result.AuthURL, nil
}
