package server

import (
	"context"
	"net/http"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the development backend for the advisory client
type Server struct {
	cfg     *Config
	store   *Store
	tokens  *Tokens
	limiter *rateLimiter
	echo    *echo.Echo
}

// New opens the database named by cfg and builds the server
func New(ctx context.Context, cfg *Config) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store), nil
}

// NewWithStore builds the server around an open store
func NewWithStore(cfg *Config, store *Store) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		tokens:  NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		limiter: newRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst),
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger)
	e.Use(metricsMiddleware)
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := e.Group("/api/auth")

	// Credential endpoints (public, rate limited)
	auth.POST("/register", s.handleRegister, s.limiter.middleware)
	auth.POST("/login", s.handleLogin, s.limiter.middleware)
	auth.POST("/google/login", s.handleGoogleLogin)

	// Session endpoints
	auth.GET("/session", s.handleSession, s.authMiddleware)
	auth.DELETE("/session", s.handleLogout, s.authMiddleware)
	auth.GET("/username", s.handleUsername, s.authMiddleware)

	activities := e.Group("/api/activities", s.authMiddleware)
	activities.GET("", s.handleListActivities)
	activities.POST("/create", s.handleCreateActivity)
	activities.GET("/:id", s.handleGetActivity)
	activities.PUT("/:id", s.handleUpdateActivity)
	activities.DELETE("/:id", s.handleDeleteActivity)

	s.echo = e
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.store.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown
func (s *Server) Start(addr string) error {
	logger.Info("Server listening", logger.F("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
