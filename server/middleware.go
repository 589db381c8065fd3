package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
)

// authMiddleware checks the bearer token and that its session is still open
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Bad Authorization header"})
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Invalid token"})
		}

		if err := s.store.SessionActive(c.Request().Context(), claims.ID, claims.UserID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"msg": "Token has been revoked"})
			}
			logger.Error("Session lookup failed", logger.Err(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"msg": "Session check failed"})
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxSessionID, claims.ID)
		return next(c)
	}
}

func userID(c echo.Context) int64 {
	id, _ := c.Get(ctxUserID).(int64)
	return id
}

// rateLimiter hands out a token bucket per client IP
type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	clients map[string]*rateLimitClient
}

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		ttl:     10 * time.Minute,
		clients: make(map[string]*rateLimitClient),
	}
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.ttl {
			delete(l.clients, k)
		}
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &rateLimitClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}

// middleware rejects clients over their budget with 429
func (l *rateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !l.allow(c.RealIP()) {
			logger.Warn("Rate limit exceeded", logger.F("ip", c.RealIP()), logger.F("uri", c.Request().RequestURI))
			return c.JSON(http.StatusTooManyRequests, map[string]string{"msg": "Too many attempts, try again later"})
		}
		return next(c)
	}
}

// requestLogger logs every request and its outcome
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		logger.Debug("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("remote", c.RealIP()))

		err := next(c)

		res := c.Response()
		logger.Info("HTTP Response",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("duration", time.Since(start).String()),
			logger.F("requestID", res.Header().Get(echo.HeaderXRequestID)))

		return err
	}
}
