package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrisense",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests handled, by route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agrisense",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	activitiesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrisense",
		Subsystem: "activities",
		Name:      "created_total",
		Help:      "Number of activities recorded, by type.",
	}, []string{"type"})

	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrisense",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Password login attempts, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(requestCounter, requestDuration, activitiesCreated, loginAttempts)
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		requestCounter.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
