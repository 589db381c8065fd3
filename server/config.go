package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server settings, read from the environment
type Config struct {
	Port        string        `env:"PORT" envDefault:"8000"`
	DatabaseURL string        `env:"DATABASE_URL" envDefault:"sqlite://agrisense.db"`
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`

	GoogleClientID    string `env:"GOOGLE_CLIENT_ID"`
	GoogleRedirectURI string `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:8000/api/auth/google/callback"`

	// LoginRateRPS limits credential attempts per client IP
	LoginRateRPS   float64 `env:"LOGIN_RATE_RPS" envDefault:"1"`
	LoginRateBurst int     `env:"LOGIN_RATE_BURST" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile  string `env:"LOG_FILE"`
}

// LoadConfig parses the environment
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse server env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}
