package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user state directory under $HOME.
const DirName = ".agrisense"

// Config holds client preferences
type Config struct {
	APIURL         string        `yaml:"api_url" env:"AGRI_API_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"AGRI_REQUEST_TIMEOUT"`

	// Activity feed
	PageSize     int           `yaml:"page_size" env:"AGRI_PAGE_SIZE"`         // Activities per dashboard page
	PollLimit    int           `yaml:"poll_limit" env:"AGRI_POLL_LIMIT"`       // Activities fetched per poll
	PollInterval time.Duration `yaml:"poll_interval" env:"AGRI_POLL_INTERVAL"` // Delay between polls

	// Logging configuration
	LogLevel   string `yaml:"log_level" env:"AGRI_LOG_LEVEL"`     // DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" env:"AGRI_LOG_FILE"`       // Path to log file
	LogConsole bool   `yaml:"log_console" env:"AGRI_LOG_CONSOLE"` // Mirror logs to stderr

	dir string
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir := defaultDir()
	logPath := ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "agrisense.log")
	}

	return &Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 30 * time.Second,
		PageSize:       10,
		PollLimit:      5,
		PollInterval:   30 * time.Second,
		LogLevel:       "INFO",
		LogFile:        logPath,
		dir:            dir,
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName)
}

// Load reads ~/.agrisense/config.yaml and applies AGRI_* environment overrides
func Load() (*Config, error) {
	return LoadFrom(defaultDir())
}

// LoadFrom reads config.yaml from dir (defaults if missing) and applies environment overrides
func LoadFrom(dir string) (*Config, error) {
	cfg := DefaultConfig()
	if dir == "" {
		return nil, fmt.Errorf("config: no state directory")
	}
	cfg.dir = dir

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the feed and client cannot work with
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("config: api_url is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("config: page_size must be positive, got %d", c.PageSize)
	}
	if c.PollLimit < 1 {
		return fmt.Errorf("config: poll_limit must be positive, got %d", c.PollLimit)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Dir returns the state directory the config was loaded from
func (c *Config) Dir() string {
	return c.dir
}

// Save writes config to <dir>/config.yaml
func (c *Config) Save() error {
	if c.dir == "" {
		return fmt.Errorf("config: no state directory")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(c.dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
