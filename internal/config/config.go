// Package config loads FoodApp configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	// BackendURL is the base URL of the Manifest backend.
	BackendURL string `yaml:"backend_url" env:"BACKEND_URL"`
	// AppID identifies the application on the backend.
	AppID string `yaml:"app_id" env:"APP_ID"`

	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`

	UserEntity           string `yaml:"user_entity" env:"USER_ENTITY"`
	RestaurantCollection string `yaml:"restaurant_collection" env:"RESTAURANT_COLLECTION"`

	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	SecureCookies bool          `yaml:"secure_cookies" env:"SECURE_COOKIES"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`

	ProbeAttempts int           `yaml:"probe_attempts" env:"PROBE_ATTEMPTS"`
	ProbeBackoff  time.Duration `yaml:"probe_backoff" env:"PROBE_BACKOFF"`
	ProbePath     string        `yaml:"probe_path" env:"PROBE_PATH"`
	// ProbeSchedule is a cron spec for re-running the probe. Empty disables it.
	ProbeSchedule string `yaml:"probe_schedule" env:"PROBE_SCHEDULE"`
	SweepSchedule string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`

	AuthRateLimit int `yaml:"auth_rate_limit" env:"AUTH_RATE_LIMIT"`
	AuthRateBurst int `yaml:"auth_rate_burst" env:"AUTH_RATE_BURST"`
	// CORSAllowedOrigins is semicolon separated in the environment.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                 8080,
		RequestTimeout:       30 * time.Second,
		MaxUploadBytes:       10 << 20,
		LogLevel:             "info",
		UserEntity:           "users",
		RestaurantCollection: "restaurants",
		SessionTTL:           24 * time.Hour,
		ProbeAttempts:        3,
		ProbeBackoff:         time.Second,
		ProbePath:            "/api/health",
		SweepSchedule:        "@every 10m",
		AuthRateLimit:        5,
		AuthRateBurst:        10,
	}
}

// Load reads an optional .env file, then CONFIG_FILE if set, then the
// environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.MergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// MergeEnv overlays environment variables onto cfg. Unset variables keep the
// current value.
func (c *Config) MergeEnv() error {
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	return nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	parsed, err := url.Parse(c.BackendURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL must use http or https")
	}
	if parsed.User != nil {
		return fmt.Errorf("BACKEND_URL must not include user info")
	}
	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("APP_ID is required")
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 bytes")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.ProbeAttempts < 1 {
		return fmt.Errorf("PROBE_ATTEMPTS must be at least 1")
	}
	if c.UserEntity == "" || c.RestaurantCollection == "" {
		return fmt.Errorf("USER_ENTITY and RESTAURANT_COLLECTION must not be empty")
	}
	return nil
}

// AdminURL is the deep link to the backend administration panel.
func (c *Config) AdminURL() string {
	return c.BackendURL + "/admin"
}

// maxBackendCalls is the longest chain of sequential backend calls one
// request makes: sign-up and create with an image each make four.
const maxBackendCalls = 4

// ServerTimeout bounds reading and writing one request. It covers
// maxBackendCalls requests of RequestTimeout each plus body transfer.
func (c *Config) ServerTimeout() time.Duration {
	return maxBackendCalls*c.RequestTimeout + 30*time.Second
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
