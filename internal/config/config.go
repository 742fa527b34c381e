package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds the configuration for the application.
type Config struct {
	StorageBackend string `yaml:"storage_backend"`
	DataDir        string `yaml:"data_dir"`
	MaxValueBytes  int    `yaml:"max_value_bytes"`

	HTTPAddr string `yaml:"http_addr"`

	// TheMealDB
	MealDBBaseURL  string        `yaml:"mealdb_base_url"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StorageBackend: BackendBadger,
		DataDir:        "data",
		MaxValueBytes:  5 << 20,
		HTTPAddr:       ":8080",
		MealDBBaseURL:  "https://www.themealdb.com/api/json/v1/1",
		RetryAttempts:  3,
		RetryBaseDelay: time.Second,
		RequestTimeout: 15 * time.Second,
		RateLimit:      5,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// NewFromEnv builds a Config from defaults, an optional YAML file named by
// COOKBOOK_CONFIG and environment variables, in increasing precedence. A .env
// file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("COOKBOOK_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.StorageBackend = getEnv("COOKBOOK_STORAGE", cfg.StorageBackend)
	cfg.DataDir = getEnv("COOKBOOK_DATA_DIR", cfg.DataDir)
	cfg.MaxValueBytes = getIntEnv("COOKBOOK_MAX_VALUE_BYTES", cfg.MaxValueBytes)
	cfg.HTTPAddr = getEnv("COOKBOOK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MealDBBaseURL = getEnv("MEALDB_BASE_URL", cfg.MealDBBaseURL)
	cfg.RetryAttempts = getIntEnv("MEALDB_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryBaseDelay = getDurationEnv("MEALDB_RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.RequestTimeout = getDurationEnv("HTTP_TIMEOUT", cfg.RequestTimeout)
	cfg.RateLimit = getFloatEnv("MEALDB_RATE_LIMIT", cfg.RateLimit)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the values set in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendBadger, BackendSQLite, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.StorageBackend != BackendMemory && c.DataDir == "" {
		return fmt.Errorf("data directory is required for the %s backend", c.StorageBackend)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the application logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
