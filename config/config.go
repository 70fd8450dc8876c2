// Package config loads server settings from an optional YAML file with
// environment-variable overrides. Environment always wins, so deployments
// can run without any file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	AllowOrigins string        `yaml:"allow_origins"`
	RateLimit    int           `yaml:"rate_limit"`
	RateWindow   time.Duration `yaml:"rate_window"`

	ArchiveAfter    time.Duration `yaml:"archive_after"`
	ArchiveInterval time.Duration `yaml:"archive_interval"`
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		TokenTTL:        24 * time.Hour,
		AllowOrigins:    "*",
		RateLimit:       100,
		RateWindow:      15 * time.Minute,
		ArchiveAfter:    30 * 24 * time.Hour,
		ArchiveInterval: 24 * time.Hour,
	}
}

// Load reads path (skipped when empty or missing) and applies SCRIBE_*
// environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	stringVar(&cfg.Addr, "SCRIBE_ADDR")
	stringVar(&cfg.DatabaseURL, "SCRIBE_DATABASE_URL")
	stringVar(&cfg.LogLevel, "SCRIBE_LOG_LEVEL")
	stringVar(&cfg.JWTSecret, "SCRIBE_JWT_SECRET")
	stringVar(&cfg.AllowOrigins, "SCRIBE_ALLOW_ORIGINS")
	intVar(&cfg.RateLimit, "SCRIBE_RATE_LIMIT")
	durationVar(&cfg.TokenTTL, "SCRIBE_TOKEN_TTL")
	durationVar(&cfg.RateWindow, "SCRIBE_RATE_WINDOW")
	durationVar(&cfg.ArchiveAfter, "SCRIBE_ARCHIVE_AFTER")
	durationVar(&cfg.ArchiveInterval, "SCRIBE_ARCHIVE_INTERVAL")

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("database url is required (SCRIBE_DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("jwt secret is required (SCRIBE_JWT_SECRET)")
	}
	return cfg, nil
}

func stringVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durationVar(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
