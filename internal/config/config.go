// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// validBackends lists the accepted OSTRESS_CLASSIFIER_BACKEND values.
var validBackends = []string{"none", "remote", "openai"}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"OSTRESS_DB_PATH" envDefault:"./data/ostress.db"`
	SessionSecret string `env:"OSTRESS_SESSION_SECRET,required"`
	ServerHost    string `env:"OSTRESS_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"OSTRESS_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"OSTRESS_ENV" envDefault:"development"`
	LogLevel      string `env:"OSTRESS_LOG_LEVEL" envDefault:"info"`

	RequestTimeout time.Duration `env:"OSTRESS_REQUEST_TIMEOUT" envDefault:"30s"`

	// Super-admin credential checked before the account store.
	// An empty password disables it.
	SuperAdminUsername string `env:"OSTRESS_SUPERADMIN_USERNAME" envDefault:"admin"`
	SuperAdminPassword string `env:"OSTRESS_SUPERADMIN_PASSWORD"`

	// Seed admin account created on first start when no admin exists.
	SeedAdminUsername string `env:"OSTRESS_SEED_ADMIN_USERNAME"`
	SeedAdminPassword string `env:"OSTRESS_SEED_ADMIN_PASSWORD"`

	// Face detection
	CascadePath string `env:"OSTRESS_CASCADE_PATH" envDefault:"./data/haarcascade_frontalface_default.xml"`
	MinFaceSize int    `env:"OSTRESS_MIN_FACE_SIZE" envDefault:"30"`

	// Emotion classifier
	ClassifierBackend string        `env:"OSTRESS_CLASSIFIER_BACKEND" envDefault:"none"` // none, remote or openai
	ClassifierURL     string        `env:"OSTRESS_CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"OSTRESS_CLASSIFIER_TIMEOUT" envDefault:"5s"`
	OpenAIAPIKey      string        `env:"OSTRESS_OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OSTRESS_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL     string        `env:"OSTRESS_OPENAI_BASE_URL"`

	// Detection pipeline
	DetectWorkers int `env:"OSTRESS_DETECT_WORKERS" envDefault:"4"`
	JPEGQuality   int `env:"OSTRESS_JPEG_QUALITY" envDefault:"85"`
	CameraDevice  int `env:"OSTRESS_CAMERA_DEVICE" envDefault:"0"` // -1 disables /video_feed

	// Cache configuration
	RedisURL    string `env:"OSTRESS_REDIS_URL"`                          // Optional Redis URL for shared login counters
	CachePrefix string `env:"OSTRESS_CACHE_PREFIX" envDefault:"ostress:"` // Redis key prefix

	// Login protection
	LoginIPRate        float64       `env:"OSTRESS_LOGIN_IP_RATE" envDefault:"0.5"`
	LoginIPBurst       int           `env:"OSTRESS_LOGIN_IP_BURST" envDefault:"5"`
	LoginMaxAttempts   int           `env:"OSTRESS_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginLockout       time.Duration `env:"OSTRESS_LOGIN_LOCKOUT" envDefault:"15m"`
	LoginAttemptWindow time.Duration `env:"OSTRESS_LOGIN_ATTEMPT_WINDOW" envDefault:"15m"`

	// Scheduler
	HealthCheckSchedule string `env:"OSTRESS_HEALTH_CHECK_SCHEDULE" envDefault:"@every 30s"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// SuperAdminEnabled returns true if the super-admin credential is configured.
func (c Config) SuperAdminEnabled() bool {
	return c.SuperAdminUsername != "" && c.SuperAdminPassword != ""
}

// StreamEnabled returns true if a camera device is configured.
func (c Config) StreamEnabled() bool {
	return c.CameraDevice >= 0
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("OSTRESS_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("OSTRESS_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("OSTRESS_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.ClassifierBackend = strings.ToLower(strings.TrimSpace(c.ClassifierBackend))
	if !contains(validBackends, c.ClassifierBackend) {
		return fmt.Errorf("OSTRESS_CLASSIFIER_BACKEND must be one of %s, got %q",
			strings.Join(validBackends, ", "), c.ClassifierBackend)
	}
	if c.ClassifierBackend == "remote" && c.ClassifierURL == "" {
		return fmt.Errorf("OSTRESS_CLASSIFIER_URL is required for the remote classifier")
	}
	if c.ClassifierBackend == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OSTRESS_OPENAI_API_KEY is required for the openai classifier")
	}
	if c.DetectWorkers < 1 {
		return fmt.Errorf("OSTRESS_DETECT_WORKERS must be at least 1, got %d", c.DetectWorkers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("OSTRESS_JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.SeedAdminUsername != "" && c.SeedAdminPassword == "" {
		return fmt.Errorf("OSTRESS_SEED_ADMIN_PASSWORD is required when OSTRESS_SEED_ADMIN_USERNAME is set")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
