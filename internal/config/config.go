// Package config handles loading and validating runtime configuration for the league
// registration API.
//
// Values come from three places, later ones winning:
//  1. Built-in defaults
//  2. An optional YAML file named by CONFIG_FILE, for non-secret settings that are
//     convenient to keep in version control (sweep interval, cache TTL, exchange name)
//  3. Environment variables, optionally loaded from a .env file in development
//
// Secrets (DATABASE_URL, JWT_SECRET, RABBIT_URL, REDIS_PASSWORD) are only ever read from
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// godotenv reads a .env file and loads its key=value pairs into the process environment.
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration values for the application.
type Config struct {
	Port        string `yaml:"port"`      // The TCP port the HTTP server will listen on (e.g., "8080")
	Env         string `yaml:"env"`       // "development", "staging", or "production"
	LogLevel    string `yaml:"log_level"` // zerolog level name: debug, info, warn, error
	DatabaseURL string `yaml:"-"`         // PostgreSQL connection string; environment only

	JWTSecret string `yaml:"-"`          // HS256 signing secret; when empty tokens are parsed unverified (development only)
	JWTIssuer string `yaml:"jwt_issuer"` // Optional expected "iss" claim

	RedisAddr     string        `yaml:"redis_addr"` // Empty disables the availability cache
	RedisPassword string        `yaml:"-"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"availability_cache_ttl"`

	RabbitURL       string `yaml:"-"`                 // Empty sends notifications to the log instead of a broker
	RabbitExchange  string `yaml:"rabbit_exchange"`   // Topic exchange notifications are published to
	NotifyQueueSize int    `yaml:"notify_queue_size"` // Notifications buffered for the publisher before new ones are dropped

	SweepInterval   time.Duration `yaml:"sweep_interval"`   // How often waitlist and overdue sweeps run; 0 disables them
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests on SIGTERM
}

// defaults returns the configuration used when nothing else is set.
func defaults() Config {
	return Config{
		Port:            "8080",
		Env:             "development",
		LogLevel:        "info",
		CacheTTL:        30 * time.Second,
		RabbitExchange:  "league.events",
		NotifyQueueSize: 256,
		SweepInterval:   5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads configuration from defaults, the optional YAML file and the environment.
// A missing .env file is fine (production sets real environment variables); a CONFIG_FILE
// that is named but unreadable is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadFile overlays the YAML file at path onto cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Unset variables leave cfg alone.
func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = getDuration("AVAILABILITY_CACHE_TTL", cfg.CacheTTL)

	cfg.RabbitURL = getEnv("RABBIT_URL", cfg.RabbitURL)
	cfg.RabbitExchange = getEnv("RABBIT_EXCHANGE", cfg.RabbitExchange)
	cfg.NotifyQueueSize = getInt("NOTIFY_QUEUE_SIZE", cfg.NotifyQueueSize)

	cfg.SweepInterval = getDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

// IsProduction reports whether the server runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.NotifyQueueSize < 1 {
		return errors.New("NOTIFY_QUEUE_SIZE must be at least 1")
	}
	if c.CacheTTL < 0 || c.SweepInterval < 0 || c.ShutdownTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}
