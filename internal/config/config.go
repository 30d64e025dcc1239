package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppEnv string

	// Remote API
	APIBase     string
	HTTPTimeout time.Duration

	// Local storage
	DBPath  string
	LogFile string

	// Goals
	StreakDays float64
	RulesFile  string // Optional YAML activity->goal table

	// Observability (optional)
	SentryDSN string
}

// Load reads configuration from the environment, after merging a .env file
// when one exists in the working directory.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	dataDir := defaultDataDir()

	return &Config{
		AppEnv: envString("GREENLOOP_ENV", "production"),

		APIBase:     envString("GREENLOOP_API_BASE", "http://localhost:8080"),
		HTTPTimeout: envDuration("GREENLOOP_HTTP_TIMEOUT", 10*time.Second),

		DBPath:  envString("GREENLOOP_DB_PATH", filepath.Join(dataDir, "greenloop.db")),
		LogFile: envString("GREENLOOP_LOG_FILE", filepath.Join(dataDir, "greenloop.log")),

		StreakDays: envFloat("GREENLOOP_STREAK_DAYS", 7),
		RulesFile:  envString("GREENLOOP_RULES_FILE", ""),

		SentryDSN: envString("GREENLOOP_SENTRY_DSN", ""),
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "greenloop")
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("config invalid number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Offline reports whether no remote API is configured.
func (c *Config) Offline() bool {
	return envBool("GREENLOOP_OFFLINE", false) || c.APIBase == ""
}
