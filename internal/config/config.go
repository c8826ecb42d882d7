package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store driver names accepted in STORE_DRIVER.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
)

// Config holds all agent configuration.
type Config struct {
	ListenAddr string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// BackendURL is the base URL of the NexusEdu exam backend.
	BackendURL     string
	BackendTimeout time.Duration

	// TokenPath is where the student bearer token is cached between runs.
	TokenPath string

	// StoreDriver selects the durable snapshot backend: "sqlite" for a
	// local file, "redis" for diskless lab clients with a shared cache.
	StoreDriver string
	SQLitePath  string
	RedisURL    string

	// LockdownEnterCmd / LockdownExitCmd are optional shell hooks run when
	// the lockdown is acquired or released (kiosk window managers).
	LockdownEnterCmd string
	LockdownExitCmd  string

	// ReconcileInterval controls how often the reconciler probes the
	// backend while a submission is pending delivery.
	ReconcileInterval time.Duration

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation
	// for the local UI. Empty slice means all origins are permitted
	// (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ListenAddr:        getEnv("AGENT_LISTEN_ADDR", "127.0.0.1:7311"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		BackendURL:        getEnv("BACKEND_URL", "http://localhost:8080/api/v1"),
		BackendTimeout:    time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 15)) * time.Second,
		TokenPath:         getEnv("TOKEN_PATH", defaultDataPath("token")),
		StoreDriver:       getEnv("STORE_DRIVER", StoreDriverSQLite),
		SQLitePath:        getEnv("SQLITE_PATH", defaultDataPath("agent.db")),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LockdownEnterCmd:  getEnv("LOCKDOWN_ENTER_CMD", ""),
		LockdownExitCmd:   getEnv("LOCKDOWN_EXIT_CMD", ""),
		ReconcileInterval: time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 10)) * time.Second,
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// defaultDataPath resolves a file name under the agent's data directory,
// honoring XDG_DATA_HOME when set.
func defaultDataPath(name string) string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return name
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "nexusedu-agent", name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
