package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses the variable with time.ParseDuration ("200ms", "10s"),
// returning fallback when it is unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvBool parses the variable with strconv.ParseBool, returning fallback
// when it is unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// Console is the console process configuration.
type Console struct {
	Port            string
	LogLevel        string
	LogFormat       string
	TickInterval    time.Duration
	SeekTimeout     time.Duration
	ProbeTimeout    time.Duration
	SettingsBackend string
	SettingsPath    string
	RedisURL        string
	RedisPrefix     string
	DatabaseURL     string
	HistoryKey      string
	SeedSet         string
	StreamURL       string
	// OriginWindowSize is the live playlist window of the built-in origin.
	OriginWindowSize int
	// OriginDemo publishes the demo streams on the built-in origin.
	OriginDemo bool
}

// FromEnv reads the console configuration from the environment.
func FromEnv() Console {
	return Console{
		Port:            GetEnv("PORT", "8080"),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
		TickInterval:    GetEnvDuration("TICK_INTERVAL", 200*time.Millisecond),
		SeekTimeout:     GetEnvDuration("SEEK_TIMEOUT", 10*time.Second),
		ProbeTimeout:    GetEnvDuration("PROBE_TIMEOUT", 5*time.Second),
		SettingsBackend: GetEnv("SETTINGS_BACKEND", "memory"),
		SettingsPath:    GetEnv("SETTINGS_PATH", "data/settings.json"),
		RedisURL:        GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:     GetEnv("REDIS_PREFIX", "playback:"),
		DatabaseURL:     GetEnv("DATABASE_URL", ""),
		HistoryKey:      GetEnv("HISTORY_KEY", "sources_history_data"),
		SeedSet:         GetEnv("SEED_SET", "customui"),
		StreamURL:       GetEnv("STREAM_URL", ""),

		OriginWindowSize: GetEnvInt("SLIDING_WINDOW_SIZE", 6),
		OriginDemo:       GetEnvBool("ORIGIN_DEMO", true),
	}
}
