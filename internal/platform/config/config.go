package config

import (
	"os"
	"strconv"
	"strings"

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
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := GetEnv(key, ""); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := GetEnv(key, ""); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvList splits a comma separated variable, dropping empty items.
// fallback is returned when nothing remains.
func GetEnvList(key string, fallback []string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Config is the process configuration of the watch progress server.
type Config struct {
	Port              string
	LogLevel          string
	LogFormat         string
	StoreDriver       string // "memory" or "sqlite"
	SQLitePath        string
	CompletionPercent int
	NATSURL           string
	AllowedOrigins    []string
}

// FromEnv reads Config from the environment, applying defaults.
func FromEnv() Config {
	return Config{
		Port:              GetEnv("PORT", "8080"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
		StoreDriver:       strings.ToLower(GetEnv("STORE_DRIVER", "memory")),
		SQLitePath:        GetEnv("SQLITE_PATH", "watch-progress.db"),
		CompletionPercent: GetEnvInt("COMPLETION_PERCENT", 100),
		NATSURL:           GetEnv("NATS_URL", ""),
		AllowedOrigins:    GetEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}
