package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the server configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	LogLevel     string
	QueryTimeout time.Duration

	// Auth
	JWTSecret   string
	JWTAudience string

	// Weather proxy. An empty WeatherAPIURL selects the static provider.
	WeatherAPIURL       string
	WeatherAPIKey       string
	WeatherTimeout      time.Duration
	WeatherRateLimit    float64
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	FaviconService string
}

// CLIConfig is the dashctl configuration; flags override every field.
type CLIConfig struct {
	Server  string
	Token   string
	GuestDB string
}

// LoadDotEnv reads files (default ".env") into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		DatabaseURL:         getEnvRequired("DATABASE_URL"),
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		JWTSecret:           getEnvRequired("JWT_SECRET"),
		JWTAudience:         getEnv("JWT_AUDIENCE", "authenticated"),
		WeatherAPIURL:       getEnv("WEATHER_API_URL", ""),
		WeatherAPIKey:       getEnv("WEATHER_API_KEY", ""),
		WeatherTimeout:      getEnvDuration("WEATHER_TIMEOUT", 5*time.Second),
		WeatherRateLimit:    getEnvFloat("WEATHER_RATE_LIMIT", 5),
		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		FaviconService:      getEnv("FAVICON_SERVICE", ""),
	}
}

func LoadCLI() CLIConfig {
	return CLIConfig{
		Server:  getEnv("DASHBOARD_SERVER", "http://localhost:8080"),
		Token:   getEnv("DASHBOARD_TOKEN", ""),
		GuestDB: getEnv("DASHBOARD_GUEST_DB", "./dashboard-guest.db"),
	}
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid number env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
