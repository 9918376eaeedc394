package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	StorageBaseURL string
	StoragePath    string
	GeoIPDBPath    string
	AllowedOrigins []string

	StudioBaseURL string
	StudioAPIKey  string
	StudioModel   string

	// Rate limiting for the generation endpoints. Passed into the core as an
	// explicit ratelimit.Config; the core never reads the environment itself.
	RateLimitBackend  string // "postgres" or "redis"
	RateLimitMax      int
	RateLimitWindow   time.Duration
	RedisURL          string
	CleanupInterval   time.Duration
	ComposeTimeout    time.Duration
	MaxAssetBytes     int64
	MaxConcurrentJobs int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		StudioBaseURL: getEnv("STUDIO_BASE_URL", "https://api.portrait-studio.dev/v1"),
		StudioAPIKey:  os.Getenv("STUDIO_API_KEY"),
		StudioModel:   getEnv("STUDIO_MODEL", "portrait-compose-1"),

		RateLimitBackend:  getEnv("RATE_LIMIT_BACKEND", "postgres"),
		RateLimitMax:      getEnvInt("RATE_LIMIT_MAX_REQUESTS", 3),
		RateLimitWindow:   time.Minute * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 60)),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CleanupInterval:   time.Minute * time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)),
		ComposeTimeout:    time.Second * time.Duration(getEnvInt("COMPOSE_TIMEOUT_SECONDS", 120)),
		MaxAssetBytes:     int64(getEnvInt("MAX_ASSET_BYTES", 8<<20)),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 0),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.RateLimitBackend != "postgres" && cfg.RateLimitBackend != "redis" {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be postgres or redis, got %q", cfg.RateLimitBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
