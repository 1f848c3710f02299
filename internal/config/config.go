package config

import (
	"os"
	"strconv"
)

type Config struct {
	ListenAddr          string
	DataDir             string
	BaseURL             string
	SessionSecret       string
	MaxUploadBytes      int64
	WorkerCount         int
	LogLevel            string
	CleanupIntervalMins int
	RetentionDays       int
	BootstrapAPIKey     string // plaintext key ensured at startup; dev convenience
	JPEGQuality         int
	MatchThreshold      float64
}

func Load() *Config {
	return &Config{
		ListenAddr:          envOr("LISTEN_ADDR", ":8080"),
		DataDir:             envOr("DATA_DIR", "./data"),
		BaseURL:             envOr("BASE_URL", "http://localhost:8080"),
		SessionSecret:       envOr("SESSION_SECRET", "change-me-in-production-32-bytes!"),
		MaxUploadBytes:      envInt64Or("MAX_UPLOAD_BYTES", 512*1024*1024),
		WorkerCount:         envIntOr("WORKER_COUNT", 2),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		CleanupIntervalMins: envIntOr("CLEANUP_INTERVAL_MINS", 60),
		RetentionDays:       envIntOr("RETENTION_DAYS", 30),
		BootstrapAPIKey:     envOr("BOOTSTRAP_API_KEY", ""),
		JPEGQuality:         envIntOr("JPEG_QUALITY", 92),
		MatchThreshold:      envFloatOr("MATCH_THRESHOLD", 0.85),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
