package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// Key-value store. Redis is the default backend; setting DATABASE_URL
	// switches persistence to a Postgres key-value table instead.
	RedisURL     string
	DatabaseURL  string
	StoreTimeout time.Duration
	// S3 / MinIO blob storage for raw feedback images. Disabled when the
	// endpoint is empty.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// In-process promotion schedule. Zero disables the ticker; promotion is
	// then driven only by POST /api/promote (external cron).
	PromoteInterval time.Duration
}

func Load() Config {
	return Config{
		Addr:            getenv("API_ADDR", ":8791"),
		CORSOrigin:      getenv("SKETCHRULE_CORS_ORIGIN", "*"),
		RedisURL:        getenv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		StoreTimeout:    time.Duration(getenvInt("SKETCHRULE_STORE_TIMEOUT_SECONDS", 3)) * time.Second,
		S3Endpoint:      getenv("SKETCHRULE_S3_ENDPOINT", ""),
		S3AccessKey:     getenv("SKETCHRULE_S3_ACCESS_KEY", ""),
		S3SecretKey:     getenv("SKETCHRULE_S3_SECRET_KEY", ""),
		S3Bucket:        getenv("SKETCHRULE_S3_BUCKET", "sketchrule-feedback"),
		S3UseSSL:        getenvInt("SKETCHRULE_S3_USE_SSL", 0) == 1,
		PromoteInterval: time.Duration(getenvInt("SKETCHRULE_PROMOTE_INTERVAL_SECONDS", 0)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
