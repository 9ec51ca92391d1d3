package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the API process needs. Values come from
// TASKFOLD_* environment variables; in dev a .env file is loaded first.
type Config struct {
	Addr    string
	BaseURL string
	PGDSN   string

	SessionCookie string
	CookieSecure  bool
	SessionTTL    time.Duration
	ActivationTTL time.Duration
	ResetTTL      time.Duration

	// Argon2id work factors. Tune here, never at call sites.
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8

	RateLimitBurst     int
	RateLimitPerSecond int
}

func Load() Config {
	if os.Getenv("TASKFOLD_ENV") == "dev" {
		_ = godotenv.Load()
	}

	return Config{
		Addr:    getEnv("TASKFOLD_ADDR", ":8080"),
		BaseURL: getEnv("TASKFOLD_BASE_URL", "http://localhost:8080"),
		PGDSN:   getEnv("TASKFOLD_PG_DSN", ""),

		SessionCookie: getEnv("TASKFOLD_SESSION_COOKIE", "taskfold_session"),
		CookieSecure:  getEnvBool("TASKFOLD_COOKIE_SECURE", true),
		SessionTTL:    getEnvDuration("TASKFOLD_SESSION_TTL", 12*time.Hour),
		ActivationTTL: getEnvDuration("TASKFOLD_ACTIVATION_TTL", 24*time.Hour),
		ResetTTL:      getEnvDuration("TASKFOLD_RESET_TTL", time.Hour),

		Argon2Memory:      uint32(getEnvInt("TASKFOLD_ARGON2_MEMORY_KB", 64*1024)),
		Argon2Iterations:  uint32(getEnvInt("TASKFOLD_ARGON2_ITERATIONS", 2)),
		Argon2Parallelism: uint8(getEnvInt("TASKFOLD_ARGON2_PARALLELISM", 1)),

		RateLimitBurst:     getEnvInt("TASKFOLD_RATE_BURST", 10),
		RateLimitPerSecond: getEnvInt("TASKFOLD_RATE_PER_SECOND", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
			return value
		}
	}
	return defaultValue
}
