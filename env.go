package authcore

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig is the engine configuration plus the infrastructure settings a
// server binary needs to wire its collaborators.
type EnvConfig struct {
	Config

	Port          string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string
}

// LoadEnv builds an EnvConfig from the process environment, starting from
// the library defaults. A .env file in the working directory is honored when
// present. Only JWT_SECRET is mandatory.
func LoadEnv() (*EnvConfig, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &EnvConfig{
		Config:        DefaultConfig(),
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("missing required environment variable JWT_SECRET")
	}
	cfg.JWT.Secret = []byte(secret)
	cfg.JWT.Algorithm = getEnv("JWT_ALGORITHM", cfg.JWT.Algorithm)

	var err error
	if cfg.JWT.AccessTTL, err = getEnvMinutes("ACCESS_TOKEN_TTL_MIN", cfg.JWT.AccessTTL); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshTTL, err = getEnvMinutes("REFRESH_TOKEN_TTL_MIN", cfg.JWT.RefreshTTL); err != nil {
		return nil, err
	}
	if cfg.Lockout.MaxFailures, err = getEnvInt("MAX_FAILED_ATTEMPTS", cfg.Lockout.MaxFailures); err != nil {
		return nil, err
	}
	if cfg.Lockout.Duration, err = getEnvSeconds("LOCKOUT_DURATION_SEC", cfg.Lockout.Duration); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MaxRequests, err = getEnvInt("MAX_REQUESTS_PER_WINDOW", cfg.RateLimit.MaxRequests); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Window, err = getEnvSeconds("REQUEST_WINDOW_SEC", cfg.RateLimit.Window); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	return parsed, nil
}

func getEnvMinutes(key string, fallback time.Duration) (time.Duration, error) {
	minutes, err := getEnvInt(key, int(fallback/time.Minute))
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnvSeconds(key string, fallback time.Duration) (time.Duration, error) {
	seconds, err := getEnvInt(key, int(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
