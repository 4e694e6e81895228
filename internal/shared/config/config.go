// Package config reads process configuration from environment variables
// with sensible defaults, plus a best-effort .env loader for local dev.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for both the tracker client and the stub
// backend.
type Config struct {
	Env string

	// Client.
	APIBaseURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// Stub backend.
	Port            string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	StageDelay      time.Duration
}

// Load reads configuration from the environment.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	return Config{
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8000"),
		PollInterval:    envDuration("POLL_INTERVAL", 5*time.Second),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 15*time.Second),
		UploadTimeout:   envDuration("UPLOAD_TIMEOUT", 5*time.Minute),
		Port:            getEnv("PORT", "8000"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		AccessTokenTTL:  envDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: envDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		StageDelay:      envDuration("STAGE_DELAY", 2*time.Second),
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

// EnvInt reads an integer knob, falling back on parse failure.
func EnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	default:
		return "dev"
	}
}

// loadEnvFiles loads simple KEY=VALUE pairs from the given files if they
// exist. Best-effort for local development; errors are ignored.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			val = strings.Trim(strings.TrimSpace(val), `"`)
			if key != "" && os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
		_ = f.Close()
	}
}
