// Package config loads application configuration from the environment and
// exposes it as explicit structs injected into each component.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the service needs at startup. Secrets come from
// the environment; directories default to the working directory.
type Config struct {
	Port          int
	DatabaseURL   string
	GeminiAPIKey  string
	PexelsAPIKey  string
	WebhookSecret string
	AllowedOrigin string
	EbookDir      string
	CoverDir      string
	// Workers bounds the lesson fan-out pool. Zero means "size to host".
	Workers int
}

// Load reads configuration from the environment. Only the Gemini API key
// and database URL are hard requirements; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          envInt("PORT", 5000),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		PexelsAPIKey:  os.Getenv("PEXELS_API_KEY"),
		WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		AllowedOrigin: envString("ALLOWED_ORIGIN", "*"),
		EbookDir:      envString("EBOOK_DIR", "generated_ebooks"),
		CoverDir:      envString("COVER_DIR", "uploaded_covers"),
		Workers:       envInt("CONTENT_WORKERS", 0),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return cfg, nil
}

func envString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
