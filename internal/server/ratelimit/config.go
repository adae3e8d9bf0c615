package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Endpoint is the rate limit policy for one route. A Path ending in "/"
// matches by prefix, which covers wildcard routes like /api/download/{f}.
type Endpoint struct {
	Path   string
	Method string
	Limit  int // requests per Window
	Window time.Duration
	Burst  int // bucket capacity, defaults to Limit
}

// LoadConfig builds the limiter configuration from environment variables.
func LoadConfig() *Config {
	if !envBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envInt("RATE_LIMIT_DEFAULT_LIMIT", 300),
		DefaultWindow:   envDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		Endpoints:       DefaultEndpoints(),
	}
}

// Config holds the limiter-wide settings.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Endpoints       []Endpoint
}

// DefaultEndpoints returns the per-route policies. Generation endpoints
// spend model quota and Chrome render time, so they sit in the strict
// tier; uploads and downloads are cheaper.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		// Tier 1: LLM fan-out and PDF rendering
		{Path: "/api/generate-full-ebook", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/api/generate-text-content", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		// Tier 2: single LLM call
		{Path: "/api/generate-outline", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/api/generate-viral-content", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 3: filesystem writes
		{Path: "/api/upload-cover", Method: "POST", Limit: 30, Window: time.Minute, Burst: 10},

		// Tier 4: reads - handled by the default limit
		// Health check is unlimited via a special case in the matcher
	}
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
