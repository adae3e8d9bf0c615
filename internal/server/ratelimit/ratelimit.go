// Package ratelimit protects the generation endpoints with per-client
// token buckets. LLM and PDF endpoints are expensive; the buckets keep one
// client from monopolizing the model quota.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// bucket is a token bucket. Tokens refill continuously at refillRate per
// second up to capacity.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

func newBucket(capacity int, refillRate float64) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

func (b *bucket) refillLocked(now time.Time) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*b.refillRate)
	b.lastRefill = now
}

// take consumes a token if one is available and reports remaining tokens
// and when the bucket will be full again.
func (b *bucket) take() (allowed bool, remaining int, resetTime time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.refillLocked(now)

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		allowed = true
	}

	remaining = int(b.tokens)
	if b.tokens < b.capacity {
		secondsUntilFull := (b.capacity - b.tokens) / b.refillRate
		resetTime = now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
	} else {
		resetTime = now
	}
	return allowed, remaining, resetTime
}

// Info describes the rate limit state reported back to the client.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages per-client, per-endpoint token buckets.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	config  *Config

	accessMu   sync.RWMutex
	lastAccess map[string]time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
}

// NewLimiter creates a rate limiter. A nil config gets sensible defaults.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    300,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
			Endpoints:       DefaultEndpoints(),
		}
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		config:     config,
		lastAccess: make(map[string]time.Time),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(config.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanupLoop()
	}
	return l
}

// Allow reports whether a request from clientID to the given path and
// method may proceed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ep := matchEndpoint(path, method, l.config.Endpoints)
	if ep == nil {
		ep = &Endpoint{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}
	// Limit <= 0 marks an unlimited endpoint such as the health check.
	if ep.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	key := clientID + ":" + method + ":" + ep.key(path)
	b := l.getBucket(key, ep)

	l.accessMu.Lock()
	l.lastAccess[key] = time.Now()
	l.accessMu.Unlock()

	allowed, remaining, resetTime := b.take()

	var retryAfter time.Duration
	if !allowed {
		retryAfter = max(time.Until(resetTime), 0)
	}
	return allowed, Info{
		Allowed:    allowed,
		Limit:      ep.Limit,
		Remaining:  remaining,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}
}

func (l *Limiter) getBucket(key string, ep *Endpoint) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	capacity := ep.Burst
	if capacity <= 0 {
		capacity = ep.Limit
	}
	b = newBucket(capacity, float64(ep.Limit)/ep.Window.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.buckets[key]; ok {
		return existing
	}
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.removeStale()
		case <-l.cleanupStop:
			return
		}
	}
}

// removeStale drops buckets idle for over an hour.
func (l *Limiter) removeStale() {
	cutoff := time.Now().Add(-1 * time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accessMu.Lock()
	defer l.accessMu.Unlock()

	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	if l.cleanupTicker != nil {
		l.cleanupTicker.Stop()
	}
	if l.cleanupStop != nil {
		close(l.cleanupStop)
	}
}

// matchEndpoint resolves a path and method to its Endpoint. Exact matches
// win over prefix matches. The health check is always unlimited.
func matchEndpoint(path, method string, endpoints []Endpoint) *Endpoint {
	if path == "/health" && method == "GET" {
		return &Endpoint{Limit: 0}
	}

	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Method == method && ep.Path == path {
			return ep
		}
	}
	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Method == method && strings.HasSuffix(ep.Path, "/") && strings.HasPrefix(path, ep.Path) {
			return ep
		}
	}
	return nil
}

// key returns the bucket key component for this endpoint. Prefix endpoints
// share one bucket across all sub-paths so a client cannot reset the limit
// by varying the suffix.
func (ep *Endpoint) key(path string) string {
	if strings.HasSuffix(ep.Path, "/") {
		return ep.Path
	}
	return path
}
