// Package server provides the HTTP REST API for the course factory.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/startnerve/coursefactory/internal/credits"
	"github.com/startnerve/coursefactory/internal/payments"
	"github.com/startnerve/coursefactory/internal/pipeline"
	"github.com/startnerve/coursefactory/internal/pricing"
	"github.com/startnerve/coursefactory/internal/server/ratelimit"
	"github.com/startnerve/coursefactory/internal/store"
	"github.com/startnerve/coursefactory/internal/viral"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	pipeline      *pipeline.Service
	campaigns     *viral.Generator
	ledger        credits.Ledger
	files         *store.Store
	pricing       *pricing.Catalog
	webhook       *payments.Verifier
	plans         payments.Plans
	rateLimiter   *ratelimit.Limiter
	validate      *validator.Validate
	allowedOrigin string
}

// Config holds server configuration.
type Config struct {
	Port          int
	AllowedOrigin string
}

// Deps are the collaborators the handlers dispatch into.
type Deps struct {
	Pipeline  *pipeline.Service
	Campaigns *viral.Generator
	Ledger    credits.Ledger
	Files     *store.Store
	Pricing   *pricing.Catalog
	Webhook   *payments.Verifier
	Plans     payments.Plans
}

// DefaultPlans maps purchasable plan ids to the credits they grant.
func DefaultPlans() payments.Plans {
	return payments.Plans{
		"creator": {credits.EngineEbook: 10, credits.EngineScript: 30},
	}
}

// New creates a new server instance.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		pipeline:      deps.Pipeline,
		campaigns:     deps.Campaigns,
		ledger:        deps.Ledger,
		files:         deps.Files,
		pricing:       deps.Pricing,
		webhook:       deps.Webhook,
		plans:         deps.Plans,
		validate:      validator.New(),
		allowedOrigin: cfg.AllowedOrigin,
	}
	if s.pricing == nil {
		s.pricing = pricing.NewCatalog()
	}
	if s.plans == nil {
		s.plans = DefaultPlans()
	}
	if s.allowedOrigin == "" {
		s.allowedOrigin = "*"
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Full-ebook generation holds the connection
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// routes builds the request router.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Generation pipeline
	mux.HandleFunc("POST /api/generate-outline", s.handleGenerateOutline)
	mux.HandleFunc("POST /api/generate-text-content", s.handleGenerateContent)
	mux.HandleFunc("POST /api/generate-full-ebook", s.handleGenerateFullEbook)

	// Files
	mux.HandleFunc("GET /api/download/{filename}", s.handleDownload)
	mux.HandleFunc("POST /api/upload-cover", s.handleUploadCover)
	mux.HandleFunc("GET /covers/{filename}", s.handleGetCover)

	// Viral content
	mux.HandleFunc("POST /api/generate-viral-content", s.handleGenerateViralContent)

	// Billing
	mux.HandleFunc("GET /api/pricing", s.handlePricing)
	mux.HandleFunc("POST /api/payments/webhook", s.handlePaymentWebhook)

	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Webhook-Signature")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request. This
// uses the IP from RemoteAddr; X-Forwarded-For would only be trustworthy
// behind a known proxy.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
