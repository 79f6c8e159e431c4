// Package web provides the HTTP surface for the customer processing
// pipeline: file submission, run tracking and report retrieval.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/meridianhq/custflow/internal/config"
	"github.com/meridianhq/custflow/internal/pipeline"
	"github.com/meridianhq/custflow/internal/web/middleware"
)

// RequestTimeout bounds one request end to end, including a full batch
// submission with backoff.
var RequestTimeout = 10 * time.Minute

// RateLimit is the per-IP request budget per RateWindow.
var (
	RateLimit  = 100
	RateWindow = time.Minute
)

// Server is the HTTP server for the processing pipeline.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	registry *pipeline.Registry
	limiter  *pipeline.RunLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires the router, middleware and routes.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, reg *pipeline.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		registry: reg,
		limiter:  pipeline.NewRunLimiter(cfg.Upload.MaxConcurrentRuns, cfg.Upload.RunWaitTimeout),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(RequestTimeout))

	limiter := newRateLimiter(RateLimit, RateWindow)
	s.router.Use(limiter.middleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Server.APIKeys))

		r.Post("/process", s.handleProcess)
		r.Post("/preview", s.handlePreview)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/report", s.handleGetReport)
		r.Get("/runs/{runID}/failed-rows", s.handleFailedRows)
	})
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			http.Error(w, `{"error":"rate limit exceeded","code":"RATE_LIMITED"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) >= rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// cleanup drops idle visitors so the map does not grow without bound.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-2 * rl.window)
		for ip, v := range rl.visitors {
			if v.lastReset.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}
