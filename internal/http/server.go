// Package http exposes the station over a small JSON API used by the scanner
// front end and by game masters at the admin panel.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gmscanner/internal/backend"
	applog "gmscanner/internal/log"
	"gmscanner/internal/services"
)

// Deps are the services the API fronts.
type Deps struct {
	Scans    *services.ScanService
	Strategy backend.Strategy
	Scores   *services.ScoreAggregator
	Logger   *applog.Logger

	// ScanLimit caps scan submissions per client per minute. Zero uses the
	// default.
	ScanLimit int
}

// Server wraps http.Server with the station routes.
type Server struct {
	http.Server

	scans    *services.ScanService
	strategy backend.Strategy
	scores   *services.ScoreAggregator
	logger   *applog.Logger
	limiter  *rateLimiter
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Default(applog.ComponentHTTP)
	}

	s := &Server{
		scans:    deps.Scans,
		strategy: deps.Strategy,
		scores:   deps.Scores,
		logger:   logger,
		limiter:  newRateLimiter(deps.ScanLimit, time.Minute),
		started:  time.Now(),
	}
	go s.limiter.startCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/scans", s.rateLimited(http.HandlerFunc(s.handleScan)))
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/scores", s.handleScores)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/teams/{id}/adjustments", s.handleAdjust)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("POST /api/session/pause", s.handleSessionMove(s.strategy.PauseSession))
	mux.HandleFunc("POST /api/session/resume", s.handleSessionMove(s.strategy.ResumeSession))
	mux.HandleFunc("POST /api/session/end", s.handleSessionMove(s.strategy.EndSession))

	mux.HandleFunc("GET /api/mode", s.handleGetMode)
	mux.HandleFunc("PUT /api/mode", s.handleSetMode)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           applog.Middleware(logger)(securityHeaders(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractClientIP(r)
		if !s.limiter.allow(ip) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, ip,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "rate limit exceeded",
				Code:  "rate_limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
