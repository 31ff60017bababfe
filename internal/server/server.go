// Package server provides the HTTP REST API for the resume tailoring
// pipeline: run submission and streaming, run inspection, artifact retrieval,
// and optional JWT-protected access.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/server/ratelimit"
)

// Server serves the tailoring API over HTTP.
type Server struct {
	httpServer *http.Server
	store      db.Store
	orch       *pipeline.Orchestrator
	logger     *zap.Logger
	limiter    *ratelimit.Limiter
	jwt        *JWTService // nil in open mode
	auth       *AuthHandler
}

// Config holds server settings.
type Config struct {
	Addr string
}

// New builds a server around an orchestrator and its store. Auth endpoints
// and the bearer middleware activate only when JWT_SECRET is set.
func New(cfg Config, store db.Store, orch *pipeline.Orchestrator, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		store:   store,
		orch:    orch,
		logger:  logger,
		limiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
	}

	jwtCfg, err := config.JWTFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT config: %w", err)
	}
	if jwtCfg != nil {
		passwordCfg, err := config.PasswordFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load password config: %w", err)
		}
		s.jwt = NewJWTService(jwtCfg)
		s.auth = NewAuthHandler(NewUserService(store, passwordCfg), s.jwt)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("POST /runs", s.withAuth(s.withSubmitLimit(s.handleCreateRun)))
	mux.HandleFunc("POST /runs/stream", s.withAuth(s.withSubmitLimit(s.handleStreamRun)))
	mux.HandleFunc("GET /runs", s.withAuth(s.handleListRuns))
	mux.HandleFunc("GET /runs/{id}", s.withAuth(s.handleGetRun))
	mux.HandleFunc("GET /runs/{id}/artifact", s.withAuth(s.handleGetResult))
	mux.HandleFunc("GET /runs/{id}/artifacts/{stage}", s.withAuth(s.handleGetStageArtifact))
	mux.HandleFunc("POST /runs/{id}/cancel", s.withAuth(s.handleCancelRun))
	mux.HandleFunc("POST /runs/{id}/resume", s.withAuth(s.handleResumeRun))
	mux.HandleFunc("DELETE /runs/{id}", s.withAuth(s.handleDeleteRun))

	if s.auth != nil {
		mux.HandleFunc("POST /auth/register", s.auth.Register)
		mux.HandleFunc("POST /auth/login", s.auth.Login)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // streaming runs hold the response open
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the configured handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.limiter.Stop()
	return nil
}

// withCORS adds permissive CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging logs each request with its duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

// withSubmitLimit rate-limits run submissions per client IP. Submissions are
// the endpoints that cost model calls.
func (s *Server) withSubmitLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(clientIP(r))
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		}
		if !allowed {
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())+1))
			}
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// clientIP extracts the client identifier from RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth reports liveness and store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
