package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hookdeploy/internal/deploy"
	"hookdeploy/internal/target"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 60 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit  = 12 // Global rate limit per minute
	WebhookRateLimit = 4  // Webhook-specific rate limit per minute
)

// Server represents the HTTP server
type Server struct {
	Registry    *target.Registry
	LockManager *deploy.LockManager
	Runner      deploy.Runner
	Logger      *slog.Logger
	TestMode    bool
	deployWg    sync.WaitGroup // Tracks in-flight async deployments

	mu         sync.Mutex
	httpServer *http.Server // Set once serving begins, guarded by mu
}

// NewServer creates a new server instance
func NewServer(registry *target.Registry, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Registry:    registry,
		LockManager: deploy.NewLockManager(),
		Runner:      &deploy.ExecRunner{},
		Logger:      logger,
		TestMode:    testMode,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	// Routes
	r.Get("/health", s.HandleHealth)

	// Webhook route with stricter rate limit
	if !s.TestMode {
		r.With(NewWebhookRateLimitMiddleware(WebhookRateLimit, s.Logger)).Post("/hooks/{targetName}", s.HandleWebhook)
	} else {
		r.Post("/hooks/{targetName}", s.HandleWebhook)
	}

	return r
}

// Start starts the HTTP server
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = server
	s.mu.Unlock()

	return server.Serve(ln)
}

// WaitForDeployments waits for all in-flight async deployments to complete.
// This is primarily useful for testing.
func (s *Server) WaitForDeployments() {
	s.deployWg.Wait()
}

// Shutdown stops accepting new requests, then waits for in-flight
// deployments to finish. The context bounds the HTTP drain only;
// running git sequences are not interrupted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
	}

	s.deployWg.Wait()
	return nil
}

// targetLogger returns the logger deployments of t should write to. A
// target with its own log destination gets a file-backed logger; the
// returned closer is a no-op when the shared logger is used.
func (s *Server) targetLogger(t *target.Target) (*slog.Logger, func()) {
	if t.LogPath == "" {
		return s.Logger, func() {}
	}

	if err := os.MkdirAll(filepath.Dir(t.LogPath), 0755); err != nil {
		s.Logger.Warn("Failed to create target log directory, using shared log",
			"target", t.Name, "error", err)
		return s.Logger, func() {}
	}

	file, err := os.OpenFile(t.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		s.Logger.Warn("Failed to open target log file, using shared log",
			"target", t.Name, "error", err)
		return s.Logger, func() {}
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler), func() { file.Close() }
}
