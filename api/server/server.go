// Package server is the HTTP front end of the ledger: file registration and
// verification by upload, chain queries, and the node health surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fileledger/core/chain"
	"fileledger/core/integrity"
	"fileledger/core/storage"
)

// DefaultMaxUpload bounds the size of an uploaded file.
const DefaultMaxUpload int64 = 64 << 20

type Options struct {
	Service *integrity.Service
	// Store receives the chain after every registration. Nil disables saving.
	Store  storage.Store
	Logger *slog.Logger
	// Registry serves /metrics and holds the HTTP collectors. Nil uses a
	// private registry.
	Registry *prometheus.Registry
	// JWTSecret enables bearer authentication on the ledger routes.
	JWTSecret       string
	UploadDir       string
	ListenAddr      string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	// RateLimit caps register and verify requests per client per minute.
	// Zero disables limiting.
	RateLimit int
}

type Server struct {
	svc       *integrity.Service
	chain     *chain.Chain
	store     storage.Store
	log       *slog.Logger
	registry  *prometheus.Registry
	http      *httpMetrics
	jwtSecret []byte
	limiter   *rateLimiter
	verdict   verdictCache
	uploadDir string
	maxUpload int64
	started   time.Time

	httpServer      *http.Server
	shutdownTimeout time.Duration

	// registerMu keeps the upload dir and the chain in step: the staged
	// upload is moved onto its name in the same critical section that
	// appends and saves its block.
	registerMu sync.Mutex
}

func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: integrity service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUpload
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(opts.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	s := &Server{
		svc:             opts.Service,
		chain:           opts.Service.Chain(),
		store:           opts.Store,
		log:             opts.Logger.With(slog.String("component", "server")),
		registry:        opts.Registry,
		http:            newHTTPMetrics(opts.Registry),
		uploadDir:       opts.UploadDir,
		maxUpload:       opts.MaxUploadBytes,
		started:         time.Now(),
		shutdownTimeout: opts.ShutdownTimeout,
	}
	s.verdict.check = s.chain.Check
	if opts.JWTSecret != "" {
		s.jwtSecret = []byte(opts.JWTSecret)
	}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, s.log)
	}
	s.httpServer = &http.Server{
		Addr:         opts.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Routes builds the router. Ledger routes sit behind bearer auth when a JWT
// secret is configured; health and metrics stay open.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(s.http.middleware)

	r.Get("/nodehealth", s.HandleNodeHealth)
	r.Get("/health/liveness", s.HandleLiveness)
	r.Get("/health/readiness", s.HandleReadiness)
	r.Get("/status", s.HandleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.requireJWT)
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.middleware)
			}
			r.Post("/register", s.handleRegister)
			r.Post("/verify", s.handleVerify)
		})
		r.Get("/validate", s.handleValidate)
		r.Get("/history", s.handleHistory)
		r.Get("/history/file", s.handleFileHistory)
		r.Get("/api/history_user", s.handleUserHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/blocks/{index}", s.handleGetBlock)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
