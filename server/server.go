// Package server exposes the lookup pipeline over HTTP: the single,
// bulk, CIDR, and streaming lookup endpoints plus the health/readiness
// and provider-status surfaces of spec.md §6, using a gorilla/mux
// router-plus-middleware-chain narrowed to this service's fixed route
// table instead of a generic resource dispatcher.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/itsneelabh/gomind/cache"
	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/db"
	"github.com/itsneelabh/gomind/lookup"
	"github.com/itsneelabh/gomind/providers"
	"github.com/itsneelabh/gomind/ratelimit"
)

// Server is the HTTP front door. It owns no business logic of its own -
// every handler delegates to lookup.Service - only request parsing,
// response framing, and the ambient HTTP concerns (logging, panic
// recovery, the bulk/CIDR rate limit, timeouts). There is no CORS handling.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	lookupSvc   *lookup.Service
	fleet       *providers.Fleet
	cache       *cache.Cache
	store       *db.Store
	rateLimiter *ratelimit.Limiter
	logger      core.Logger
	telemetry   core.Telemetry
	startedAt   time.Time
	serviceName string
}

// Config carries the HTTP-layer tunables.
type Config struct {
	Port            int
	ServiceName     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns production-sane HTTP timeouts.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		ServiceName:     "ipintel",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    35 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New wires the router and every handler.
func New(cfg Config, lookupSvc *lookup.Service, fleet *providers.Fleet, c *cache.Cache, store *db.Store, limiter *ratelimit.Limiter, logger core.Logger, telemetry core.Telemetry) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	s := &Server{
		router:      mux.NewRouter(),
		lookupSvc:   lookupSvc,
		fleet:       fleet,
		cache:       c,
		store:       store,
		rateLimiter: limiter,
		logger:      logger,
		telemetry:   telemetry,
		startedAt:   time.Now(),
		serviceName: cfg.ServiceName,
	}
	s.routes()

	// otelhttp supplies the span-per-request instrumentation; the
	// hand-written middleware below only needs to add logging and panic
	// recovery on top of it.
	traced := otelhttp.NewHandler(s.router, cfg.ServiceName)
	handler := s.withMiddleware(traced)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/lookup", s.handleLookupPost).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/lookup/bulk", s.handleBulk).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/lookup/cidr", s.handleCIDR).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/lookup/stream", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/lookup/{ip}", s.handleLookupGet).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/providers", s.handleProviders).Methods(http.MethodGet)

	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/health/live", s.handleLive).Methods(http.MethodGet)
	s.router.HandleFunc("/api/health/ready", s.handleReady).Methods(http.MethodGet)
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", map[string]interface{}{"addr": s.httpServer.Addr})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down http server", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
