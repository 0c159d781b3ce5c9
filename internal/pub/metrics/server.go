package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ReadyFunc reports whether the publisher can reach the hub.
type ReadyFunc func(ctx context.Context) error

// Server serves Prometheus metrics plus health and readiness probes.
type Server struct {
	server   *http.Server
	logger   *zap.Logger
	registry *Registry
	ready    ReadyFunc
	timeout  time.Duration
}

// ServerConfig holds configuration for the metrics server
type ServerConfig struct {
	Port    int           `env:"METRICS_PORT" envDefault:"9090"`
	Timeout time.Duration `env:"METRICS_TIMEOUT" envDefault:"30s"`
}

type probeResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a new metrics server. A nil ready func always reports ready.
func NewServer(config ServerConfig, registry *Registry, logger *zap.Logger, ready ReadyFunc) *Server {
	s := &Server{
		logger:   logger.Named("metrics-server"),
		registry: registry,
		ready:    ready,
		timeout:  config.Timeout,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  config.Timeout * 2,
	}

	return s
}

// Handler returns the mux serving /metrics, /health and /ready.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.registry.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, probeResponse{Status: "healthy", Service: "hubpub-metrics"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), s.probeTimeout())
			defer cancel()

			if err := s.ready(ctx); err != nil {
				s.logger.Warn("readiness check failed", zap.Error(err))
				writeProbe(w, http.StatusServiceUnavailable, probeResponse{
					Status:  "unavailable",
					Service: "hubpub-metrics",
					Error:   err.Error(),
				})
				return
			}
		}
		writeProbe(w, http.StatusOK, probeResponse{Status: "ready", Service: "hubpub-metrics"})
	})

	return mux
}

func (s *Server) probeTimeout() time.Duration {
	if s.timeout <= 0 || s.timeout > 5*time.Second {
		return 5 * time.Second
	}
	return s.timeout
}

func writeProbe(w http.ResponseWriter, code int, body probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves until ctx is done or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to gracefully shutdown metrics server", zap.Error(err))
		return err
	}

	s.logger.Info("metrics server stopped")
	return nil
}

// Addr returns the server address
func (s *Server) Addr() string {
	return s.server.Addr
}
