package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/statbridge/statbridge/internal/fetcher"
	"github.com/statbridge/statbridge/internal/plugin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	ShutdownTimeout = 30 * time.Second
	maxRequestBody  = 64 << 10
)

// Bridge is the part of the plugin the RPC surface needs.
type Bridge interface {
	GetData(ctx context.Context, identifier string) fetcher.Envelope
	FrontEndLoaded()
	State() plugin.State
}

type Config struct {
	Listen         string
	AllowedOrigins []string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
}

func New(logger *zap.Logger, bridge Bridge, cfg Config) *Server {
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(logger, bridge, cfg),
			ReadHeaderTimeout: 5 * time.Second,
			// Must stay above the fetch timeout.
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// NewRouter builds the RPC handler tree.
func NewRouter(logger *zap.Logger, bridge Bridge, cfg Config) http.Handler {
	h := &handlers{logger: logger, bridge: bridge}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/rpc/get_data", h.getDataRPC)
	r.Post("/rpc/frontend_loaded", h.frontEndLoaded)
	r.Get("/api/players/{id}", h.getPlayer)
	r.Get("/healthz", h.health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return otelhttp.NewHandler(r, "statbridge.rpc")
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server listening", zap.String("addr", l.Addr().String()))
		errCh <- s.httpServer.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("rpc server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down rpc server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down rpc server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rpc server failed: %w", err)
	}

	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, l)
}
