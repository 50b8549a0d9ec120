package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/healtharchive/internal/health"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/metrics"
)

// Server is the ops HTTP server with a managed lifecycle.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger logger.Logger
	config *Config
}

// New builds a Server exposing /healthz, /readyz, and /metrics, with the
// standard recovery → request-id → logging middleware chain.
func New(cfg *Config, log logger.Logger, checker *health.Checker, collector *metrics.Collector) *Server {
	cfg.SetDefaults()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))

	router.GET("/livez", gin.WrapF(health.LivenessHandler()))
	router.GET("/healthz", gin.WrapF(health.ReadinessHandler(checker)))
	router.GET("/readyz", gin.WrapF(health.ReadinessHandler(checker)))
	if collector != nil {
		router.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{router: router, server: httpServer, logger: log, config: cfg}
}

// Address returns the listen address in host:port form.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Router exposes the underlying engine, e.g. for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start blocks serving until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting ops http server",
		logger.String("address", s.server.Addr),
		logger.String("service", s.config.ServiceName),
	)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ops server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine, returning an error channel.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return nil
}

// RunWithGracefulShutdown starts the server and blocks until ctx is
// cancelled, SIGINT/SIGTERM arrives, or the server errors, then shuts
// down gracefully.
func (s *Server) RunWithGracefulShutdown(ctx context.Context) error {
	errCh := s.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down ops server")
	}

	return s.Shutdown(context.Background())
}
