// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 15 * time.Second

// Run drives the service lifecycle in order: LoadConfig, ValidateConfig,
// NewLogger, ConnectDB, EnsureSchema, Startup, BuildHandler, serve, and
// Shutdown once ctx is done.
func Run(ctx context.Context, configFile string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	timeouts.Configure(timeouts.Config{
		Short:  cfg.TimeoutShort,
		Medium: cfg.TimeoutMedium,
		Long:   cfg.TimeoutLong,
	})

	deps, err := ConnectDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("database connect failed", zap.Error(err))
		return err
	}
	if err := EnsureSchema(ctx, cfg, deps, logger); err != nil {
		_ = Shutdown(context.Background(), nil, deps, logger)
		return err
	}

	a, err := Startup(cfg, deps, logger)
	if err != nil {
		_ = Shutdown(context.Background(), nil, deps, logger)
		return err
	}
	handler, err := BuildHandler(cfg, deps, a, logger)
	if err != nil {
		_ = Shutdown(context.Background(), a, deps, logger)
		return err
	}
	a.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("backend", deps.Backend),
			zap.String("realtime", cfg.RealtimeSource))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("http server failed", zap.Error(err))
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	// Event streams only return once their session ends, so sessions are
	// closed alongside the listener.
	go a.Contexts.Shutdown(shutCtx)
	if sErr := srv.Shutdown(shutCtx); sErr != nil {
		logger.Warn("http server shutdown incomplete", zap.Error(sErr))
	}
	if sErr := Shutdown(shutCtx, a, deps, logger); sErr != nil && err == nil {
		err = sErr
	}
	return err
}
