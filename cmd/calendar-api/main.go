package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/upb/calendar-api/app"
	"github.com/upb/calendar-api/config"
	"github.com/upb/calendar-api/internal/observability"
	"github.com/upb/calendar-api/routes"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, logFormat(cfg))
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// logFormat returns the configured format, or console output in development
// when none is set
func logFormat(cfg *config.Config) string {
	if cfg.Observability.LogFormat != "" {
		return cfg.Observability.LogFormat
	}
	if cfg.IsDevelopment() {
		return observability.FormatConsole
	}
	return observability.FormatJSON
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting calendar api",
		zap.String("address", cfg.Server.Address()),
		zap.String("database", cfg.Database.LogString()))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	handler, err := routes.SetupRoutes(deps)
	if err != nil {
		_ = deps.Close(context.Background())
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		_ = deps.Close(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}

	return serve(ctx, listener, newServer(cfg, handler), deps)
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// serve runs srv on listener until ctx is cancelled, then drains in-flight
// requests and releases deps.
func serve(ctx context.Context, listener net.Listener, srv *http.Server, deps *app.Dependencies) error {
	logger := deps.Logger
	deps.StartBackground(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", listener.Addr().String()))
		var err error
		if deps.Config.Server.TLS.Enabled {
			err = srv.ServeTLS(listener, deps.Config.Server.TLS.CertFile, deps.Config.Server.TLS.KeyFile)
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	if err := deps.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	logger.Info("server stopped")
	return runErr
}
