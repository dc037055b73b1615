// Package cli provides common initialization utilities shared by
// cmd/fintrack and cmd/adduser.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/log"
)

// SetupLogger builds the application logger from LOG_LEVEL/LOG_FORMAT values
// and installs it as the slog default. An unknown level falls back to info.
func SetupLogger(w io.Writer, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{
		Output:    w,
		Level:     lvl,
		Format:    format,
		Component: log.ComponentApp,
	})
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// OpenStore builds the store named by databaseURL. The returned cleanup
// closes it.
func OpenStore(ctx context.Context, logger *log.Logger, databaseURL string) (*backend.BackendResult, error) {
	cfg, err := backend.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Type, err)
	}
	return result, nil
}

// Server is what Serve runs; *http.Server and the app server satisfy it.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Serve runs srv until it fails or ctx is cancelled, then shuts it down
// within timeout. A clean shutdown returns nil.
func Serve(ctx context.Context, logger *log.Logger, srv Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		}
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

// Exit logs msg with err and any extra attributes, then terminates the
// process.
func Exit(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}
