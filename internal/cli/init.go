// Package cli provides common CLI initialization utilities shared by
// cmd/finanzas and cmd/finanzas-worker.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzas/internal/config"
	"finanzas/internal/log"
)

// SetupLogger builds the application logger from config and installs it as
// the slog default.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	lc := log.DefaultConfig()
	lc.Output = w
	if cfg != nil {
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Format = log.Format(strings.ToLower(cfg.LogFormat))
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored since production sets the environment directly.
func LoadEnvFile(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("Shutdown signal received")
		}
	}()
	return ctx, stop
}

// Shutdown runs cleanup with a fresh context bounded by timeout, since the
// signal context is already cancelled when shutdown starts.
func Shutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := cleanup(ctx)
	switch {
	case ctx.Err() != nil:
		logger.Warn("Shutdown timeout reached", log.FieldError, ctx.Err())
	case err != nil:
		logger.Error("Shutdown finished with errors", log.FieldError, err)
	default:
		logger.Info("Shutdown complete")
	}
	return err
}
