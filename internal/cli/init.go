// Package cli provides common initialization shared by cmd/travelbook and
// cmd/travelbook-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"travelbook/internal/amqp"
	"travelbook/internal/config"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
	"travelbook/internal/services"
	"travelbook/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the logger described by cfg and installs it as the
// slog default. Records go to w unless cfg names a log file. The closer
// flushes a rotated log file on shutdown.
func SetupLogger(cfg *config.Config, component string, w io.Writer) (*applog.Logger, io.Closer, error) {
	logger, closer, err := applog.FromConfig(applog.OutputConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Writer: w,
	}, component)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}
	applog.SetDefault(logger)
	return logger, closer, nil
}

// OpenStorage opens the database file named by cfg.
func OpenStorage(ctx context.Context, cfg *config.Config) (*storage.Handle, error) {
	h, err := storage.FileOpener{Path: cfg.DBPath}.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", cfg.DBPath, err)
	}
	return h, nil
}

// ConnectAMQP dials the broker when one is configured. It returns a nil
// client when the relay is disabled.
func ConnectAMQP(cfg *config.Config) (*amqp.Client, error) {
	if !cfg.RelayEnabled() {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}
	return client, nil
}

// AttachRelay publishes every write on reg through client. A nil client
// leaves the relay disabled.
func AttachRelay(reg *live.Registry, client *amqp.Client) *services.ChangeRelay {
	var pub services.Publisher
	if client != nil {
		pub = client
	}
	relay := services.NewChangeRelay(pub)
	relay.Attach(reg)
	return relay
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewStores builds the trip and expense stores on h.
func NewStores(h *storage.Handle) (*storage.TripStore, *storage.ExpenseStore) {
	return storage.NewTripStore(h), storage.NewExpenseStore(h)
}
