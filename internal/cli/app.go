package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"travelbook/internal/cache"
	"travelbook/internal/config"
	"travelbook/internal/core"
	applog "travelbook/internal/log"
	"travelbook/internal/services"
	"travelbook/internal/storage"
)

// App holds everything a command reads from or writes to.
type App struct {
	Handle   *storage.Handle
	Trips    *storage.TripStore
	Expenses *storage.ExpenseStore
	Stats    *services.StatsService

	// Logger is put in the context of every command. Nil keeps the slog default.
	Logger *applog.Logger

	// Today is the clock used for active trips and default expense dates.
	Today func() core.Date

	// PollInterval is how often watch commands look for writes made by
	// other processes. Zero disables polling.
	PollInterval time.Duration

	closers []io.Closer
}

// AppOpener builds the App a command runs against.
type AppOpener func(ctx context.Context) (*App, error)

// NewApp wires the stores and the stats service on h. The caller keeps
// ownership of h.
func NewApp(h *storage.Handle, statsCache cache.Cache[core.ExpenseSummary]) *App {
	trips, expenses := NewStores(h)
	return &App{
		Handle:   h,
		Trips:    trips,
		Expenses: expenses,
		Stats:    services.NewStatsService(trips, expenses, h.Registry(), statsCache),
		Today:    core.Today,
	}
}

// Close releases what the opener acquired, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

const externalPollInterval = time.Second

// OpenApp is the AppOpener used by the travelbook binary. It reads the
// environment, logs to stderr, opens the database file and attaches the
// change relay when a broker is configured.
func OpenApp(ctx context.Context) (*App, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, asExitError(ExitCodeConfig, err)
	}
	return openWithConfig(ctx, cfg)
}

func openWithConfig(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	logger, logCloser, err := SetupLogger(cfg, applog.ComponentCLI, os.Stderr)
	if err != nil {
		return nil, asExitError(ExitCodeConfig, err)
	}
	closers = append(closers, logCloser)

	h, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, asExitError(ExitCodeStorage, err)
	}
	closers = append(closers, h)

	client, err := ConnectAMQP(cfg)
	if err != nil {
		// Writes still succeed locally; the worker reconciles later.
		logger.WarnContext(ctx, "Change relay disabled", applog.FieldError, err)
	} else if client != nil {
		closers = append(closers, client)
	}
	AttachRelay(h.Registry(), client)

	statsCache := cache.NewLRUCache[core.ExpenseSummary](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	manager := cache.NewManager()
	manager.Register(statsCache)
	manager.StartCleanup(ctx, cfg.StatsCacheTTL)
	closers = append(closers, closerFunc(func() error {
		manager.Stop()
		return nil
	}))

	app := NewApp(h, statsCache)
	app.closers = closers
	app.Logger = logger
	app.PollInterval = externalPollInterval
	logger.DebugContext(ctx, "Application opened", "db_path", cfg.DBPath, "relay", client != nil)
	return app, nil
}
