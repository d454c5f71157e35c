package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"travelbook/internal/cli"
	"travelbook/internal/config"
	applog "travelbook/internal/log"
	"travelbook/internal/sheets"
	gsheet "travelbook/internal/sheets/google"
	"travelbook/internal/sheets/memory"
	"travelbook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "travelbook-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if !cfg.RelayEnabled() {
		return errors.New("AMQP_URL is required to consume changes")
	}

	logger, logCloser, err := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Info("Starting travelbook-worker", applog.FieldOperation, applog.OpStartup)

	ctx, stop := cli.SignalContext(applog.NewContext(context.Background(), logger))
	defer stop()

	h, err := cli.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open storage", applog.FieldError, err, "path", cfg.DBPath)
		return err
	}
	defer h.Close()

	mirror, err := openMirror(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		return err
	}

	amqpClient, err := cli.ConnectAMQP(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	trips, expenses := cli.NewStores(h)
	syncWorker := worker.NewSyncWorker(trips, expenses, mirror)

	// Catch up on changes published while the worker was down.
	logger.Info("Performing startup reconcile...")
	if _, err := syncWorker.Reconcile(ctx); err != nil {
		// Don't exit - continue with normal operation
		logger.Error("Startup reconcile failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeChanges(gctx, syncWorker.HandleChange)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			reconcileLoop(gctx, syncWorker, cfg.ReconcileInterval, logger)
			return nil
		})
	} else {
		logger.Info("Periodic reconcile disabled")
	}

	err = g.Wait()
	logger.Info("Shutting down travelbook-worker", applog.FieldOperation, applog.OpShutdown)
	if err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		return err
	}
	return nil
}

// openMirror returns the Google Sheets client, or an in-process mirror when
// no spreadsheet is configured.
func openMirror(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.Mirror, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", client.SheetName())
	return client, nil
}

func reconcileLoop(ctx context.Context, w *worker.SyncWorker, interval time.Duration, logger *applog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reconcile(ctx); err != nil {
				logger.Error("Periodic reconcile failed", applog.FieldError, err)
			}
		}
	}
}
