package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"travelbook/internal/core"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
)

func newWatchCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a listing again after every change until interrupted",
	}
	cmd.AddCommand(
		newWatchTripsCommand(deps),
		newWatchExpensesCommand(deps),
	)
	return cmd
}

func newWatchTripsCommand(deps commandDeps) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Watch the trip list",
		Args:  noArgs("watch trips"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				query := app.Trips.All()
				if active {
					query = app.Trips.Active(app.Today)
				}
				return watch(ctx, deps, app, query, func(w io.Writer, trips []core.Trip) error {
					if deps.globals.JSON {
						return printJSON(w, tripViews(trips))
					}
					return writeTrips(w, trips)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "Only trips in progress today")
	return cmd
}

func newWatchExpensesCommand(deps commandDeps) *cobra.Command {
	var tripID int64
	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Watch the expense list",
		Args:  noArgs("watch expenses"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				query := app.Expenses.All()
				if tripID > 0 {
					query = app.Expenses.ByTrip(tripID)
				}
				return watch(ctx, deps, app, query, func(w io.Writer, expenses []core.Expense) error {
					if deps.globals.JSON {
						return printJSON(w, expenseViews(expenses))
					}
					return writeExpenses(w, expenses)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&tripID, "trip", 0, "Only expenses of this trip")
	return cmd
}

// watch prints every emission of query until ctx is done. Failed re-runs
// are logged and the subscription keeps going. When the app polls for
// external writes, changes made by other travelbook processes show up too.
func watch[T any](ctx context.Context, deps commandDeps, app *App, query *live.Query[T], render func(io.Writer, T) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Polling starts first so a write landing before the initial read is
	// either in that read or refreshed afterwards.
	wait := func() error { return nil }
	if app.PollInterval > 0 {
		var err error
		if wait, err = app.Handle.StartPolling(ctx, app.PollInterval); err != nil {
			return err
		}
	}

	sub, err := query.Subscribe(ctx)
	if err != nil {
		cancel()
		_ = wait()
		return err
	}
	defer sub.Cancel()

	err = printUpdates(ctx, deps, sub, render)
	cancel()
	if werr := wait(); err == nil {
		err = werr
	}
	return err
}

func printUpdates[T any](ctx context.Context, deps commandDeps, sub *live.Subscription[T], render func(io.Writer, T) error) error {
	updates, errs := sub.Updates(), sub.Errors()
	for n := 1; ; {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			if !deps.globals.JSON {
				if _, err := fmt.Fprintf(deps.out, "-- update %d\n", n); err != nil {
					return err
				}
			}
			if err := render(deps.out, v); err != nil {
				return err
			}
			n++
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			applog.For(ctx, applog.ComponentCLI).WarnContext(ctx, "Live query refresh failed", applog.FieldError, err)
		}
	}
}
