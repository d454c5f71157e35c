package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"travelbook/internal/core"
)

func newTripCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trip",
		Short: "Trip management",
	}
	cmd.AddCommand(
		newTripAddCommand(deps),
		newTripListCommand(deps),
		newTripShowCommand(deps),
		newTripUpdateCommand(deps),
		newTripDeleteCommand(deps),
	)
	return cmd
}

type tripFlags struct {
	name           string
	destination    string
	start          string
	end            string
	budget         string
	budgetCurrency string
	notes          string
}

func (f *tripFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Trip name")
	cmd.Flags().StringVar(&f.destination, "destination", "", "Destination")
	cmd.Flags().StringVar(&f.start, "start", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.budget, "budget", "", "Budget amount")
	cmd.Flags().StringVar(&f.budgetCurrency, "budget-currency", "", "Budget currency code")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes")
}

// apply copies every flag the user set onto t.
func (f *tripFlags) apply(cmd *cobra.Command, t *core.Trip) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		t.Name = strings.TrimSpace(f.name)
	}
	if changed("destination") {
		t.Destination = strings.TrimSpace(f.destination)
	}
	if changed("start") {
		d, err := core.ParseDate(f.start)
		if err != nil {
			return usageErrorf("invalid --start: %v", err)
		}
		t.StartDate = d
	}
	if changed("end") {
		d, err := core.ParseDate(f.end)
		if err != nil {
			return usageErrorf("invalid --end: %v", err)
		}
		t.EndDate = d
	}
	if changed("budget") {
		amount, err := core.ParseAmount(f.budget)
		if err != nil {
			return usageErrorf("invalid --budget %q: %v", f.budget, err)
		}
		t.Budget = decimal.NewNullDecimal(amount)
	}
	if changed("budget-currency") {
		t.BudgetCurrency = optional(normalizeCurrency(f.budgetCurrency))
	}
	if changed("notes") {
		t.Notes = optional(f.notes)
	}
	return nil
}

func newTripAddCommand(deps commandDeps) *cobra.Command {
	var flags tripFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a trip",
		Args:  noArgs("trip add"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var trip core.Trip
			if err := flags.apply(cmd, &trip); err != nil {
				return err
			}
			if err := trip.Validate(); err != nil {
				return usageErrorf("trip add: %v", err)
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				id, err := app.Trips.Create(ctx, trip)
				if err != nil {
					return err
				}
				trip.ID = id
				if deps.globals.JSON {
					return printJSON(deps.out, newTripView(trip))
				}
				_, err = fmt.Fprintf(deps.out, "trip created: %d\n", id)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTripListCommand(deps commandDeps) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List trips",
		Args:  noArgs("trip ls"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				query := app.Trips.All()
				if active {
					query = app.Trips.Active(app.Today)
				}
				trips, err := query.Get(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, tripViews(trips))
				}
				return writeTrips(deps.out, trips)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "Only trips in progress today")
	return cmd
}

func newTripShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a trip with its spending",
		Args:  exactArgs(1, "trip show <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("trip", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				trip, ok, err := app.Trips.ByID(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("trip %d not found", id)
				}
				summaries, err := app.Expenses.TripSummaries(ctx, id)
				if err != nil {
					return err
				}
				status, _, err := app.Stats.BudgetStatus(ctx, id)
				if err != nil {
					return err
				}

				if deps.globals.JSON {
					views := make([]summaryView, 0, len(summaries))
					for _, s := range summaries {
						views = append(views, newSummaryView(s))
					}
					return printJSON(deps.out, struct {
						Trip      tripView      `json:"trip"`
						Summaries []summaryView `json:"summaries"`
						Budget    budgetView    `json:"budget"`
					}{newTripView(trip), views, newBudgetView(status)})
				}

				if err := writeTrip(deps.out, trip); err != nil {
					return err
				}
				if trip.Notes != nil {
					if _, err := fmt.Fprintf(deps.out, "Notes: %s\n", *trip.Notes); err != nil {
						return err
					}
				}
				for _, s := range summaries {
					if err := writeSummary(deps.out, s); err != nil {
						return err
					}
				}
				if status.HasBudget {
					return writeBudget(deps.out, status)
				}
				return nil
			})
		},
	}
}

func newTripUpdateCommand(deps commandDeps) *cobra.Command {
	var (
		flags       tripFlags
		clearBudget bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a trip",
		Args:  exactArgs(1, "trip update <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("trip", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				trip, ok, err := app.Trips.ByID(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("trip %d not found", id)
				}
				if err := flags.apply(cmd, &trip); err != nil {
					return err
				}
				if clearBudget {
					trip.Budget = decimal.NullDecimal{}
					trip.BudgetCurrency = nil
				}
				if err := trip.Validate(); err != nil {
					return usageErrorf("trip update: %v", err)
				}
				if err := app.Trips.Update(ctx, trip); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, newTripView(trip))
				}
				_, err = fmt.Fprintf(deps.out, "trip updated: %d\n", id)
				return err
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&clearBudget, "clear-budget", false, "Remove the budget")
	return cmd
}

func newTripDeleteCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a trip",
		Long:  "Delete a trip. Its expenses are kept and still reference the trip id.",
		Args:  exactArgs(1, "trip rm <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("trip", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				if _, ok, err := app.Trips.ByID(ctx, id); err != nil {
					return err
				} else if !ok {
					return notFoundf("trip %d not found", id)
				}
				if err := app.Trips.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "trip removed: %d\n", id)
				return err
			})
		},
	}
}
