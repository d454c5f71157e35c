package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"travelbook/internal/core"
)

func newStatsCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Spending per trip",
	}
	cmd.AddCommand(
		newStatsTotalCommand(deps),
		newStatsSummaryCommand(deps),
		newStatsBudgetCommand(deps),
	)
	return cmd
}

// tripArg parses the trip id argument and checks the trip exists.
func tripArg(ctx context.Context, app *App, arg string) (core.Trip, error) {
	id, err := parseID("trip", arg)
	if err != nil {
		return core.Trip{}, err
	}
	trip, ok, err := app.Trips.ByID(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	if !ok {
		return core.Trip{}, notFoundf("trip %d not found", id)
	}
	return trip, nil
}

func newStatsTotalCommand(deps commandDeps) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "total <trip-id>",
		Short: "Total spent on a trip in one currency",
		Args:  exactArgs(1, "stats total <trip-id> --currency CODE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency = normalizeCurrency(currency)
			if currency == "" {
				return usageErrorf("stats total requires --currency")
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				trip, err := tripArg(ctx, app, args[0])
				if err != nil {
					return err
				}
				total, err := app.Stats.TripTotal(ctx, trip.ID, currency)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{
						"trip_id":  trip.ID,
						"currency": currency,
						"total":    total.StringFixed(2),
					})
				}
				_, err = fmt.Fprintln(deps.out, core.FormatAmount(total, currency))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code")
	return cmd
}

func newStatsSummaryCommand(deps commandDeps) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "summary <trip-id>",
		Short: "Totals per category",
		Long:  "Totals per category. Without --currency one summary is printed per currency the trip was paid in.",
		Args:  exactArgs(1, "stats summary <trip-id> [--currency CODE]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency = normalizeCurrency(currency)

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				trip, err := tripArg(ctx, app, args[0])
				if err != nil {
					return err
				}

				var summaries []core.ExpenseSummary
				if currency != "" {
					s, err := app.Stats.CategoryTotals(ctx, trip.ID, currency)
					if err != nil {
						return err
					}
					summaries = append(summaries, s)
				} else {
					summaries, err = app.Expenses.TripSummaries(ctx, trip.ID)
					if err != nil {
						return err
					}
				}

				if deps.globals.JSON {
					views := make([]summaryView, 0, len(summaries))
					for _, s := range summaries {
						views = append(views, newSummaryView(s))
					}
					return printJSON(deps.out, views)
				}
				if len(summaries) == 0 {
					_, err := fmt.Fprintln(deps.out, "no expenses")
					return err
				}
				for _, s := range summaries {
					if err := writeSummary(deps.out, s); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code")
	return cmd
}

func newStatsBudgetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "budget <trip-id>",
		Short: "Compare spending against the trip budget",
		Args:  exactArgs(1, "stats budget <trip-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("trip", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				status, ok, err := app.Stats.BudgetStatus(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("trip %d not found", id)
				}
				if deps.globals.JSON {
					return printJSON(deps.out, newBudgetView(status))
				}
				return writeBudget(deps.out, status)
			})
		},
	}
}

func newCategoriesCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List expense categories",
		Args:  noArgs("categories"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories := core.AllCategories()
			if deps.globals.JSON {
				names := make([]string, 0, len(categories))
				for _, c := range categories {
					names = append(names, c.String())
				}
				return printJSON(deps.out, names)
			}
			for _, c := range categories {
				if _, err := fmt.Fprintf(deps.out, "%-15s %s\n", c, c.DisplayName()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
