package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"travelbook/internal/core"
	"travelbook/internal/live"
)

func newExpenseCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Expense management",
	}
	cmd.AddCommand(
		newExpenseAddCommand(deps),
		newExpenseListCommand(deps),
		newExpenseShowCommand(deps),
		newExpenseUpdateCommand(deps),
		newExpenseDeleteCommand(deps),
	)
	return cmd
}

type expenseFlags struct {
	tripID        int64
	amount        string
	currency      string
	category      string
	description   string
	date          string
	reimbursable  bool
	receiptPath   string
	paymentMethod string
	location      string
}

func (f *expenseFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.tripID, "trip", 0, "Trip id")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount, dot or comma decimal separator")
	cmd.Flags().StringVar(&f.currency, "currency", "", "Currency code")
	cmd.Flags().StringVar(&f.category, "category", "", "Category (unknown names become MISCELLANEOUS)")
	cmd.Flags().StringVar(&f.description, "description", "", "What was paid for")
	cmd.Flags().StringVar(&f.date, "date", "", "Day of the expense (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.reimbursable, "reimbursable", false, "Expense is reimbursable")
	cmd.Flags().StringVar(&f.receiptPath, "receipt", "", "Path to a receipt")
	cmd.Flags().StringVar(&f.paymentMethod, "payment", "", "Payment method")
	cmd.Flags().StringVar(&f.location, "location", "", "Where the expense happened")
}

// apply copies every flag the user set onto e.
func (f *expenseFlags) apply(cmd *cobra.Command, e *core.Expense) error {
	changed := cmd.Flags().Changed
	if changed("trip") {
		if f.tripID <= 0 {
			return usageErrorf("invalid --trip %d", f.tripID)
		}
		e.TripID = f.tripID
	}
	if changed("amount") {
		amount, err := core.ParseAmount(f.amount)
		if err != nil {
			return usageErrorf("invalid --amount %q: %v", f.amount, err)
		}
		e.Amount = amount
	}
	if changed("currency") {
		e.Currency = normalizeCurrency(f.currency)
	}
	if changed("category") {
		e.Category = core.ParseCategory(f.category)
	}
	if changed("description") {
		e.Description = strings.TrimSpace(f.description)
	}
	if changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return usageErrorf("invalid --date: %v", err)
		}
		e.Date = d
	}
	if changed("reimbursable") {
		e.IsReimbursable = f.reimbursable
	}
	if changed("receipt") {
		e.ReceiptPath = optional(f.receiptPath)
	}
	if changed("payment") {
		e.PaymentMethod = optional(f.paymentMethod)
	}
	if changed("location") {
		e.Location = optional(f.location)
	}
	return nil
}

func newExpenseAddCommand(deps commandDeps) *cobra.Command {
	var flags expenseFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  noArgs("expense add"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("trip") {
				return usageErrorf("expense add requires --trip")
			}
			if !cmd.Flags().Changed("amount") {
				return usageErrorf("expense add requires --amount")
			}
			expense := core.Expense{Category: core.Miscellaneous}
			if err := flags.apply(cmd, &expense); err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				if expense.Date.IsZero() {
					expense.Date = app.Today()
				}
				if err := expense.Validate(); err != nil {
					return usageErrorf("expense add: %v", err)
				}
				trip, ok, err := app.Trips.ByID(ctx, expense.TripID)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("trip %d not found", expense.TripID)
				}

				id, err := app.Expenses.Create(ctx, expense)
				if err != nil {
					return err
				}
				expense.ID = id
				if deps.globals.JSON {
					return printJSON(deps.out, newExpenseView(expense))
				}
				if _, err := fmt.Fprintf(deps.out, "expense created: %d\n", id); err != nil {
					return err
				}
				if !trip.Contains(expense.Date) {
					_, err = fmt.Fprintf(deps.out, "note: %s is outside trip %d (%s to %s)\n",
						expense.Date, trip.ID, trip.StartDate, trip.EndDate)
				}
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

type expenseFilter struct {
	tripID   int64
	category string
	from     string
	to       string
}

// matches applies the trip and date filters. The category filter is always
// the base query, so it matches stored names exactly on every path.
func (f expenseFilter) matches(e core.Expense, from, to core.Date) bool {
	if f.tripID > 0 && e.TripID != f.tripID {
		return false
	}
	if f.from != "" && (e.Date.Before(from.Time) || e.Date.After(to.Time)) {
		return false
	}
	return true
}

func newExpenseListCommand(deps commandDeps) *cobra.Command {
	var filter expenseFilter
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List expenses",
		Long:  "List expenses ordered by date. Filters combine.",
		Args:  noArgs("expense ls"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (filter.from == "") != (filter.to == "") {
				return usageErrorf("--from and --to must be given together")
			}
			var from, to core.Date
			if filter.from != "" {
				var err error
				if from, err = core.ParseDate(filter.from); err != nil {
					return usageErrorf("invalid --from: %v", err)
				}
				if to, err = core.ParseDate(filter.to); err != nil {
					return usageErrorf("invalid --to: %v", err)
				}
			}
			category := core.ParseCategory(filter.category)

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				var query *live.Query[[]core.Expense]
				switch {
				case filter.category != "":
					query = app.Expenses.ByCategory(category)
				case filter.tripID > 0:
					query = app.Expenses.ByTrip(filter.tripID)
				case filter.from != "":
					query = app.Expenses.ByDateRange(from, to)
				default:
					query = app.Expenses.All()
				}
				all, err := query.Get(ctx)
				if err != nil {
					return err
				}

				expenses := all[:0]
				for _, e := range all {
					if filter.matches(e, from, to) {
						expenses = append(expenses, e)
					}
				}
				if deps.globals.JSON {
					return printJSON(deps.out, expenseViews(expenses))
				}
				return writeExpenses(deps.out, expenses)
			})
		},
	}
	cmd.Flags().Int64Var(&filter.tripID, "trip", 0, "Only expenses of this trip")
	cmd.Flags().StringVar(&filter.category, "category", "", "Only expenses in this category")
	cmd.Flags().StringVar(&filter.from, "from", "", "First day, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.to, "to", "", "Last day, inclusive (YYYY-MM-DD)")
	return cmd
}

func newExpenseShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one expense",
		Args:  exactArgs(1, "expense show <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("expense", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				expense, ok, err := app.Expenses.ByID(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("expense %d not found", id)
				}
				if deps.globals.JSON {
					return printJSON(deps.out, newExpenseView(expense))
				}
				return writeExpense(deps.out, expense)
			})
		},
	}
}

func newExpenseUpdateCommand(deps commandDeps) *cobra.Command {
	var flags expenseFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an expense",
		Args:  exactArgs(1, "expense update <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("expense", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				expense, ok, err := app.Expenses.ByID(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return notFoundf("expense %d not found", id)
				}
				if err := flags.apply(cmd, &expense); err != nil {
					return err
				}
				if err := expense.Validate(); err != nil {
					return usageErrorf("expense update: %v", err)
				}
				if err := app.Expenses.Update(ctx, expense); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, newExpenseView(expense))
				}
				_, err = fmt.Fprintf(deps.out, "expense updated: %d\n", id)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newExpenseDeleteCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an expense",
		Args:  exactArgs(1, "expense rm <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("expense", args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), deps, func(ctx context.Context, app *App) error {
				if _, ok, err := app.Expenses.ByID(ctx, id); err != nil {
					return err
				} else if !ok {
					return notFoundf("expense %d not found", id)
				}
				if err := app.Expenses.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "expense removed: %d\n", id)
				return err
			})
		},
	}
}
