package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"travelbook/internal/core"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
)

// ExpenseStore maps core.Expense to the expenses table and aggregates amounts per trip.
type ExpenseStore struct {
	queries  *Queries
	registry *live.Registry
}

func NewExpenseStore(h *Handle) *ExpenseStore {
	return &ExpenseStore{queries: h.queries, registry: h.Registry()}
}

// Create inserts e, ignoring e.ID, and returns the id assigned by the database.
// The trip id is stored as given; it does not have to reference an existing trip.
func (s *ExpenseStore) Create(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.queries.CreateExpense(ctx, expenseParams(e))
	if err != nil {
		return 0, wrap("create", TableExpenses, err)
	}

	fields := applog.NewFields().WithExpense(id, e.TripID, e.Amount.String(), e.Currency, e.Category.String())
	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Expense created", fields.ToSlice()...)

	s.registry.Invalidate(ctx, live.Change{Table: TableExpenses, Op: live.OpCreate, RowID: id})
	return id, nil
}

// Update overwrites every field of the row with e.ID. A missing row is not an error.
func (s *ExpenseStore) Update(ctx context.Context, e core.Expense) error {
	n, err := s.queries.UpdateExpense(ctx, UpdateExpenseParams{CreateExpenseParams: expenseParams(e), ID: e.ID})
	if err != nil {
		return wrap("update", TableExpenses, err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Expense updated", applog.FieldExpenseID, e.ID, "rows", n)

	s.registry.Invalidate(ctx, live.Change{Table: TableExpenses, Op: live.OpUpdate, RowID: e.ID})
	return nil
}

func (s *ExpenseStore) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteExpense(ctx, id)
	if err != nil {
		return wrap("delete", TableExpenses, err)
	}

	applog.For(ctx, applog.ComponentStorage).DebugContext(ctx, "Expense deleted", applog.FieldExpenseID, id, "rows", n)

	s.registry.Invalidate(ctx, live.Change{Table: TableExpenses, Op: live.OpDelete, RowID: id})
	return nil
}

// ByID looks an expense up once. ok is false when no such expense exists.
func (s *ExpenseStore) ByID(ctx context.Context, id int64) (core.Expense, bool, error) {
	row, err := s.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, wrap("get", TableExpenses, err)
	}
	e, err := row.toExpense()
	if err != nil {
		return core.Expense{}, false, wrap("decode", TableExpenses, err)
	}
	return e, true, nil
}

func (s *ExpenseStore) All() *live.Query[[]core.Expense] {
	return s.query("list", s.queries.ListExpenses)
}

func (s *ExpenseStore) ByTrip(tripID int64) *live.Query[[]core.Expense] {
	return s.query("list by trip", func(ctx context.Context) ([]ExpenseRow, error) {
		return s.queries.ListExpensesByTrip(ctx, tripID)
	})
}

// ByCategory matches the stored category name exactly, so rows holding an
// unknown name are not returned for Miscellaneous even though they load as it.
func (s *ExpenseStore) ByCategory(category core.Category) *live.Query[[]core.Expense] {
	return s.query("list by category", func(ctx context.Context) ([]ExpenseRow, error) {
		return s.queries.ListExpensesByCategory(ctx, category.String())
	})
}

// ByDateRange returns expenses dated between start and end, both inclusive.
func (s *ExpenseStore) ByDateRange(start, end core.Date) *live.Query[[]core.Expense] {
	return s.query("list by date range", func(ctx context.Context) ([]ExpenseRow, error) {
		return s.queries.ListExpensesByDateRange(ctx, start.String(), end.String())
	})
}

// TripTotal sums the trip's amounts recorded in exactly currency. No
// conversion is done between currencies; zero is returned when nothing matches.
func (s *ExpenseStore) TripTotal(ctx context.Context, tripID int64, currency string) (decimal.Decimal, error) {
	rows, err := s.queries.ListTripAmounts(ctx, tripID, currency)
	if err != nil {
		return decimal.Zero, wrap("total", TableExpenses, err)
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total, nil
}

// TripCategoryTotals groups the trip's amounts in currency by category.
func (s *ExpenseStore) TripCategoryTotals(ctx context.Context, tripID int64, currency string) (core.ExpenseSummary, error) {
	rows, err := s.queries.ListTripAmounts(ctx, tripID, currency)
	if err != nil {
		return core.ExpenseSummary{}, wrap("category totals", TableExpenses, err)
	}
	return summarize(currency, rows), nil
}

// TripSummaries returns one summary per currency used on the trip, ordered by currency code.
func (s *ExpenseStore) TripSummaries(ctx context.Context, tripID int64) ([]core.ExpenseSummary, error) {
	rows, err := s.queries.ListAllTripAmounts(ctx, tripID)
	if err != nil {
		return nil, wrap("summaries", TableExpenses, err)
	}

	summaries := []core.ExpenseSummary{}
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].Currency == rows[start].Currency {
			end++
		}
		summaries = append(summaries, summarize(rows[start].Currency, rows[start:end]))
		start = end
	}
	return summaries, nil
}

func summarize(currency string, rows []AmountRow) core.ExpenseSummary {
	summary := core.ExpenseSummary{
		TotalAmount:    decimal.Zero,
		Currency:       currency,
		CategoryTotals: make(map[core.Category]decimal.Decimal),
	}
	for _, r := range rows {
		c := core.ParseCategory(r.Category)
		if sub, ok := summary.CategoryTotals[c]; ok {
			summary.CategoryTotals[c] = sub.Add(r.Amount)
		} else {
			summary.CategoryTotals[c] = r.Amount
		}
	}
	for _, sub := range summary.CategoryTotals {
		summary.TotalAmount = summary.TotalAmount.Add(sub)
	}
	return summary
}

func (s *ExpenseStore) query(op string, fetch func(context.Context) ([]ExpenseRow, error)) *live.Query[[]core.Expense] {
	return live.NewQuery(s.registry, func(ctx context.Context) ([]core.Expense, error) {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, wrap(op, TableExpenses, err)
		}
		expenses, err := toExpenses(rows)
		if err != nil {
			return nil, wrap("decode", TableExpenses, err)
		}
		return expenses, nil
	}, TableExpenses)
}
