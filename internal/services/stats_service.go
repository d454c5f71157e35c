package services

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"travelbook/internal/cache"
	"travelbook/internal/core"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
	"travelbook/internal/storage"
)

// StatsService serves per-trip aggregates, caching them until the next
// write to the expenses table.
type StatsService struct {
	trips    *storage.TripStore
	expenses *storage.ExpenseStore
	cache    cache.Cache[core.ExpenseSummary]

	// generation is bumped on every invalidation so a read that raced with a
	// write does not repopulate the cache with a stale summary.
	generation atomic.Uint64
}

func NewStatsService(trips *storage.TripStore, expenses *storage.ExpenseStore, reg *live.Registry, c cache.Cache[core.ExpenseSummary]) *StatsService {
	s := &StatsService{
		trips:    trips,
		expenses: expenses,
		cache:    c,
	}
	reg.OnInvalidate(s.invalidate)
	return s
}

func (s *StatsService) invalidate(ctx context.Context, c live.Change) {
	if c.Table != storage.TableExpenses {
		return
	}
	s.generation.Add(1)
	s.cache.Clear()
	applog.For(ctx, applog.ComponentStats).DebugContext(ctx, "Stats cache cleared", applog.FieldRowID, c.RowID)
}

func cacheKey(tripID int64, currency string) string {
	return strconv.FormatInt(tripID, 10) + "|" + currency
}

// CategoryTotals returns the trip's totals per category in currency.
func (s *StatsService) CategoryTotals(ctx context.Context, tripID int64, currency string) (core.ExpenseSummary, error) {
	key := cacheKey(tripID, currency)
	// Cached summaries are copied both ways so callers cannot alter a hit.
	if summary, ok := s.cache.Get(key); ok {
		return summary.Clone(), nil
	}

	gen := s.generation.Load()
	summary, err := s.expenses.TripCategoryTotals(ctx, tripID, currency)
	if err != nil {
		return core.ExpenseSummary{}, fmt.Errorf("category totals: %w", err)
	}
	if s.generation.Load() == gen {
		s.cache.Set(key, summary.Clone())
	}
	return summary, nil
}

// TripTotal returns the sum of the trip's expenses in currency.
func (s *StatsService) TripTotal(ctx context.Context, tripID int64, currency string) (decimal.Decimal, error) {
	summary, err := s.CategoryTotals(ctx, tripID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.TotalAmount, nil
}

// BudgetStatus compares the trip's budget with what was spent in the budget
// currency. ok is false when the trip does not exist.
func (s *StatsService) BudgetStatus(ctx context.Context, tripID int64) (core.BudgetStatus, bool, error) {
	trip, ok, err := s.trips.ByID(ctx, tripID)
	if err != nil || !ok {
		return core.BudgetStatus{}, ok, err
	}
	if !trip.Budget.Valid || trip.BudgetCurrency == nil {
		return core.NewBudgetStatus(trip, decimal.Zero), true, nil
	}

	spent, err := s.TripTotal(ctx, tripID, *trip.BudgetCurrency)
	if err != nil {
		return core.BudgetStatus{}, false, err
	}
	return core.NewBudgetStatus(trip, spent), true, nil
}
