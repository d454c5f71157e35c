package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"travelbook/internal/amqp"
	"travelbook/internal/cache"
	"travelbook/internal/core"
	"travelbook/internal/live"
	"travelbook/internal/storage"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ChangeMessage
	err  error
}

func (f *fakePublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) published() []*amqp.ChangeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*amqp.ChangeMessage(nil), f.msgs...)
}

func openHandle(t *testing.T) *storage.Handle {
	t.Helper()
	h, err := storage.MemoryOpener{}.Open(context.Background())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func testTrip() core.Trip {
	currency := "EUR"
	return core.Trip{
		Name:           "Lisbon",
		Destination:    "Portugal",
		StartDate:      core.NewDate(2024, 5, 1),
		EndDate:        core.NewDate(2024, 5, 7),
		Budget:         decimal.NewNullDecimal(decimal.NewFromInt(200)),
		BudgetCurrency: &currency,
	}
}

func testExpense(tripID int64, amount int64, currency string, category core.Category) core.Expense {
	return core.Expense{
		Amount:      decimal.NewFromInt(amount),
		Currency:    currency,
		Category:    category,
		Description: "test",
		Date:        core.NewDate(2024, 5, 2),
		TripID:      tripID,
	}
}

func TestChangeRelayPublishesEveryWrite(t *testing.T) {
	ctx := context.Background()
	h := openHandle(t)
	pub := &fakePublisher{}
	NewChangeRelay(pub).Attach(h.Registry())

	trips := storage.NewTripStore(h)
	expenses := storage.NewExpenseStore(h)

	tripID, err := trips.Create(ctx, testTrip())
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	expID, err := expenses.Create(ctx, testExpense(tripID, 10, "EUR", core.Food))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if err := expenses.Delete(ctx, expID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}

	msgs := pub.published()
	want := []struct {
		table string
		op    string
		row   int64
	}{
		{storage.TableTrips, amqp.OpCreate, tripID},
		{storage.TableExpenses, amqp.OpCreate, expID},
		{storage.TableExpenses, amqp.OpDelete, expID},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, w := range want {
		if msgs[i].Table != w.table || msgs[i].Op != w.op || msgs[i].RowID != w.row {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], w)
		}
		if msgs[i].Timestamp.IsZero() {
			t.Errorf("message %d has no timestamp", i)
		}
	}
}

func TestChangeRelayPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	h := openHandle(t)
	NewChangeRelay(&fakePublisher{err: errors.New("broker down")}).Attach(h.Registry())

	trips := storage.NewTripStore(h)
	id, err := trips.Create(ctx, testTrip())
	if err != nil {
		t.Fatalf("create should succeed even when publishing fails: %v", err)
	}
	if _, ok, _ := trips.ByID(ctx, id); !ok {
		t.Fatal("trip should be stored")
	}
}

func TestChangeRelayWithoutPublisher(t *testing.T) {
	NewChangeRelay(nil).Handle(context.Background(), live.Change{Table: "trips", Op: live.OpCreate, RowID: 1})

	var relay *ChangeRelay
	relay.Handle(context.Background(), live.Change{Table: "trips", Op: live.OpCreate, RowID: 1})
}

func newStats(t *testing.T) (*StatsService, *storage.TripStore, *storage.ExpenseStore, *cache.LRUCache[core.ExpenseSummary]) {
	t.Helper()
	h := openHandle(t)
	trips := storage.NewTripStore(h)
	expenses := storage.NewExpenseStore(h)
	c := cache.NewLRUCache[core.ExpenseSummary](16, time.Minute)
	return NewStatsService(trips, expenses, h.Registry(), c), trips, expenses, c
}

func TestStatsServiceCachesUntilExpenseWrite(t *testing.T) {
	ctx := context.Background()
	stats, trips, expenses, c := newStats(t)

	tripID, _ := trips.Create(ctx, testTrip())
	if _, err := expenses.Create(ctx, testExpense(tripID, 10, "EUR", core.Food)); err != nil {
		t.Fatalf("create: %v", err)
	}

	total, err := stats.TripTotal(ctx, tripID, "EUR")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total = %s, want 10", total)
	}
	if c.Size() != 1 {
		t.Fatalf("expected one cached summary, got %d", c.Size())
	}

	if _, err := trips.Create(ctx, testTrip()); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if c.Size() != 1 {
		t.Fatal("trip writes must not clear the stats cache")
	}

	if _, err := expenses.Create(ctx, testExpense(tripID, 5, "EUR", core.Transportation)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Size() != 0 {
		t.Fatal("expense write should clear the stats cache")
	}

	summary, err := stats.CategoryTotals(ctx, tripID, "EUR")
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	if !summary.TotalAmount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("total after write = %s, want 15", summary.TotalAmount)
	}
	if !summary.CategoryTotals[core.Transportation].Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected category totals %v", summary.CategoryTotals)
	}
}

func TestStatsServiceBudgetStatus(t *testing.T) {
	ctx := context.Background()
	stats, trips, expenses, _ := newStats(t)

	tripID, _ := trips.Create(ctx, testTrip())
	for _, e := range []core.Expense{
		testExpense(tripID, 150, "EUR", core.Accommodation),
		testExpense(tripID, 80, "EUR", core.Food),
		testExpense(tripID, 999, "USD", core.Shopping),
	} {
		if _, err := expenses.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	status, ok, err := stats.BudgetStatus(ctx, tripID)
	if err != nil || !ok {
		t.Fatalf("budget status: ok=%v err=%v", ok, err)
	}
	if !status.HasBudget || status.Currency != "EUR" {
		t.Fatalf("unexpected status %+v", status)
	}
	if !status.Spent.Equal(decimal.NewFromInt(230)) {
		t.Errorf("spent = %s, want 230", status.Spent)
	}
	if !status.Remaining.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("remaining = %s, want -30", status.Remaining)
	}
	if !status.PercentUsed.Equal(decimal.NewFromInt(115)) {
		t.Errorf("percent = %s, want 115", status.PercentUsed)
	}
	if !status.Over() {
		t.Error("trip should be over budget")
	}
}

func TestStatsServiceBudgetStatusWithoutBudget(t *testing.T) {
	ctx := context.Background()
	stats, trips, _, _ := newStats(t)

	trip := testTrip()
	trip.Budget = decimal.NullDecimal{}
	trip.BudgetCurrency = nil
	tripID, _ := trips.Create(ctx, trip)

	status, ok, err := stats.BudgetStatus(ctx, tripID)
	if err != nil || !ok {
		t.Fatalf("budget status: ok=%v err=%v", ok, err)
	}
	if status.HasBudget || status.Over() {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, ok, err := stats.BudgetStatus(ctx, 999); ok || err != nil {
		t.Fatalf("missing trip: ok=%v err=%v", ok, err)
	}
}

func TestStatsServiceCallerCannotAlterCachedSummary(t *testing.T) {
	ctx := context.Background()
	stats, trips, expenses, _ := newStats(t)

	tripID, _ := trips.Create(ctx, testTrip())
	if _, err := expenses.Create(ctx, testExpense(tripID, 10, "EUR", core.Food)); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := stats.CategoryTotals(ctx, tripID, "EUR")
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	first.CategoryTotals[core.Food] = decimal.NewFromInt(999)
	first.CategoryTotals[core.Fees] = decimal.NewFromInt(1)

	second, err := stats.CategoryTotals(ctx, tripID, "EUR")
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	second.CategoryTotals[core.Shopping] = decimal.NewFromInt(5)

	third, err := stats.CategoryTotals(ctx, tripID, "EUR")
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	if len(third.CategoryTotals) != 1 || !third.CategoryTotals[core.Food].Equal(decimal.NewFromInt(10)) {
		t.Fatalf("cached summary was modified by a caller: %v", third.CategoryTotals)
	}
}
