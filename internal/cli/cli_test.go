package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"travelbook/internal/cache"
	"travelbook/internal/core"
	applog "travelbook/internal/log"
	"travelbook/internal/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	h, err := storage.MemoryOpener{}.Open(context.Background())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	app := NewApp(h, cache.NewLRUCache[core.ExpenseSummary](16, time.Minute))
	app.Today = func() core.Date { return core.NewDate(2024, 6, 5) }
	return app
}

func opener(app *App) AppOpener {
	return func(context.Context) (*App, error) { return app, nil }
}

func runCLI(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out, opener(app))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out, err := runCLI(t, app, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return withExit.ExitCode()
	}
	return -1
}

func addParis(t *testing.T, app *App) {
	t.Helper()
	mustRun(t, app, "trip", "add",
		"--name", "Paris Trip",
		"--destination", "Paris, France",
		"--start", "2024-06-01",
		"--end", "2024-06-10",
		"--budget", "100",
		"--budget-currency", "eur")
}

func TestTripAddAndList(t *testing.T) {
	app := newTestApp(t)

	out := mustRun(t, app, "trip", "add",
		"--name", "Paris Trip",
		"--destination", "Paris, France",
		"--start", "2024-06-01",
		"--end", "2024-06-10",
		"--budget", "2000",
		"--budget-currency", "eur")
	if out != "trip created: 1\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out = mustRun(t, app, "trip", "ls")
	want := "#1 Paris Trip (Paris, France) 2024-06-01 to 2024-06-10, budget 2000.00 EUR\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestTripListActiveUsesAppClock(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)
	mustRun(t, app, "trip", "add",
		"--name", "Later",
		"--destination", "Rome",
		"--start", "2024-09-01",
		"--end", "2024-09-03")

	out := mustRun(t, app, "--json", "trip", "ls", "--active")
	var trips []tripView
	if err := json.Unmarshal([]byte(out), &trips); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(trips) != 1 || trips[0].Name != "Paris Trip" {
		t.Fatalf("expected only the trip in progress, got %+v", trips)
	}
}

func TestTripAddValidation(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "end before start",
			args: []string{"--name", "X", "--destination", "Y", "--start", "2024-06-10", "--end", "2024-06-01"},
		},
		{
			name: "missing destination",
			args: []string{"--name", "X", "--start", "2024-06-01", "--end", "2024-06-02"},
		},
		{
			name: "malformed date",
			args: []string{"--name", "X", "--destination", "Y", "--start", "June 1", "--end", "2024-06-02"},
		},
		{
			name: "budget without currency",
			args: []string{"--name", "X", "--destination", "Y", "--start", "2024-06-01", "--end", "2024-06-02", "--budget", "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, app, append([]string{"trip", "add"}, tt.args...)...)
			if code := exitCode(err); code != ExitCodeUsage {
				t.Fatalf("expected usage exit code, got %d (%v)", code, err)
			}
		})
	}

	trips, err := app.Trips.All().Get(context.Background())
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	if len(trips) != 0 {
		t.Fatalf("expected no trips stored, got %d", len(trips))
	}
}

func TestTripUpdateChangesOnlyGivenFlags(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)

	mustRun(t, app, "trip", "update", "1", "--name", "Paris again", "--notes", "window seat")

	trip, ok, err := app.Trips.ByID(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("by id: ok=%v err=%v", ok, err)
	}
	if trip.Name != "Paris again" || trip.Destination != "Paris, France" {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if trip.Notes == nil || *trip.Notes != "window seat" {
		t.Fatalf("expected notes to be set, got %v", trip.Notes)
	}
	if !trip.Budget.Valid || trip.Budget.Decimal.StringFixed(2) != "100.00" {
		t.Fatalf("expected budget to be kept, got %v", trip.Budget)
	}
	if trip.BudgetCurrency == nil || *trip.BudgetCurrency != "EUR" {
		t.Fatalf("expected budget currency EUR, got %v", trip.BudgetCurrency)
	}

	mustRun(t, app, "trip", "update", "1", "--clear-budget")
	trip, _, err = app.Trips.ByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if trip.Budget.Valid || trip.BudgetCurrency != nil {
		t.Fatalf("expected budget to be cleared, got %v %v", trip.Budget, trip.BudgetCurrency)
	}
}

func TestTripNotFound(t *testing.T) {
	app := newTestApp(t)

	for _, args := range [][]string{
		{"trip", "show", "42"},
		{"trip", "update", "42", "--name", "x"},
		{"trip", "rm", "42"},
		{"stats", "budget", "42"},
		{"stats", "total", "42", "--currency", "EUR"},
	} {
		_, err := runCLI(t, app, args...)
		if code := exitCode(err); code != ExitCodeNotFound {
			t.Errorf("%v: expected not found exit code, got %d (%v)", args, code, err)
		}
	}
}

func TestInvalidArguments(t *testing.T) {
	app := newTestApp(t)

	for _, args := range [][]string{
		{"trip", "show"},
		{"trip", "show", "abc"},
		{"trip", "ls", "extra"},
		{"--no-such-flag"},
		{"expense", "ls", "--from", "2024-06-01"},
		{"stats", "total", "1"},
	} {
		_, err := runCLI(t, app, args...)
		if code := exitCode(err); code != ExitCodeUsage {
			t.Errorf("%v: expected usage exit code, got %d (%v)", args, code, err)
		}
	}
}

func TestExpenseAddNormalizesInput(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)

	out := mustRun(t, app, "--json", "expense", "add",
		"--trip", "1",
		"--amount", "12,5",
		"--currency", "eur",
		"--category", "souvenirs",
		"--description", "Fridge magnet")

	var got expenseView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	want := expenseView{
		ID:          1,
		TripID:      1,
		Date:        "2024-06-05",
		Amount:      "12.50",
		Currency:    "EUR",
		Category:    "MISCELLANEOUS",
		Description: "Fridge magnet",
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestExpenseAddErrors(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing trip", []string{"--amount", "1", "--currency", "EUR", "--description", "x"}, ExitCodeUsage},
		{"missing amount", []string{"--trip", "1", "--currency", "EUR", "--description", "x"}, ExitCodeUsage},
		{"negative amount", []string{"--trip", "1", "--amount", "-1", "--currency", "EUR", "--description", "x"}, ExitCodeUsage},
		{"missing description", []string{"--trip", "1", "--amount", "1", "--currency", "EUR"}, ExitCodeUsage},
		{"unknown trip", []string{"--trip", "9", "--amount", "1", "--currency", "EUR", "--description", "x"}, ExitCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, app, append([]string{"expense", "add"}, tt.args...)...)
			if code := exitCode(err); code != tt.code {
				t.Fatalf("expected exit code %d, got %d (%v)", tt.code, code, err)
			}
		})
	}
}

func addExpense(t *testing.T, app *App, trip, amount, currency, category, date string) {
	t.Helper()
	mustRun(t, app, "expense", "add",
		"--trip", trip,
		"--amount", amount,
		"--currency", currency,
		"--category", category,
		"--description", category+" "+date,
		"--date", date)
}

func TestExpenseListFilters(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)
	addParis(t, app)
	addExpense(t, app, "1", "10", "EUR", "FOOD", "2024-06-02")
	addExpense(t, app, "1", "20", "EUR", "SHOPPING", "2024-06-04")
	addExpense(t, app, "2", "30", "EUR", "FOOD", "2024-06-03")

	tests := []struct {
		name string
		args []string
		want []int64
	}{
		{"all", nil, []int64{1, 3, 2}},
		{"by trip", []string{"--trip", "1"}, []int64{1, 2}},
		{"by category", []string{"--category", "food"}, []int64{1, 3}},
		{"by date range", []string{"--from", "2024-06-03", "--to", "2024-06-04"}, []int64{3, 2}},
		{"combined", []string{"--trip", "2", "--category", "food", "--from", "2024-06-01", "--to", "2024-06-02"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustRun(t, app, append([]string{"--json", "expense", "ls"}, tt.args...)...)
			var got []expenseView
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d expenses, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected expense %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestExpenseUpdateAndDelete(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)
	addExpense(t, app, "1", "10", "EUR", "FOOD", "2024-06-02")

	mustRun(t, app, "expense", "update", "1", "--amount", "11.999", "--reimbursable")
	got, ok, err := app.Expenses.ByID(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("by id: ok=%v err=%v", ok, err)
	}
	if got.Amount.StringFixed(2) != "12.00" || !got.IsReimbursable || got.Category != core.Food {
		t.Fatalf("unexpected expense after update %+v", got)
	}

	if out := mustRun(t, app, "expense", "rm", "1"); out != "expense removed: 1\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := runCLI(t, app, "expense", "show", "1"); exitCode(err) != ExitCodeNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStatsCommands(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)
	addExpense(t, app, "1", "60", "EUR", "FOOD", "2024-06-02")
	addExpense(t, app, "1", "70", "EUR", "ACCOMMODATION", "2024-06-03")
	addExpense(t, app, "1", "5", "USD", "FOOD", "2024-06-03")

	if out := mustRun(t, app, "stats", "total", "1", "--currency", "eur"); out != "130.00 EUR\n" {
		t.Fatalf("unexpected total %q", out)
	}

	out := mustRun(t, app, "stats", "summary", "1")
	for _, want := range []string{"Total: 130.00 EUR", "Total: 5.00 USD", "Accommodation", "70.00 EUR"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Shopping") {
		t.Errorf("summary lists a category without expenses:\n%s", out)
	}

	out = mustRun(t, app, "stats", "budget", "1")
	want := "Spent 130.00 EUR of 100.00 EUR (130.0%), 30.00 EUR over budget\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}

	out = mustRun(t, app, "--json", "stats", "budget", "1")
	var status budgetView
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !status.Over || status.Remaining != "-30.00" {
		t.Fatalf("unexpected budget status %+v", status)
	}
}

func TestStatsFollowWrites(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)
	addExpense(t, app, "1", "10", "EUR", "FOOD", "2024-06-02")

	if out := mustRun(t, app, "stats", "total", "1", "--currency", "EUR"); out != "10.00 EUR\n" {
		t.Fatalf("unexpected total %q", out)
	}
	addExpense(t, app, "1", "5", "EUR", "FOOD", "2024-06-03")
	if out := mustRun(t, app, "stats", "total", "1", "--currency", "EUR"); out != "15.00 EUR\n" {
		t.Fatalf("expected cached total to be dropped after a write, got %q", out)
	}
}

func TestCategoriesCommand(t *testing.T) {
	app := newTestApp(t)

	out := mustRun(t, app, "categories")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(core.AllCategories()) {
		t.Fatalf("expected %d categories, got %d", len(core.AllCategories()), len(lines))
	}
	if !strings.HasPrefix(lines[0], "ACCOMMODATION") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestMapCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"storage", &storage.Error{Op: "list", Table: "trips", Err: errors.New("disk I/O error")}, ExitCodeStorage},
		{"corrupt row", &storage.Error{Op: "decode", Table: "trips", Err: core.ErrInvalidDate}, ExitCodeStorage},
		{"validation", fmt.Errorf("wrapped: %w", core.ErrEmptyCurrency), ExitCodeUsage},
		{"keeps exit code", notFoundf("gone"), ExitCodeNotFound},
		{"other", errors.New("boom"), ExitCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(mapCommandError(tt.err)); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

// syncBuffer lets the test read output while a command is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in:\n%s", want, out.String())
}

func TestWatchTripsPrintsEveryChange(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCommand(out, opener(app))
	cmd.SetArgs([]string{"watch", "trips"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitForOutput(t, out, "-- update 1\nno trips\n")

	trip := core.Trip{
		Name:        "Lisbon",
		Destination: "Portugal",
		StartDate:   core.NewDate(2024, 7, 1),
		EndDate:     core.NewDate(2024, 7, 4),
	}
	if _, err := app.Trips.Create(ctx, trip); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForOutput(t, out, "-- update 2\n#1 Lisbon (Portugal) 2024-07-01 to 2024-07-04\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestExpenseListCategoryFilterIsExactOnEveryPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "travelbook.db")
	h, err := storage.FileOpener{Path: path}.Open(ctx)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	app := NewApp(h, cache.NewLRUCache[core.ExpenseSummary](16, time.Minute))

	addParis(t, app)
	addExpense(t, app, "1", "10", "EUR", "MISCELLANEOUS", "2024-06-02")

	// A row written by an older client with a category this build does not know.
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.ExecContext(ctx, `
		INSERT INTO expenses (amount, currency, category, description, date, trip_id)
		VALUES ('4', 'EUR', 'SOUVENIRS', 'magnet', '2024-06-03', 1)`); err != nil {
		t.Fatalf("insert raw row: %v", err)
	}

	for _, args := range [][]string{
		{"--category", "miscellaneous"},
		{"--trip", "1", "--category", "miscellaneous"},
		{"--trip", "1", "--category", "miscellaneous", "--from", "2024-06-01", "--to", "2024-06-05"},
	} {
		out := mustRun(t, app, append([]string{"--json", "expense", "ls"}, args...)...)
		var got []expenseView
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("%v: decode output: %v", args, err)
		}
		if len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("%v: expected only expense 1, got %+v", args, got)
		}
	}
}

func TestExpenseAddNotesDateOutsideTrip(t *testing.T) {
	app := newTestApp(t)
	addParis(t, app)

	out := mustRun(t, app, "expense", "add", "--trip", "1", "--amount", "3", "--currency", "EUR",
		"--description", "airport coffee", "--date", "2024-05-31")
	want := "expense created: 1\nnote: 2024-05-31 is outside trip 1 (2024-06-01 to 2024-06-10)\n"
	if out != want {
		t.Fatalf("unexpected output %q, want %q", out, want)
	}

	out = mustRun(t, app, "expense", "add", "--trip", "1", "--amount", "3", "--currency", "EUR",
		"--description", "croissant", "--date", "2024-06-10")
	if out != "expense created: 2\n" {
		t.Fatalf("last trip day must not be noted, got %q", out)
	}
}

func TestWithAppPutsLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	app := newTestApp(t)
	app.Logger = applog.New(applog.Config{
		Component: applog.ComponentCLI,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	deps := commandDeps{out: &bytes.Buffer{}, open: opener(app), globals: &globalOptions{}}

	err := withApp(context.Background(), deps, func(ctx context.Context, app *App) error {
		if applog.FromContext(ctx) != app.Logger {
			t.Error("command context does not carry the app logger")
		}
		_, err := app.Trips.Create(ctx, core.Trip{
			Name:        "Oslo",
			Destination: "Norway",
			StartDate:   core.NewDate(2024, 8, 1),
			EndDate:     core.NewDate(2024, 8, 4),
		})
		return err
	})
	if err != nil {
		t.Fatalf("withApp: %v", err)
	}
	if !strings.Contains(buf.String(), "component=storage") || !strings.Contains(buf.String(), "Trip created") {
		t.Fatalf("store did not log through the context logger: %q", buf.String())
	}
}
