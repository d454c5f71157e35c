package worker

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"travelbook/internal/amqp"
	applog "travelbook/internal/log"
	"travelbook/internal/sheets"
	"travelbook/internal/storage"
)

// SyncWorker mirrors expenses from the local store to a spreadsheet.
type SyncWorker struct {
	trips    *storage.TripStore
	expenses *storage.ExpenseStore
	mirror   sheets.Mirror
}

func NewSyncWorker(trips *storage.TripStore, expenses *storage.ExpenseStore, mirror sheets.Mirror) *SyncWorker {
	return &SyncWorker{
		trips:    trips,
		expenses: expenses,
		mirror:   mirror,
	}
}

// HandleChange applies one change message to the mirror. Expense writes are
// copied, expense deletions remove the row, and a trip update rewrites the
// rows of that trip so they carry its new name. Anything else is ignored.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	logger := applog.For(ctx, applog.ComponentWorker)
	fields := applog.NewFields().WithChange(msg.Table, msg.Op, msg.RowID)
	fields[applog.FieldMessageID] = msg.ID
	logger.InfoContext(ctx, "Processing change message", fields.ToSlice()...)

	switch {
	case msg.Table == storage.TableExpenses && msg.Op == amqp.OpDelete:
		if err := w.mirror.DeleteExpense(ctx, msg.RowID); err != nil {
			return fmt.Errorf("delete expense row: %w", err)
		}
		logger.InfoContext(ctx, "Expense row deleted", applog.FieldExpenseID, msg.RowID)
		return nil

	case msg.Table == storage.TableExpenses:
		return w.syncExpense(ctx, msg.RowID)

	case msg.Table == storage.TableTrips && msg.Op == amqp.OpUpdate:
		return w.syncTrip(ctx, msg.RowID)

	default:
		logger.DebugContext(ctx, "Ignoring change message", applog.FieldTable, msg.Table, applog.FieldOperation, msg.Op)
		return nil
	}
}

func (w *SyncWorker) syncExpense(ctx context.Context, id int64) error {
	expense, ok, err := w.expenses.ByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}
	if !ok {
		// Deleted after the message was published; the delete message follows.
		applog.For(ctx, applog.ComponentWorker).WarnContext(ctx, "Expense no longer exists, skipping", applog.FieldExpenseID, id)
		return nil
	}

	name, err := w.tripName(ctx, expense.TripID)
	if err != nil {
		return err
	}
	return w.write(ctx, sheets.NewExpenseRow(expense, name))
}

func (w *SyncWorker) syncTrip(ctx context.Context, tripID int64) error {
	name, err := w.tripName(ctx, tripID)
	if err != nil {
		return err
	}
	expenses, err := w.expenses.ByTrip(tripID).Get(ctx)
	if err != nil {
		return fmt.Errorf("list trip expenses: %w", err)
	}
	for _, e := range expenses {
		if err := w.write(ctx, sheets.NewExpenseRow(e, name)); err != nil {
			return err
		}
	}
	applog.For(ctx, applog.ComponentWorker).InfoContext(ctx, "Trip rows refreshed", applog.FieldTripID, tripID, "count", len(expenses))
	return nil
}

func (w *SyncWorker) tripName(ctx context.Context, tripID int64) (string, error) {
	trip, ok, err := w.trips.ByID(ctx, tripID)
	if err != nil {
		return "", fmt.Errorf("get trip from storage: %w", err)
	}
	if !ok {
		return "", nil
	}
	return trip.Name, nil
}

func (w *SyncWorker) write(ctx context.Context, row sheets.ExpenseRow) error {
	ref, err := w.mirror.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	applog.For(ctx, applog.ComponentWorker).InfoContext(ctx, "Successfully synced expense",
		applog.FieldExpenseID, row.ExpenseID,
		applog.FieldSheetsRef, ref,
		applog.FieldAmount, row.Amount.StringFixed(2),
		applog.FieldCurrency, row.Currency)
	return nil
}

// ReconcileResult counts what Reconcile changed.
type ReconcileResult struct {
	Written int
	Deleted int
	Errors  int
}

// Reconcile brings the mirror in line with the store. It recovers from change
// messages lost while the worker or the broker was down.
func (w *SyncWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	logger := applog.For(ctx, applog.ComponentWorker)
	start := time.Now()

	trips, err := w.trips.All().Get(ctx)
	if err != nil {
		return res, fmt.Errorf("list trips: %w", err)
	}
	names := make(map[int64]string, len(trips))
	for _, t := range trips {
		names[t.ID] = t.Name
	}

	expenses, err := w.expenses.All().Get(ctx)
	if err != nil {
		return res, fmt.Errorf("list expenses: %w", err)
	}
	rows, err := w.mirror.ListRows(ctx)
	if err != nil {
		return res, fmt.Errorf("list mirrored rows: %w", err)
	}

	mirrored := make(map[int64]sheets.ExpenseRow, len(rows))
	for _, r := range rows {
		mirrored[r.ExpenseID] = r
	}

	stored := make(map[int64]struct{}, len(expenses))
	for _, e := range expenses {
		stored[e.ID] = struct{}{}
		want := sheets.NewExpenseRow(e, names[e.TripID])
		if got, ok := mirrored[e.ID]; ok && sameRow(got, want) {
			continue
		}
		if err := w.write(ctx, want); err != nil {
			logger.ErrorContext(ctx, "Failed to sync expense during reconcile", applog.FieldExpenseID, e.ID, applog.FieldError, err)
			res.Errors++
			continue
		}
		res.Written++
	}

	for id := range mirrored {
		if _, ok := stored[id]; ok {
			continue
		}
		if err := w.mirror.DeleteExpense(ctx, id); err != nil {
			logger.ErrorContext(ctx, "Failed to delete stale row", applog.FieldExpenseID, id, applog.FieldError, err)
			res.Errors++
			continue
		}
		res.Deleted++
	}

	fields := applog.NewFields().WithOperation(applog.OpSync)
	fields[applog.FieldDuration] = time.Since(start).Milliseconds()
	logger.InfoContext(ctx, "Reconcile completed", append(fields.ToSlice(),
		"expenses", len(expenses),
		"written", res.Written,
		"deleted", res.Deleted,
		"errors", res.Errors)...)

	return res, nil
}

// sameRow compares rows cell by cell, as they would appear in the sheet.
func sameRow(a, b sheets.ExpenseRow) bool {
	return reflect.DeepEqual(a.Values(), b.Values())
}

