package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the prepared SQL for the trips and expenses tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type TripRow struct {
	ID             int64
	Name           string
	Destination    string
	StartDate      string
	EndDate        string
	Budget         decimal.NullDecimal
	BudgetCurrency sql.NullString
	Notes          sql.NullString
}

type ExpenseRow struct {
	ID             int64
	Amount         decimal.Decimal
	Currency       string
	Category       string
	Description    string
	Date           string
	TripID         int64
	IsReimbursable int64
	ReceiptPath    sql.NullString
	PaymentMethod  sql.NullString
	Location       sql.NullString
}

type AmountRow struct {
	Currency string
	Category string
	Amount   decimal.Decimal
}

const tripColumns = `id, name, destination, start_date, end_date, budget, budget_currency, notes`

const expenseColumns = `id, amount, currency, category, description, date, trip_id, is_reimbursable, receipt_path, payment_method, location`

func scanTrip(row interface{ Scan(...any) error }) (TripRow, error) {
	var i TripRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Destination,
		&i.StartDate,
		&i.EndDate,
		&i.Budget,
		&i.BudgetCurrency,
		&i.Notes,
	)
	return i, err
}

func scanExpense(row interface{ Scan(...any) error }) (ExpenseRow, error) {
	var i ExpenseRow
	err := row.Scan(
		&i.ID,
		&i.Amount,
		&i.Currency,
		&i.Category,
		&i.Description,
		&i.Date,
		&i.TripID,
		&i.IsReimbursable,
		&i.ReceiptPath,
		&i.PaymentMethod,
		&i.Location,
	)
	return i, err
}

func collect[T any](rows *sql.Rows, err error, scan func(interface{ Scan(...any) error }) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []T{}
	for rows.Next() {
		i, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTrip = `
INSERT INTO trips (name, destination, start_date, end_date, budget, budget_currency, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateTripParams struct {
	Name           string
	Destination    string
	StartDate      string
	EndDate        string
	Budget         decimal.NullDecimal
	BudgetCurrency sql.NullString
	Notes          sql.NullString
}

// CreateTrip inserts and returns the generated id in one statement.
func (q *Queries) CreateTrip(ctx context.Context, arg CreateTripParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTrip,
		arg.Name,
		arg.Destination,
		arg.StartDate,
		arg.EndDate,
		arg.Budget,
		arg.BudgetCurrency,
		arg.Notes,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateTrip = `
UPDATE trips
SET name = ?, destination = ?, start_date = ?, end_date = ?, budget = ?, budget_currency = ?, notes = ?
WHERE id = ?`

type UpdateTripParams struct {
	CreateTripParams
	ID int64
}

func (q *Queries) UpdateTrip(ctx context.Context, arg UpdateTripParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTrip,
		arg.Name,
		arg.Destination,
		arg.StartDate,
		arg.EndDate,
		arg.Budget,
		arg.BudgetCurrency,
		arg.Notes,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTrip = `DELETE FROM trips WHERE id = ?`

func (q *Queries) DeleteTrip(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTrip, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getTrip = `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`

func (q *Queries) GetTrip(ctx context.Context, id int64) (TripRow, error) {
	return scanTrip(q.db.QueryRowContext(ctx, getTrip, id))
}

const listTrips = `SELECT ` + tripColumns + ` FROM trips ORDER BY id`

func (q *Queries) ListTrips(ctx context.Context) ([]TripRow, error) {
	rows, err := q.db.QueryContext(ctx, listTrips)
	return collect(rows, err, scanTrip)
}

const listActiveTrips = `
SELECT ` + tripColumns + ` FROM trips
WHERE start_date <= ?1 AND end_date >= ?1
ORDER BY id`

func (q *Queries) ListActiveTrips(ctx context.Context, today string) ([]TripRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveTrips, today)
	return collect(rows, err, scanTrip)
}

const createExpense = `
INSERT INTO expenses (amount, currency, category, description, date, trip_id, is_reimbursable, receipt_path, payment_method, location)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateExpenseParams struct {
	Amount         decimal.Decimal
	Currency       string
	Category       string
	Description    string
	Date           string
	TripID         int64
	IsReimbursable int64
	ReceiptPath    sql.NullString
	PaymentMethod  sql.NullString
	Location       sql.NullString
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Amount,
		arg.Currency,
		arg.Category,
		arg.Description,
		arg.Date,
		arg.TripID,
		arg.IsReimbursable,
		arg.ReceiptPath,
		arg.PaymentMethod,
		arg.Location,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateExpense = `
UPDATE expenses
SET amount = ?, currency = ?, category = ?, description = ?, date = ?, trip_id = ?,
    is_reimbursable = ?, receipt_path = ?, payment_method = ?, location = ?
WHERE id = ?`

type UpdateExpenseParams struct {
	CreateExpenseParams
	ID int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.Amount,
		arg.Currency,
		arg.Category,
		arg.Description,
		arg.Date,
		arg.TripID,
		arg.IsReimbursable,
		arg.ReceiptPath,
		arg.PaymentMethod,
		arg.Location,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (ExpenseRow, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpenses = `SELECT ` + expenseColumns + ` FROM expenses ORDER BY date, id`

func (q *Queries) ListExpenses(ctx context.Context) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	return collect(rows, err, scanExpense)
}

const listExpensesByTrip = `SELECT ` + expenseColumns + ` FROM expenses WHERE trip_id = ? ORDER BY date, id`

func (q *Queries) ListExpensesByTrip(ctx context.Context, tripID int64) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByTrip, tripID)
	return collect(rows, err, scanExpense)
}

const listExpensesByCategory = `SELECT ` + expenseColumns + ` FROM expenses WHERE category = ? ORDER BY date, id`

func (q *Queries) ListExpensesByCategory(ctx context.Context, category string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByCategory, category)
	return collect(rows, err, scanExpense)
}

const listExpensesByDateRange = `
SELECT ` + expenseColumns + ` FROM expenses
WHERE date >= ? AND date <= ?
ORDER BY date, id`

// ListExpensesByDateRange compares fixed-width YYYY-MM-DD text, which sorts like the dates themselves.
func (q *Queries) ListExpensesByDateRange(ctx context.Context, start, end string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByDateRange, start, end)
	return collect(rows, err, scanExpense)
}

const listTripAmounts = `
SELECT currency, category, amount FROM expenses
WHERE trip_id = ? AND currency = ?`

// ListTripAmounts returns the raw amounts to aggregate; sums are computed in
// decimal arithmetic by the caller so that TEXT amounts stay exact.
func (q *Queries) ListTripAmounts(ctx context.Context, tripID int64, currency string) ([]AmountRow, error) {
	rows, err := q.db.QueryContext(ctx, listTripAmounts, tripID, currency)
	return collect(rows, err, scanAmount)
}

const listAllTripAmounts = `
SELECT currency, category, amount FROM expenses
WHERE trip_id = ?
ORDER BY currency`

func (q *Queries) ListAllTripAmounts(ctx context.Context, tripID int64) ([]AmountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAllTripAmounts, tripID)
	return collect(rows, err, scanAmount)
}

func scanAmount(row interface{ Scan(...any) error }) (AmountRow, error) {
	var i AmountRow
	err := row.Scan(&i.Currency, &i.Category, &i.Amount)
	return i, err
}
