package sheets

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"travelbook/internal/core"
)

// ExpenseRow is one expense as mirrored to a spreadsheet, denormalized with
// the name of its trip.
type ExpenseRow struct {
	ExpenseID    int64
	Date         core.Date
	Trip         string
	Description  string
	Category     core.Category
	Amount       decimal.Decimal
	Currency     string
	Reimbursable bool
}

// NewExpenseRow builds the mirrored row for e. tripName may be empty when the
// trip no longer exists.
func NewExpenseRow(e core.Expense, tripName string) ExpenseRow {
	return ExpenseRow{
		ExpenseID:    e.ID,
		Date:         e.Date,
		Trip:         tripName,
		Description:  e.Description,
		Category:     e.Category,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Reimbursable: e.IsReimbursable,
	}
}

// Values returns the cells of the row in column order A..H.
func (r ExpenseRow) Values() []any {
	reimbursable := "no"
	if r.Reimbursable {
		reimbursable = "yes"
	}
	return []any{
		strconv.FormatInt(r.ExpenseID, 10),
		r.Date.String(),
		r.Trip,
		r.Description,
		r.Category.String(),
		r.Amount.StringFixed(2),
		r.Currency,
		reimbursable,
	}
}

// Ports for outbound adapters.
type (
	// ExpenseWriter writes a row, replacing any row already holding the same expense id.
	ExpenseWriter interface {
		Append(ctx context.Context, row ExpenseRow) (rowRef string, err error)
	}

	// ExpenseDeleter removes the row of an expense. Removing an absent row is not an error.
	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, expenseID int64) error
	}

	// ExpenseLister reads back every mirrored row.
	ExpenseLister interface {
		ListRows(ctx context.Context) ([]ExpenseRow, error)
	}

	// Mirror is the full set of operations the sync worker needs.
	Mirror interface {
		ExpenseWriter
		ExpenseDeleter
		ExpenseLister
	}
)
