package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"travelbook/internal/core"
)

type tripView struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Destination    string  `json:"destination"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Budget         *string `json:"budget,omitempty"`
	BudgetCurrency *string `json:"budget_currency,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

type expenseView struct {
	ID             int64   `json:"id"`
	TripID         int64   `json:"trip_id"`
	Date           string  `json:"date"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
	IsReimbursable bool    `json:"is_reimbursable"`
	ReceiptPath    *string `json:"receipt_path,omitempty"`
	PaymentMethod  *string `json:"payment_method,omitempty"`
	Location       *string `json:"location,omitempty"`
}

type summaryView struct {
	Currency   string            `json:"currency"`
	Total      string            `json:"total"`
	Categories map[string]string `json:"categories"`
}

type budgetView struct {
	TripID      int64  `json:"trip_id"`
	HasBudget   bool   `json:"has_budget"`
	Budget      string `json:"budget,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Spent       string `json:"spent"`
	Remaining   string `json:"remaining,omitempty"`
	PercentUsed string `json:"percent_used,omitempty"`
	Over        bool   `json:"over"`
}

func newTripView(t core.Trip) tripView {
	v := tripView{
		ID:             t.ID,
		Name:           t.Name,
		Destination:    t.Destination,
		StartDate:      t.StartDate.String(),
		EndDate:        t.EndDate.String(),
		BudgetCurrency: t.BudgetCurrency,
		Notes:          t.Notes,
	}
	if t.Budget.Valid {
		s := t.Budget.Decimal.StringFixed(2)
		v.Budget = &s
	}
	return v
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:             e.ID,
		TripID:         e.TripID,
		Date:           e.Date.String(),
		Amount:         e.Amount.StringFixed(2),
		Currency:       e.Currency,
		Category:       e.Category.String(),
		Description:    e.Description,
		IsReimbursable: e.IsReimbursable,
		ReceiptPath:    e.ReceiptPath,
		PaymentMethod:  e.PaymentMethod,
		Location:       e.Location,
	}
}

func newSummaryView(s core.ExpenseSummary) summaryView {
	v := summaryView{
		Currency:   s.Currency,
		Total:      s.TotalAmount.StringFixed(2),
		Categories: make(map[string]string, len(s.CategoryTotals)),
	}
	for c, amount := range s.CategoryTotals {
		v.Categories[c.String()] = amount.StringFixed(2)
	}
	return v
}

func newBudgetView(b core.BudgetStatus) budgetView {
	v := budgetView{
		TripID:    b.TripID,
		HasBudget: b.HasBudget,
		Spent:     b.Spent.StringFixed(2),
		Over:      b.Over(),
	}
	if b.HasBudget {
		v.Budget = b.Budget.StringFixed(2)
		v.Currency = b.Currency
		v.Remaining = b.Remaining.StringFixed(2)
		v.PercentUsed = b.PercentUsed.StringFixed(1)
	}
	return v
}

func tripViews(trips []core.Trip) []tripView {
	views := make([]tripView, 0, len(trips))
	for _, t := range trips {
		views = append(views, newTripView(t))
	}
	return views
}

func expenseViews(expenses []core.Expense) []expenseView {
	views := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, newExpenseView(e))
	}
	return views
}

func writeTrip(w io.Writer, t core.Trip) error {
	line := fmt.Sprintf("#%d %s (%s) %s to %s", t.ID, t.Name, t.Destination, t.StartDate, t.EndDate)
	if t.Budget.Valid && t.BudgetCurrency != nil {
		line += ", budget " + core.FormatAmount(t.Budget.Decimal, *t.BudgetCurrency)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func writeTrips(w io.Writer, trips []core.Trip) error {
	if len(trips) == 0 {
		_, err := fmt.Fprintln(w, "no trips")
		return err
	}
	for _, t := range trips {
		if err := writeTrip(w, t); err != nil {
			return err
		}
	}
	return nil
}

func writeExpense(w io.Writer, e core.Expense) error {
	_, err := fmt.Fprintf(w, "#%d %s %s %s %s (trip %d)\n",
		e.ID, e.Date, core.FormatAmount(e.Amount, e.Currency), e.Category.DisplayName(), e.Description, e.TripID)
	return err
}

func writeExpenses(w io.Writer, expenses []core.Expense) error {
	if len(expenses) == 0 {
		_, err := fmt.Fprintln(w, "no expenses")
		return err
	}
	for _, e := range expenses {
		if err := writeExpense(w, e); err != nil {
			return err
		}
	}
	return nil
}

// writeSummary prints the total and then one line per category in
// declaration order, skipping categories without expenses.
func writeSummary(w io.Writer, s core.ExpenseSummary) error {
	if _, err := fmt.Fprintf(w, "Total: %s\n", core.FormatAmount(s.TotalAmount, s.Currency)); err != nil {
		return err
	}
	for _, c := range core.AllCategories() {
		amount, ok := s.CategoryTotals[c]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %-15s %s\n", c.DisplayName(), core.FormatAmount(amount, s.Currency)); err != nil {
			return err
		}
	}
	return nil
}

func writeBudget(w io.Writer, b core.BudgetStatus) error {
	if !b.HasBudget {
		_, err := fmt.Fprintf(w, "trip %d has no budget\n", b.TripID)
		return err
	}
	state := "remaining"
	remaining := b.Remaining
	if b.Over() {
		state = "over budget"
		remaining = remaining.Neg()
	}
	_, err := fmt.Fprintf(w, "Spent %s of %s (%s%%), %s %s\n",
		core.FormatAmount(b.Spent, b.Currency),
		core.FormatAmount(b.Budget, b.Currency),
		b.PercentUsed.StringFixed(1),
		core.FormatAmount(remaining, b.Currency),
		state)
	return err
}

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

// optional returns nil for a blank flag value.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeCurrency(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
