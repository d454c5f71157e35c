package core

import "github.com/shopspring/decimal"

// ExpenseSummary aggregates one trip's expenses in a single currency.
// Categories without expenses are absent from CategoryTotals.
type ExpenseSummary struct {
	TotalAmount    decimal.Decimal
	Currency       string
	CategoryTotals map[Category]decimal.Decimal
}

// Clone returns a copy that shares no map with s.
func (s ExpenseSummary) Clone() ExpenseSummary {
	if s.CategoryTotals != nil {
		totals := make(map[Category]decimal.Decimal, len(s.CategoryTotals))
		for c, v := range s.CategoryTotals {
			totals[c] = v
		}
		s.CategoryTotals = totals
	}
	return s
}

// BudgetStatus compares a trip's budget against what has been spent in the budget currency.
type BudgetStatus struct {
	TripID      int64
	HasBudget   bool
	Budget      decimal.Decimal
	Currency    string
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	PercentUsed decimal.Decimal
}

// NewBudgetStatus computes the status for a trip given the amount spent.
func NewBudgetStatus(t Trip, spent decimal.Decimal) BudgetStatus {
	status := BudgetStatus{TripID: t.ID, Spent: spent}
	if !t.Budget.Valid || t.BudgetCurrency == nil {
		return status
	}
	status.HasBudget = true
	status.Budget = t.Budget.Decimal
	status.Currency = *t.BudgetCurrency
	status.Remaining = status.Budget.Sub(spent)
	if status.Budget.IsPositive() {
		status.PercentUsed = spent.Div(status.Budget).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return status
}

// Over reports whether spending exceeds the budget.
func (b BudgetStatus) Over() bool {
	return b.HasBudget && b.Remaining.IsNegative()
}
