package storage

import (
	"database/sql"
	"fmt"

	"travelbook/internal/core"
)

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolFlag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func tripParams(t core.Trip) CreateTripParams {
	return CreateTripParams{
		Name:           t.Name,
		Destination:    t.Destination,
		StartDate:      t.StartDate.String(),
		EndDate:        t.EndDate.String(),
		Budget:         t.Budget,
		BudgetCurrency: nullString(t.BudgetCurrency),
		Notes:          nullString(t.Notes),
	}
}

func (r TripRow) toTrip() (core.Trip, error) {
	start, err := core.ParseDate(r.StartDate)
	if err != nil {
		return core.Trip{}, fmt.Errorf("trip %d start date: %w", r.ID, err)
	}
	end, err := core.ParseDate(r.EndDate)
	if err != nil {
		return core.Trip{}, fmt.Errorf("trip %d end date: %w", r.ID, err)
	}
	return core.Trip{
		ID:             r.ID,
		Name:           r.Name,
		Destination:    r.Destination,
		StartDate:      start,
		EndDate:        end,
		Budget:         r.Budget,
		BudgetCurrency: stringPtr(r.BudgetCurrency),
		Notes:          stringPtr(r.Notes),
	}, nil
}

func expenseParams(e core.Expense) CreateExpenseParams {
	return CreateExpenseParams{
		Amount:         e.Amount,
		Currency:       e.Currency,
		Category:       e.Category.String(),
		Description:    e.Description,
		Date:           e.Date.String(),
		TripID:         e.TripID,
		IsReimbursable: boolFlag(e.IsReimbursable),
		ReceiptPath:    nullString(e.ReceiptPath),
		PaymentMethod:  nullString(e.PaymentMethod),
		Location:       nullString(e.Location),
	}
}

func (r ExpenseRow) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d date: %w", r.ID, err)
	}
	return core.Expense{
		ID:             r.ID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Category:       core.ParseCategory(r.Category),
		Description:    r.Description,
		Date:           date,
		TripID:         r.TripID,
		IsReimbursable: r.IsReimbursable == 1,
		ReceiptPath:    stringPtr(r.ReceiptPath),
		PaymentMethod:  stringPtr(r.PaymentMethod),
		Location:       stringPtr(r.Location),
	}, nil
}

func toTrips(rows []TripRow) ([]core.Trip, error) {
	trips := make([]core.Trip, 0, len(rows))
	for _, r := range rows {
		t, err := r.toTrip()
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

func toExpenses(rows []ExpenseRow) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		e, err := r.toExpense()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}
