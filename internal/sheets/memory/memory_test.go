package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"travelbook/internal/core"
	"travelbook/internal/sheets"
)

func row(id int64, desc string) sheets.ExpenseRow {
	return sheets.ExpenseRow{
		ExpenseID:   id,
		Date:        core.NewDate(2024, 8, 1),
		Trip:        "Oslo",
		Description: desc,
		Category:    core.Food,
		Amount:      decimal.RequireFromString("12.30"),
		Currency:    "NOK",
	}
}

func TestMemoryStoreAppendReplacesSameID(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Append(ctx, row(2, "lunch"))
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := s.Append(ctx, row(1, "coffee")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Append(ctx, row(2, "dinner")); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, _ := s.ListRows(ctx)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ExpenseID != 1 || rows[1].Description != "dinner" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Append(ctx, row(5, "taxi"))

	if err := s.DeleteExpense(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteExpense(ctx, 5); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if rows, _ := s.ListRows(ctx); len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestMemoryStoreRejectsUnsavedExpense(t *testing.T) {
	if _, err := New().Append(context.Background(), row(0, "draft")); err == nil {
		t.Fatal("expected error for row without expense id")
	}
}
