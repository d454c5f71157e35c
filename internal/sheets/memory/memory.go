package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"travelbook/internal/sheets"
)

// Store is an in-process sheets.Mirror used when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows map[int64]sheets.ExpenseRow
}

var _ sheets.Mirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int64]sheets.ExpenseRow)}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.ExpenseRow) (string, error) {
	if row.ExpenseID <= 0 {
		return "", fmt.Errorf("invalid expense id %d", row.ExpenseID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.ExpenseID] = row
	return fmt.Sprintf("mem:%d", row.ExpenseID), nil
}

func (s *Store) DeleteExpense(_ context.Context, expenseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, expenseID)
	return nil
}

// ListRows returns the rows ordered by expense id.
func (s *Store) ListRows(_ context.Context) ([]sheets.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.ExpenseRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpenseID < out[j].ExpenseID })
	return out, nil
}
