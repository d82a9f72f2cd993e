package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "expensetracker/internal/sheets"
)

// Store keeps appended rows in memory, standing in for a spreadsheet.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendRow stores a copy of the row and returns a synthetic range.
func (s *Store) AppendRow(_ context.Context, row []any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, slices.Clone(row))
	n := len(s.rows)
	return fmt.Sprintf("mem!A%d:D%d", n, n), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = slices.Clone(r)
	}
	return out
}
