package memory

import (
	"context"
	"fmt"
	"sync"

	"ledgerbot/internal/core"
	ports "ledgerbot/internal/sheets"
)

// Store keeps mirrored rows in memory. Used when no spreadsheet is configured
// and in tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
	ids  []int64
}

var _ ports.RecordWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, rec core.ExpenseRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ports.Row(rec))
	s.ids = append(s.ids, rec.ID)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the appended rows in order.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// IDs returns the expense IDs appended so far.
func (s *Store) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.ids...)
}
