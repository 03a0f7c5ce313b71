package memory

import (
	"context"
	"fmt"
	"sync"

	"finanzas/internal/sheets"
)

// Store keeps appended activity rows in memory.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
	err  error
}

var _ sheets.ActivityWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendActivity stores the row and returns a synthetic row reference.
func (s *Store) AppendActivity(_ context.Context, row sheets.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}

// FailWith makes subsequent appends return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
