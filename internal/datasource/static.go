package datasource

import (
	"context"
	"sync"
)

// Static returns the same table for every statement and records what it
// was asked. Safe for concurrent use.
type Static struct {
	table *Table
	err   error

	mu      sync.Mutex
	queries []string
}

// NewStatic returns a source serving t.
func NewStatic(t *Table) *Static {
	return &Static{table: t}
}

// NewFailing returns a source whose every query fails with err.
func NewFailing(err error) *Static {
	return &Static{err: err}
}

func (s *Static) Query(ctx context.Context, sql string) (*Table, error) {
	s.mu.Lock()
	s.queries = append(s.queries, sql)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}

// Queries returns the statements received so far.
func (s *Static) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
