package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/prodtrack/errors"
)

// Memory serves fixed rows per query. Params filter rows by field equality.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]Row
}

// NewMemory returns a fetcher over data. The map is copied.
func NewMemory(data map[string][]Row) *Memory {
	m := &Memory{data: make(map[string][]Row, len(data))}
	for q, rows := range data {
		m.data[q] = rows
	}
	return m
}

// Register replaces the rows served for query.
func (m *Memory) Register(query string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[query] = rows
}

// Fetch implements Fetcher.
func (m *Memory) Fetch(ctx context.Context, query string, params Params) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FetchFailed(query, err)
	}

	m.mu.RLock()
	rows, ok := m.data[query]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.FetchFailed(query, fmt.Errorf("unknown query"))
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if matches(row, params) {
			copied := make(Row, len(row))
			for k, v := range row {
				copied[k] = v
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

func matches(row Row, params Params) bool {
	for k, want := range params {
		got, ok := row[k]
		if !ok {
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
