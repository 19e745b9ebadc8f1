package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vocalizz/internal/infra"
)

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.vals == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, v := range r.vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type call struct {
	query string
	args  []any
}

// stubSQL answers queries by exact sqlinline constant.
type stubSQL struct {
	rows  map[string][]stubRow
	execs map[string]pgconn.CommandTag
	calls []call
	txs   int
}

func newStubSQL() *stubSQL {
	return &stubSQL{rows: map[string][]stubRow{}, execs: map[string]pgconn.CommandTag{}}
}

func (s *stubSQL) on(query string, vals ...any) {
	s.rows[query] = append(s.rows[query], stubRow{vals: vals})
}

func (s *stubSQL) onNoRows(query string) {
	s.rows[query] = append(s.rows[query], stubRow{})
}

func (s *stubSQL) called(query string) int {
	n := 0
	for _, c := range s.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query, args})
	tag, ok := s.execs[query]
	if !ok {
		return pgconn.CommandTag{}, errors.New("unexpected exec")
	}
	return tag, nil
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query, args})
	queue := s.rows[query]
	if len(queue) == 0 {
		return stubRow{err: errors.New("unexpected query")}
	}
	s.rows[query] = queue[1:]
	return queue[0]
}

func (s *stubSQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query, args})
	return nil, errors.New("not implemented")
}

func (s *stubSQL) WithTx(_ context.Context, fn func(infra.SQLExecutor) error) error {
	s.txs++
	return fn(s)
}
