// Package executor runs validated SQL against a data store and materializes
// the result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/askql/pkg/core"
)

// Querier is the synchronous query operation of a data store.
type Querier interface {
	Query(ctx context.Context, sql string) (*core.Rows, error)
}

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
	Elapsed time.Duration
}

// Outcome is the tagged result of execution: Success(rows) or Failure(message).
type Outcome struct {
	OK     bool
	Result *ResultSet
	// Error is the engine message, unaltered.
	Error string
}

// Success wraps a result set.
func Success(rs *ResultSet) Outcome { return Outcome{OK: true, Result: rs} }

// Failure wraps an engine error message.
func Failure(msg string) Outcome { return Outcome{Error: msg} }

// Config holds executor configuration.
type Config struct {
	// Timeout bounds a single execution. Zero means no timeout.
	Timeout time.Duration
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Executor runs queries. It trusts its caller to have validated them.
type Executor struct {
	db      Querier
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an executor backed by db.
func New(db Querier, cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{db: db, timeout: cfg.Timeout, logger: logger}
}

// Execute runs sql and reads every row before returning.
func (e *Executor) Execute(ctx context.Context, sql string) Outcome {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rs, err := e.run(ctx, sql)
	if err != nil {
		msg := err.Error()
		if e.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("query timed out after %s", e.timeout)
		}
		e.logger.Debug("query failed", "error", msg)
		return Failure(msg)
	}
	rs.Elapsed = time.Since(start)

	e.logger.Debug("query succeeded", "rows", len(rs.Rows), "elapsed", rs.Elapsed)
	return Success(rs)
}

func (e *Executor) run(ctx context.Context, sql string) (*ResultSet, error) {
	rows, err := e.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Convert []byte to string for readability
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}
