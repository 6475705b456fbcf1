package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"riskadmin/internal/domain"
)

var ErrCursorConsumed = errors.New("db: cursor already consumed")

// QuerySingle returns the only row of cmd. found is false when there is none;
// more than one row is a MultipleResultsError.
func QuerySingle[T any](ctx context.Context, e *Executor, cmd Command, mapper RowMapper[T]) (T, bool, error) {
	var zero T
	rows, cols, err := e.query(ctx, cmd)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, false, e.fault(ctx, cmd, err)
		}
		return zero, false, nil
	}
	row, err := scanRow(rows, cols, columnIndex(cols))
	if err != nil {
		return zero, false, e.fault(ctx, cmd, err)
	}
	if rows.Next() {
		return zero, false, domain.MultipleResultsError{Op: cmd.name()}
	}
	if err := rows.Err(); err != nil {
		return zero, false, e.fault(ctx, cmd, err)
	}
	v, err := mapper(row)
	if err != nil {
		return zero, false, domain.OperationFailedError{Op: cmd.name(), Err: fmt.Errorf("map row: %w", err)}
	}
	return v, true, nil
}

// Cursor is a finite, non-restartable sequence of mapped rows.
type Cursor[T any] struct {
	ctx    context.Context
	e      *Executor
	cmd    Command
	rows   *sql.Rows
	cols   []string
	index  map[string]int
	mapper RowMapper[T]
	used   bool
}

// QueryMany starts cmd and returns a lazy cursor over its rows. The caller
// must drain or Close the cursor.
func QueryMany[T any](ctx context.Context, e *Executor, cmd Command, mapper RowMapper[T]) (*Cursor[T], error) {
	rows, cols, err := e.query(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{
		ctx:    ctx,
		e:      e,
		cmd:    cmd,
		rows:   rows,
		cols:   cols,
		index:  columnIndex(cols),
		mapper: mapper,
	}, nil
}

// All yields each mapped row once. A second call yields ErrCursorConsumed.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if c.used {
			yield(zero, ErrCursorConsumed)
			return
		}
		c.used = true
		defer c.rows.Close()

		for c.rows.Next() {
			row, err := scanRow(c.rows, c.cols, c.index)
			if err != nil {
				yield(zero, c.e.fault(c.ctx, c.cmd, err))
				return
			}
			v, err := c.mapper(row)
			if err != nil {
				yield(zero, domain.OperationFailedError{Op: c.cmd.name(), Err: fmt.Errorf("map row: %w", err)})
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := c.rows.Err(); err != nil {
			yield(zero, c.e.fault(c.ctx, c.cmd, err))
		}
	}
}

func (c *Cursor[T]) Close() error {
	c.used = true
	return c.rows.Close()
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryAll is QueryMany followed by Collect.
func QueryAll[T any](ctx context.Context, e *Executor, cmd Command, mapper RowMapper[T]) ([]T, error) {
	cur, err := QueryMany(ctx, e, cmd, mapper)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	return Collect(cur.All())
}
