package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"riskadmin/internal/domain"
	"riskadmin/internal/requestctx"
	"riskadmin/internal/utils"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor issues commands against one connection or transaction.
// It never retries; the caller decides what to do with a failure.
type Executor struct {
	conn    DBTX
	dialect Dialect
}

func NewExecutor(conn DBTX, dialect Dialect) *Executor {
	return &Executor{conn: conn, dialect: dialect}
}

func (e *Executor) Dialect() Dialect { return e.dialect }

// prepare validates cmd and renders it. Nothing reaches the store on error.
func (e *Executor) prepare(ctx context.Context, cmd Command) (string, []any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, domain.CancelledError{Op: cmd.name(), Err: err}
	}
	if cmd.Operation == "" {
		return "", nil, domain.InvalidArgument("operation", "command has no operation")
	}
	if err := cmd.Params.Validate(); err != nil {
		return "", nil, err
	}
	return e.dialect.Render(cmd)
}

func (e *Executor) fault(ctx context.Context, cmd Command, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.CancelledError{Op: cmd.name(), Err: err}
	}
	log := utils.Module("db", requestctx.RequestIDFromContext(ctx))
	log.Error().Err(err).
		Str("event", utils.EventCommandFailed).
		Str("operation", cmd.name()).
		Bool("routine", cmd.IsRoutine).
		Msg("command failed")
	return domain.OperationFailedError{Op: cmd.name(), Err: err}
}

// Execute runs a mutation and returns the affected-row count.
func (e *Executor) Execute(ctx context.Context, cmd Command) (int64, error) {
	if len(cmd.Params.Outputs()) > 0 {
		res, err := e.ExecuteWithOutputs(ctx, cmd)
		return res.RowsAffected, err
	}
	query, args, err := e.prepare(ctx, cmd)
	if err != nil {
		return 0, err
	}
	res, err := e.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, e.fault(ctx, cmd, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, e.fault(ctx, cmd, err)
	}
	return n, nil
}

// ExecuteWithOutputs runs a mutation and reports its output parameters from
// the same call. RowsAffected and identity outputs come from the driver
// result; any other output is read by column name from the last row the
// call returns.
func (e *Executor) ExecuteWithOutputs(ctx context.Context, cmd Command) (CommandResult, error) {
	query, args, err := e.prepare(ctx, cmd)
	if err != nil {
		return CommandResult{}, err
	}
	outputs := cmd.Params.Outputs()
	result := CommandResult{Outputs: make(map[string]any, len(outputs))}

	needsRow := false
	for _, p := range outputs {
		if p.source == sourceRow {
			needsRow = true
			break
		}
	}

	if !needsRow {
		res, err := e.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return CommandResult{}, e.fault(ctx, cmd, err)
		}
		if result.RowsAffected, err = res.RowsAffected(); err != nil {
			return CommandResult{}, e.fault(ctx, cmd, err)
		}
		for _, p := range outputs {
			var v any
			switch p.source {
			case sourceRowsAffected:
				v = result.RowsAffected
			case sourceIdentity:
				id, err := res.LastInsertId()
				if err != nil {
					return CommandResult{}, e.fault(ctx, cmd, err)
				}
				v = id
			}
			if err := e.setOutput(&result, p, v); err != nil {
				return CommandResult{}, e.fault(ctx, cmd, err)
			}
		}
		return result, nil
	}

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return CommandResult{}, e.fault(ctx, cmd, err)
	}
	defer rows.Close()

	for {
		cols, err := rows.Columns()
		if err != nil {
			return CommandResult{}, e.fault(ctx, cmd, err)
		}
		index := columnIndex(cols)
		for rows.Next() {
			row, err := scanRow(rows, cols, index)
			if err != nil {
				return CommandResult{}, e.fault(ctx, cmd, err)
			}
			result.rows = append(result.rows, row)
		}
		if err := rows.Err(); err != nil {
			return CommandResult{}, e.fault(ctx, cmd, err)
		}
		if !rows.NextResultSet() {
			break
		}
	}

	var last *Row
	if n := len(result.rows); n > 0 {
		last = result.rows[n-1]
	}
	result.RowsAffected = int64(len(result.rows))
	if last != nil && last.Has(RowsAffectedParam) {
		v, _ := last.Value(RowsAffectedParam)
		if result.RowsAffected, err = asInt64(v); err != nil {
			return CommandResult{}, e.fault(ctx, cmd, fmt.Errorf("output %s: %w", RowsAffectedParam, err))
		}
	}

	for _, p := range outputs {
		var v any
		switch {
		case p.source == sourceRowsAffected:
			v = result.RowsAffected
		case last == nil:
			// No row returned: outputs read back as NULL.
		default:
			var ok bool
			if v, ok = last.Value(p.Name); !ok {
				return CommandResult{}, e.fault(ctx, cmd, fmt.Errorf("output %s not returned by %s", p.Name, cmd.name()))
			}
		}
		if err := e.setOutput(&result, p, v); err != nil {
			return CommandResult{}, e.fault(ctx, cmd, err)
		}
	}
	return result, nil
}

func (e *Executor) setOutput(result *CommandResult, p Parameter, v any) error {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if err := assign(p.dest, v); err != nil {
		return fmt.Errorf("output %s: %w", p.Name, err)
	}
	result.Outputs[p.Name] = v
	return nil
}

func rejectOutputs(cmd Command) error {
	if out := cmd.Params.Outputs(); len(out) > 0 {
		return domain.InvalidArgument(out[0].Name, "row queries do not return output parameters")
	}
	return nil
}

func (e *Executor) query(ctx context.Context, cmd Command) (*sql.Rows, []string, error) {
	if err := rejectOutputs(cmd); err != nil {
		return nil, nil, err
	}
	query, args, err := e.prepare(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, e.fault(ctx, cmd, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, nil, e.fault(ctx, cmd, err)
	}
	return rows, cols, nil
}

// QueryScalar reads the first column of the single returned row into dest.
// It returns sql.ErrNoRows when the query yields nothing.
func (e *Executor) QueryScalar(ctx context.Context, cmd Command, dest any) error {
	if dest == nil {
		return domain.InvalidArgument("dest", "scalar destination is required")
	}
	rows, cols, err := e.query(ctx, cmd)
	if err != nil {
		return err
	}
	defer rows.Close()
	if len(cols) == 0 {
		return e.fault(ctx, cmd, errors.New("query returned no columns"))
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return e.fault(ctx, cmd, err)
		}
		return sql.ErrNoRows
	}
	row, err := scanRow(rows, cols, columnIndex(cols))
	if err != nil {
		return e.fault(ctx, cmd, err)
	}
	if rows.Next() {
		return domain.MultipleResultsError{Op: cmd.name()}
	}
	if err := rows.Err(); err != nil {
		return e.fault(ctx, cmd, err)
	}
	if err := assign(dest, row.values[0]); err != nil {
		return e.fault(ctx, cmd, err)
	}
	return nil
}

// Count is QueryScalar for integer results.
func (e *Executor) Count(ctx context.Context, cmd Command) (int64, error) {
	var n int64
	if err := e.QueryScalar(ctx, cmd, &n); err != nil {
		return 0, err
	}
	return n, nil
}
