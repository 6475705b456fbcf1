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

var (
	ErrScopeOpen    error = domain.NewDomainError(domain.CodeNestedTransaction, "transaction scope already open")
	ErrScopeNotOpen       = errors.New("db: transaction scope not open")
)

// Beginner starts transactions; *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Scope is a unit of work over one transaction. It is owned by a single
// operation and does not nest.
type Scope struct {
	db      Beginner
	dialect Dialect
	tx      *sql.Tx
	ex      *Executor
}

func NewScope(db Beginner, dialect Dialect) *Scope {
	return &Scope{db: db, dialect: dialect}
}

func (s *Scope) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrScopeOpen
	}
	if err := ctx.Err(); err != nil {
		return domain.CancelledError{Op: "begin", Err: err}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.OperationFailedError{Op: "begin", Err: err}
	}
	s.tx = tx
	s.ex = NewExecutor(tx, s.dialect)
	return nil
}

func (s *Scope) Active() bool { return s.tx != nil }

// Executor returns the executor bound to the open transaction, or nil.
func (s *Scope) Executor() *Executor { return s.ex }

func (s *Scope) Commit() error {
	if s.tx == nil {
		return ErrScopeNotOpen
	}
	tx := s.tx
	s.tx, s.ex = nil, nil
	if err := tx.Commit(); err != nil {
		return domain.OperationFailedError{Op: "commit", Err: err}
	}
	return nil
}

func (s *Scope) Rollback() error {
	if s.tx == nil {
		return ErrScopeNotOpen
	}
	tx := s.tx
	s.tx, s.ex = nil, nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return domain.OperationFailedError{Op: "rollback", Err: err}
	}
	return nil
}

// RunInTx runs fn inside a new scope. It commits when fn succeeds and rolls
// back when fn fails or panics; fn's error is returned unchanged and a
// panic is re-raised after rollback.
func RunInTx[T any](ctx context.Context, d *Database, fn func(ex *Executor) (T, error)) (result T, err error) {
	var zero T
	scope := d.Scope()
	if err := scope.Begin(ctx); err != nil {
		return zero, err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		r := recover()
		if rbErr := scope.Rollback(); rbErr != nil {
			utils.LogError(requestctx.RequestIDFromContext(ctx), "db", utils.EventTxRolledBack, rbErr, nil)
		} else {
			utils.LogEvent(requestctx.RequestIDFromContext(ctx), "db", utils.EventTxRolledBack, "transaction rolled back")
		}
		if r != nil {
			panic(r)
		}
	}()

	result, err = fn(scope.Executor())
	if err != nil {
		return zero, err
	}
	if err := scope.Commit(); err != nil {
		committed = true
		return zero, err
	}
	committed = true
	return result, nil
}

// Database pairs a connection pool with its dialect.
type Database struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewDatabase(sqlDB *sql.DB, dialect Dialect) *Database {
	return &Database{DB: sqlDB, Dialect: dialect}
}

// Executor returns an executor on the pool, outside any transaction.
func (d *Database) Executor() *Executor {
	return NewExecutor(d.DB, d.Dialect)
}

func (d *Database) Scope() *Scope {
	return NewScope(d.DB, d.Dialect)
}

func (d *Database) Ping(ctx context.Context) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return d.DB.PingContext(ctx)
}

// HasTable reports whether table exists in the connected schema.
func (d *Database) HasTable(ctx context.Context, table string) (bool, error) {
	n, err := d.Executor().Count(ctx, Text("has_table", d.Dialect.TableExistsQuery(), Arg("Table", table)))
	return n > 0, err
}

func (d *Database) HasColumn(ctx context.Context, table, column string) (bool, error) {
	n, err := d.Executor().Count(ctx, Text("has_column", d.Dialect.ColumnExistsQuery(),
		Arg("Table", table), Arg("Column", column)))
	return n > 0, err
}
