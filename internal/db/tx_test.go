package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadmin/internal/domain"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewDatabase(conn, MySQL{}), mock
}

func TestScopeDoesNotNest(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	scope := d.Scope()
	require.NoError(t, scope.Begin(context.Background()))
	assert.True(t, scope.Active())
	assert.NotNil(t, scope.Executor())
	err := scope.Begin(context.Background())
	assert.ErrorIs(t, err, ErrScopeOpen)
	assert.True(t, domain.HasCode(err, domain.CodeNestedTransaction))

	require.NoError(t, scope.Rollback())
	assert.False(t, scope.Active())
	assert.Nil(t, scope.Executor())
	assert.ErrorIs(t, scope.Commit(), ErrScopeNotOpen)
	assert.ErrorIs(t, scope.Rollback(), ErrScopeNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeBeginFailure(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := d.Scope().Begin(context.Background())
	assert.True(t, domain.IsOperationFailed(err), "got %v", err)
}

func TestRunInTxCommits(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO clients").WithArgs("C1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := RunInTx(context.Background(), d, func(ex *Executor) (int64, error) {
		return ex.Execute(context.Background(), Text("insert_client",
			"INSERT INTO clients (client_code) VALUES (@Code)", Arg("Code", "C1")))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackAndReturnsOriginalError(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO clients").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	cause := domain.NewDomainError(domain.CodeAlreadyExists, "client C1 already exists")
	_, err := RunInTx(context.Background(), d, func(ex *Executor) (struct{}, error) {
		if _, err := ex.Execute(context.Background(), Text("insert_client",
			"INSERT INTO clients (client_code) VALUES (@Code)", Arg("Code", "C1"))); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, cause
	})
	assert.Equal(t, cause, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = RunInTx(context.Background(), d, func(ex *Executor) (int, error) {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitFailure(t *testing.T) {
	d, mock := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	_, err := RunInTx(context.Background(), d, func(ex *Executor) (int, error) { return 1, nil })
	assert.True(t, domain.IsOperationFailed(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
