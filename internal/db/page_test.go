package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadmin/internal/domain"
)

func openMemory(t *testing.T) *Database {
	t.Helper()
	conn, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return NewDatabase(conn, NewSQLite(nil))
}

func seedTraders(t *testing.T, d *Database, n int) {
	t.Helper()
	ctx := context.Background()
	ex := d.Executor()
	_, err := ex.Execute(ctx, Text("create", `CREATE TABLE traders (
		trader_code TEXT PRIMARY KEY,
		desk TEXT NOT NULL,
		is_deleted INTEGER NOT NULL DEFAULT 0
	)`))
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err := ex.Execute(ctx, Text("insert", `INSERT INTO traders (trader_code, desk) VALUES (@Code, @Desk)`,
			Arg("Code", fmt.Sprintf("T%03d", i)), Arg("Desk", []string{"equity", "bond", "fx"}[i%3])))
		require.NoError(t, err)
	}
	_, err = ex.Execute(ctx, Text("delete_some", `UPDATE traders SET is_deleted = 1 WHERE trader_code IN ('T001', 'T002')`))
	require.NoError(t, err)
}

var traderPage = PageQuery{
	Base:        `SELECT trader_code, desk FROM traders WHERE is_deleted = @Deleted`,
	Params:      NewParams(Arg("Deleted", 0)),
	SortColumns: map[string]string{"traderCode": "trader_code", "desk": "desk"},
	DefaultSort: "traderCode",
	TieBreak:    []string{"trader_code"},
	Label:       "page_traders",
}

type trader struct {
	Code string
	Desk string
}

func mapTrader(r *Row) (trader, error) {
	return trader{Code: r.String("trader_code"), Desk: r.String("desk")}, nil
}

func TestPageCoversFilteredSetExactlyOnce(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 25)
	ctx := context.Background()

	for _, sortBy := range []string{"traderCode", "desk"} {
		seen := map[string]bool{}
		var last int64
		for page := 1; page <= 5; page++ {
			res, err := Page(ctx, d.Executor(), traderPage,
				domain.PageRequest{PageNumber: page, PageSize: 5, SortBy: sortBy, Direction: "desc"}, mapTrader)
			require.NoError(t, err)
			assert.Equal(t, int64(23), res.TotalCount)
			for _, item := range res.Items {
				assert.False(t, seen[item.Code], "duplicate %s sorted by %s", item.Code, sortBy)
				seen[item.Code] = true
			}
			last = res.TotalCount
		}
		assert.Len(t, seen, int(last))
		assert.False(t, seen["T001"])
	}
}

func TestPageOrdering(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 10)

	res, err := Page(context.Background(), d.Executor(), traderPage,
		domain.PageRequest{PageNumber: 1, PageSize: 3, Direction: "desc"}, mapTrader)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, []string{"T010", "T009", "T008"}, []string{res.Items[0].Code, res.Items[1].Code, res.Items[2].Code})
}

func TestPageBeyondEndStillReportsTotal(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 6)

	res, err := Page(context.Background(), d.Executor(), traderPage,
		domain.PageRequest{PageNumber: 9, PageSize: 5}, mapTrader)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int64(4), res.TotalCount)
	assert.Equal(t, 9, res.PageNumber)
}

func TestPageEmptySet(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 0)

	res, err := Page(context.Background(), d.Executor(), traderPage, domain.PageRequest{}, mapTrader)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.TotalCount)
	assert.Equal(t, 1, res.PageNumber)
	assert.Equal(t, domain.DefaultPageSize, res.PageSize)
}

func TestPageCommandRejectsUnknownSort(t *testing.T) {
	_, _, err := traderPage.Command(domain.PageRequest{SortBy: "trader_code; DROP TABLE traders"})
	assert.True(t, domain.IsInvalidArgument(err))

	_, _, err = traderPage.Command(domain.PageRequest{Direction: "sideways"})
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestPageCommandNormalizesRequest(t *testing.T) {
	cmd, req, err := traderPage.Command(domain.PageRequest{PageNumber: -3, PageSize: 500, SortBy: "DESK"})
	require.NoError(t, err)
	assert.Equal(t, 1, req.PageNumber)
	assert.Equal(t, domain.DefaultPageSize, req.PageSize)
	assert.Contains(t, cmd.Operation, "ORDER BY desk ASC, trader_code ASC")

	first, ok := cmd.Params.Lookup("PageFirstRow")
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Value)
	lastRow, _ := cmd.Params.Lookup("PageLastRow")
	assert.Equal(t, int64(10), lastRow.Value)
	assert.False(t, strings.Contains(cmd.Operation, "LIMIT"))
}

func TestSQLiteRoutineCatalog(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 3)
	d.Dialect.(*SQLite).Register("sp_count_desk", `SELECT COUNT(*) FROM traders WHERE desk = @Desk`)

	n, err := d.Executor().Count(context.Background(), Routine("SP_COUNT_DESK", Arg("Desk", "fx")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = d.Executor().Count(context.Background(), Routine("sp_missing"))
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestSQLiteUniqueViolation(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 1)

	_, err := d.Executor().Execute(context.Background(), Text("dup",
		`INSERT INTO traders (trader_code, desk) VALUES (@Code, 'fx')`, Arg("Code", "T001")))
	require.Error(t, err)
	assert.True(t, d.Dialect.IsUniqueViolation(err))
}

func TestRunInTxRollbackLeavesNoTrace(t *testing.T) {
	d := openMemory(t)
	seedTraders(t, d, 2)
	ctx := context.Background()

	_, err := RunInTx(ctx, d, func(ex *Executor) (int64, error) {
		if _, err := ex.Execute(ctx, Text("ins", `INSERT INTO traders (trader_code, desk) VALUES ('T900', 'fx')`)); err != nil {
			return 0, err
		}
		return 0, domain.NewDomainError(domain.CodeNoRowsUpdated, "forced")
	})
	assert.True(t, domain.HasCode(err, domain.CodeNoRowsUpdated))

	n, err := d.Executor().Count(ctx, Text("count", `SELECT COUNT(*) FROM traders`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := d.HasTable(ctx, "traders")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.HasColumn(ctx, "traders", "desk")
	require.NoError(t, err)
	assert.True(t, ok)
}
