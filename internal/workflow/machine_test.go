package workflow

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadmin/internal/db"
	"riskadmin/internal/db/dbtest"
	"riskadmin/internal/domain"
	"riskadmin/internal/requestctx"
)

var limitEntity = &Entity{
	Name:  "exposure-limits",
	Table: "exposure_limits",
	Keys: []Field{
		{Name: "clientCode", Column: "client_code"},
		{Name: "exchangeCode", Column: "exchange_code"},
	},
	Fields: []Field{
		{Name: "limitAmount", Column: "limit_amount", Kind: KindFloat},
		{Name: "marginRate", Column: "margin_rate", Kind: KindFloat},
		{Name: "currency", Column: "currency"},
	},
	DefaultSort: "clientCode",
	Notify:      []domain.ActionType{domain.ActionInsert, domain.ActionUpdate, domain.ActionDelete},
}

var (
	makerCtx   = requestctx.WithActor(context.Background(), requestctx.Actor{ID: "maker1", OriginAddress: "10.0.0.1"})
	checkerCtx = requestctx.WithActor(context.Background(), requestctx.Actor{ID: "checker1", OriginAddress: "10.0.0.2"})
	fixedNow   = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
)

func newMachine(t *testing.T) (*Machine, *db.Database) {
	t.Helper()
	database := dbtest.Open(t)
	return New(database, WithClock(func() time.Time { return fixedNow })), database
}

func limitKeys(client string) Values {
	return Values{"clientCode": client, "exchangeCode": "IDX"}
}

func limitFields(amount float64) Values {
	return Values{"limitAmount": amount, "marginRate": 0.25, "currency": "IDR"}
}

func count(t *testing.T, database *db.Database, query string, params ...db.Parameter) int64 {
	t.Helper()
	n, err := database.Executor().Count(context.Background(), db.Text("count", query, params...))
	require.NoError(t, err)
	return n
}

func createApproved(t *testing.T, m *Machine, client string, amount float64) Record {
	t.Helper()
	_, err := m.Create(makerCtx, limitEntity, limitKeys(client), limitFields(amount))
	require.NoError(t, err)
	rec, err := m.Authorize(checkerCtx, limitEntity, limitKeys(client), domain.DecisionApprove, "")
	require.NoError(t, err)
	return rec
}

func TestCreateThenApprove(t *testing.T) {
	m, database := newMachine(t)

	rec, err := m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(1000))
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, domain.ActionInsert, rec.ActionType)
	assert.Equal(t, "maker1", rec.MakerID)
	assert.Equal(t, "10.0.0.1", rec.OriginAddress)
	assert.True(t, rec.ActionTimestamp.Equal(fixedNow))
	assert.Equal(t, "C001~IDX", rec.Key)
	assert.Nil(t, rec.AuthTimestamp)

	state := domain.Unauthorized
	pending, err := m.List(context.Background(), limitEntity, ListRequest{AuthState: &state})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, int64(1), pending.TotalCount)

	rec, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Approved, rec.AuthState)
	assert.Equal(t, "checker1", rec.AuthID)
	require.NotNil(t, rec.AuthTimestamp)
	assert.True(t, rec.AuthTimestamp.Equal(fixedNow))
	assert.Equal(t, 1000.0, rec.Fields["limitAmount"])
	assert.Equal(t, "maker1", rec.MakerID)

	assert.Equal(t, int64(1), count(t, database,
		"SELECT COUNT(*) FROM outbox_events WHERE entity = @Entity AND change_kind = @Kind",
		db.Arg("Entity", "exposure-limits"), db.Arg("Kind", "Insert")))

	pending, err = m.List(context.Background(), limitEntity, ListRequest{AuthState: &state})
	require.NoError(t, err)
	assert.Empty(t, pending.Items)
}

func TestUpdateDeniedKeepsAuthoritativeValues(t *testing.T) {
	m, database := newMachine(t)
	createApproved(t, m, "C001", 1000)

	rec, err := m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 2000.0})
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, domain.ActionUpdate, rec.ActionType)
	assert.Equal(t, 1000.0, rec.Fields["limitAmount"])
	require.True(t, rec.HasPending)
	assert.Equal(t, 2000.0, rec.Pending["limitAmount"])
	assert.Equal(t, "IDR", rec.Pending["currency"])
	assert.Empty(t, rec.AuthID)

	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionDeny, "  ")
	assert.True(t, domain.HasCode(err, domain.CodeRemarksRequired), "got %v", err)

	rec, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionDeny, " insufficient \n evidence ")
	require.NoError(t, err)
	assert.Equal(t, domain.Denied, rec.AuthState)
	assert.Equal(t, 1000.0, rec.Fields["limitAmount"])
	assert.False(t, rec.HasPending)
	assert.Equal(t, "insufficient evidence", rec.Remarks)

	assert.Equal(t, int64(1), count(t, database, "SELECT COUNT(*) FROM outbox_events"))
}

func TestUpdateApprovedPromotesPendingValues(t *testing.T) {
	m, database := newMachine(t)
	createApproved(t, m, "C001", 1000)

	_, err := m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 2500.0, "currency": "USD"})
	require.NoError(t, err)
	rec, err := m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionApprove, "ok")
	require.NoError(t, err)

	assert.Equal(t, domain.Approved, rec.AuthState)
	assert.Equal(t, 2500.0, rec.Fields["limitAmount"])
	assert.Equal(t, 0.25, rec.Fields["marginRate"])
	assert.Equal(t, "USD", rec.Fields["currency"])
	assert.False(t, rec.HasPending)
	assert.Equal(t, int64(2), count(t, database, "SELECT COUNT(*) FROM outbox_events"))
}

func TestCreateDuplicateKeepsFirst(t *testing.T) {
	m, _ := newMachine(t)
	_, err := m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(1000))
	require.NoError(t, err)

	other := requestctx.WithActor(context.Background(), requestctx.Actor{ID: "maker2"})
	_, err = m.Create(other, limitEntity, limitKeys("C001"), limitFields(9999))
	assert.True(t, domain.HasCode(err, domain.CodeAlreadyExists), "got %v", err)

	rec, err := m.Get(context.Background(), limitEntity, limitKeys("C001"))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, rec.Fields["limitAmount"])
	assert.Equal(t, "maker1", rec.MakerID)
}

func TestAuthorizeRejections(t *testing.T) {
	m, database := newMachine(t)
	approved := createApproved(t, m, "C001", 1000)

	other := requestctx.WithActor(context.Background(), requestctx.Actor{ID: "checker2"})
	_, err := m.Authorize(other, limitEntity, limitKeys("C001"), domain.DecisionDeny, "second look")
	assert.True(t, domain.HasCode(err, domain.CodeNotPending), "got %v", err)

	after, err := m.Get(context.Background(), limitEntity, limitKeys("C001"))
	require.NoError(t, err)
	assert.Equal(t, approved.Fields, after.Fields)
	assert.Equal(t, approved.AuthState, after.AuthState)
	assert.Equal(t, "checker1", after.AuthID)
	assert.Equal(t, approved.Version, after.Version)
	assert.Empty(t, after.Remarks)

	pending, err := m.Create(makerCtx, limitEntity, limitKeys("C002"), limitFields(10))
	require.NoError(t, err)
	_, err = m.Authorize(makerCtx, limitEntity, limitKeys("C002"), domain.DecisionApprove, "")
	assert.True(t, domain.HasCode(err, domain.CodeSelfAuthorization), "got %v", err)

	after, err = m.Get(context.Background(), limitEntity, limitKeys("C002"))
	require.NoError(t, err)
	assert.Equal(t, pending.Fields, after.Fields)
	assert.Equal(t, pending.Version, after.Version)
	assert.Empty(t, after.AuthID)
	assert.Equal(t, int64(2), count(t, database,
		"SELECT COUNT(*) FROM workflow_audit WHERE entity_key = @Key", db.Arg("Key", "C001~IDX")))

	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C002"), domain.Decision("maybe"), "")
	assert.True(t, domain.IsInvalidArgument(err))

	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C404"), domain.DecisionApprove, "")
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	rec, err := m.Get(context.Background(), limitEntity, limitKeys("C002"))
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, int64(1), count(t, database, "SELECT COUNT(*) FROM outbox_events"))
}

func TestMakerResubmitsDeniedRecord(t *testing.T) {
	m, _ := newMachine(t)

	_, err := m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(1000))
	require.NoError(t, err)
	rec, err := m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionDeny, "wrong currency")
	require.NoError(t, err)
	require.Equal(t, domain.Denied, rec.AuthState)

	rec, err = m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 1500.0})
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, domain.ActionUpdate, rec.ActionType)
	assert.Empty(t, rec.AuthID)

	rec, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Approved, rec.AuthState)
	assert.Equal(t, 1500.0, rec.Fields["limitAmount"])

	_, err = m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 9.0})
	require.NoError(t, err)
	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionDeny, "too low")
	require.NoError(t, err)
	rec, err = m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 2000.0})
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, 1500.0, rec.Fields["limitAmount"])
	assert.Equal(t, 2000.0, rec.Pending["limitAmount"])
}

func TestCancelledContextWritesNothing(t *testing.T) {
	m, database := newMachine(t)
	_, err := m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(1000))
	require.NoError(t, err)

	cancelledMaker, cancel := context.WithCancel(makerCtx)
	cancel()
	_, err = m.Create(cancelledMaker, limitEntity, limitKeys("C002"), limitFields(1))
	assert.True(t, domain.IsCancelled(err), "got %v", err)

	cancelledChecker, cancel := context.WithCancel(checkerCtx)
	cancel()
	_, err = m.Authorize(cancelledChecker, limitEntity, limitKeys("C001"), domain.DecisionApprove, "")
	assert.True(t, domain.IsCancelled(err), "got %v", err)

	assert.Equal(t, int64(1), count(t, database, "SELECT COUNT(*) FROM exposure_limits"))
	assert.Equal(t, int64(1), count(t, database, "SELECT COUNT(*) FROM workflow_audit"))
	assert.Zero(t, count(t, database, "SELECT COUNT(*) FROM outbox_events"))
	rec, err := m.Get(context.Background(), limitEntity, limitKeys("C001"))
	require.NoError(t, err)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
}

func TestListPrefixTreatsWildcardsLiterally(t *testing.T) {
	m, _ := newMachine(t)
	for _, code := range []string{"A_1", "AB1", "A%2", "A!3"} {
		_, err := m.Create(makerCtx, limitEntity, limitKeys(code), limitFields(1))
		require.NoError(t, err)
	}

	for prefix, want := range map[string]string{"A_": "A_1~IDX", "A%": "A%2~IDX", "A!": "A!3~IDX"} {
		page, err := m.List(context.Background(), limitEntity, ListRequest{
			Filters: []domain.Filter{{Field: "clientCode", Op: domain.FilterPrefix, Value: prefix}},
		})
		require.NoError(t, err)
		require.Equal(t, int64(1), page.TotalCount, prefix)
		assert.Equal(t, want, page.Items[0].Key)
	}
}

func TestAuthorizeLosesRaceOnStaleVersion(t *testing.T) {
	m, database := newMachine(t)
	_, err := m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(1000))
	require.NoError(t, err)
	stale, err := m.Get(context.Background(), limitEntity, limitKeys("C001"))
	require.NoError(t, err)

	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionApprove, "")
	require.NoError(t, err)

	var affected int64
	actor := requestctx.Actor{ID: "checker2"}
	_, err = database.Executor().ExecuteWithOutputs(context.Background(),
		limitEntity.authorizeCommand(stale, domain.DecisionDeny, "late", actor, fixedNow, &affected))
	require.NoError(t, err)
	assert.Zero(t, affected)

	rec, err := m.Get(context.Background(), limitEntity, limitKeys("C001"))
	require.NoError(t, err)
	assert.Equal(t, domain.Approved, rec.AuthState)
	assert.Equal(t, "checker1", rec.AuthID)
}

func TestApprovedDeleteHidesRecordAndCreateRevives(t *testing.T) {
	m, database := newMachine(t)
	createApproved(t, m, "C001", 1000)

	rec, err := m.Delete(makerCtx, limitEntity, limitKeys("C001"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDelete, rec.ActionType)
	assert.Equal(t, domain.Active, rec.IsDeleted)

	rec, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Deleted, rec.IsDeleted)
	assert.Equal(t, domain.Approved, rec.AuthState)

	_, err = m.Get(context.Background(), limitEntity, limitKeys("C001"))
	assert.True(t, domain.IsNotFound(err))
	page, err := m.List(context.Background(), limitEntity, ListRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)

	_, err = m.Update(makerCtx, limitEntity, limitKeys("C001"), limitFields(5))
	assert.True(t, domain.IsNotFound(err))

	rec, err = m.Create(makerCtx, limitEntity, limitKeys("C001"), limitFields(42))
	require.NoError(t, err)
	assert.Equal(t, domain.Active, rec.IsDeleted)
	assert.Equal(t, domain.Unauthorized, rec.AuthState)
	assert.Equal(t, domain.ActionInsert, rec.ActionType)
	assert.Equal(t, 42.0, rec.Fields["limitAmount"])
	assert.Empty(t, rec.AuthID)

	assert.Equal(t, int64(1), count(t, database,
		"SELECT COUNT(*) FROM outbox_events WHERE change_kind = @Kind", db.Arg("Kind", "Delete")))
}

func TestMakerActionNeedsActor(t *testing.T) {
	m, database := newMachine(t)

	_, err := m.Create(context.Background(), limitEntity, limitKeys("C001"), limitFields(1))
	assert.True(t, domain.IsInvalidArgument(err))
	assert.Zero(t, count(t, database, "SELECT COUNT(*) FROM exposure_limits"))
	assert.Zero(t, count(t, database, "SELECT COUNT(*) FROM workflow_audit"))
}

func TestInvalidInputIsRejectedBeforeStore(t *testing.T) {
	m, _ := newMachine(t)

	_, err := m.Create(makerCtx, limitEntity, Values{"clientCode": "C001"}, limitFields(1))
	assert.True(t, domain.IsInvalidArgument(err))

	_, err = m.Create(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": "lots", "colour": "red"})
	var verr domain.ValidationError
	require.True(t, domain.AsValidation(err, &verr), "got %v", err)
	assert.Len(t, verr.Fields, 2)
}

func TestHistoryNewestFirst(t *testing.T) {
	m, _ := newMachine(t)
	createApproved(t, m, "C001", 1000)
	_, err := m.Update(makerCtx, limitEntity, limitKeys("C001"), Values{"limitAmount": 1.0})
	require.NoError(t, err)
	_, err = m.Authorize(checkerCtx, limitEntity, limitKeys("C001"), domain.DecisionDeny, "too low")
	require.NoError(t, err)

	page, err := m.History(context.Background(), limitEntity, limitKeys("C001"), domain.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(4), page.TotalCount)
	actions := make([]string, 0, len(page.Items))
	for _, e := range page.Items {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"Deny", "Update", "Approve", "Insert"}, actions)
	assert.Equal(t, "too low", page.Items[0].Remarks)
	assert.Equal(t, "checker1", page.Items[0].ActorID)
	assert.Equal(t, domain.Denied, page.Items[0].AuthState)
}

func TestListFiltersAndSorts(t *testing.T) {
	m, _ := newMachine(t)
	for i, code := range []string{"C003", "C001", "X002", "C002"} {
		_, err := m.Create(makerCtx, limitEntity, limitKeys(code), limitFields(float64(100*(i+1))))
		require.NoError(t, err)
	}

	page, err := m.List(context.Background(), limitEntity, ListRequest{
		Filters: []domain.Filter{{Field: "clientCode", Op: domain.FilterPrefix, Value: "C"}},
		Page:    domain.PageRequest{SortBy: "limitAmount", Direction: "desc", PageSize: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "C002~IDX", page.Items[0].Key)
	assert.Equal(t, "C001~IDX", page.Items[1].Key)

	_, err = m.List(context.Background(), limitEntity, ListRequest{
		Filters: []domain.Filter{{Field: "nope", Value: "x"}},
	})
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestParseKeyRoundTrip(t *testing.T) {
	keys, err := limitEntity.ParseKey("C001~IDX")
	require.NoError(t, err)
	assert.Equal(t, "C001~IDX", limitEntity.KeyString(keys))

	_, err = limitEntity.ParseKey("C001")
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = limitEntity.ParseKey("~IDX")
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestNormalizeRejectsIntegerOverflow(t *testing.T) {
	f := Field{Name: "lotSize", Column: "lot_size", Kind: KindInt}

	v, err := normalize(f, float64(500))
	require.NoError(t, err)
	assert.Equal(t, int64(500), v)

	for _, raw := range []any{1e20, -1e20, 2.5, uint64(math.MaxUint64)} {
		_, err := normalize(f, raw)
		assert.Error(t, err, "%v", raw)
	}
}

func TestNormalizeParsesTimeLayouts(t *testing.T) {
	f := Field{Name: "effectiveAt", Column: "effective_at", Kind: KindTime}
	want := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

	for _, raw := range []string{"2024-05-17T16:30:00+07:00", "2024-05-17 09:30:00"} {
		v, err := normalize(f, raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(v.(time.Time)), raw)
	}
	v, err := normalize(f, "2024-05-17")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC).Equal(v.(time.Time)))
}
