package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskadmin/internal/db"
	"riskadmin/internal/domain"
	"riskadmin/internal/requestctx"
	"riskadmin/internal/utils"
)

// Machine applies maker and checker actions to entity rows.
type Machine struct {
	db  *db.Database
	now func() time.Time
}

type Option func(*Machine)

// WithClock overrides the time source used for workflow stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func New(database *db.Database, opts ...Option) *Machine {
	m := &Machine{db: database, now: utils.NowUTC}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type empty struct{}

func actorFrom(ctx context.Context) (requestctx.Actor, error) {
	audit, ok := requestctx.AuditFromContext(ctx)
	if !ok {
		return requestctx.Actor{}, domain.InvalidArgument("actor", "acting user is required")
	}
	return requestctx.Actor{ID: audit.CurrentActorID(), OriginAddress: audit.CurrentOriginAddress()}, nil
}

func alreadyExists(e *Entity, key string) error {
	return domain.DomainError{Code: domain.CodeAlreadyExists, Msg: fmt.Sprintf("%s %s already exists", e.Name, key)}
}

func noRowsUpdated(e *Entity, key string) error {
	return domain.DomainError{Code: domain.CodeNoRowsUpdated, Msg: fmt.Sprintf("no records were updated for %s %s", e.Name, key)}
}

func notFound(e *Entity, key string) error {
	return domain.NotFoundError{Resource: e.Name, Key: key}
}

// wrap keeps typed errors and turns anything else into a DomainError that
// preserves the original message. It runs inside the transaction callback,
// so the failure is logged before the rollback.
func (m *Machine) wrap(ctx context.Context, op string, e *Entity, key string, actor requestctx.Actor, err error) error {
	log := utils.Module("workflow", requestctx.RequestIDFromContext(ctx))
	if domain.IsPassThrough(err) {
		log.Warn().Err(err).
			Str("event", utils.EventWorkflowFailed).
			Str("operation", op).Str("entity", e.Name).Str("key", key).Str("actor", actor.ID).
			Msg("workflow action rejected")
		return err
	}
	log.Error().Err(err).
		Str("event", utils.EventWorkflowFailed).
		Str("operation", op).Str("entity", e.Name).Str("key", key).Str("actor", actor.ID).
		Msg("workflow action failed")
	return domain.DomainError{Code: domain.CodeStoreFailure, Msg: err.Error(), Err: err}
}

func (m *Machine) load(ctx context.Context, ex *db.Executor, e *Entity, keys Values, includeDeleted bool) (Record, bool, error) {
	where, params := e.keyWhere(keys)
	if !includeDeleted {
		where += " AND is_deleted = 0"
	}
	cmd := db.Text(e.Name+".get",
		fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(e.columns(), ", "), e.Table, where),
		params...)
	return db.QuerySingle(ctx, ex, cmd, e.mapRecord)
}

// makerStamp is the SET list and parameters shared by every maker action.
func makerStamp(actor requestctx.Actor, now time.Time, action domain.ActionType) (string, []db.Parameter) {
	set := `auth_state = @AuthState, auth_level = @AuthLevel, maker_id = @MakerID,
  action_timestamp = @ActionTimestamp, transaction_date = @TransactionDate,
  origin_address = @OriginAddress, action_type = @ActionType,
  auth_id = NULL, auth_timestamp = NULL, auth_transaction_date = NULL, remarks = NULL,
  row_version = row_version + 1`
	return set, []db.Parameter{
		db.Arg("AuthState", int64(domain.Unauthorized)).As(db.TypeInt),
		db.Arg("AuthLevel", int64(1)).As(db.TypeInt),
		db.Arg("MakerID", actor.ID).As(db.TypeString),
		db.Arg("ActionTimestamp", now).As(db.TypeTime),
		db.Arg("TransactionDate", utils.BusinessDate(now)).As(db.TypeTime),
		db.Arg("OriginAddress", actor.OriginAddress).As(db.TypeString),
		db.Arg("ActionType", string(action)).As(db.TypeString),
	}
}

func fieldParams(e *Entity, fields Values) ([]string, []db.Parameter) {
	sets := make([]string, 0, len(e.Fields))
	params := make([]db.Parameter, 0, len(e.Fields))
	for i, f := range e.Fields {
		name := fmt.Sprintf("F%d", i)
		sets = append(sets, fmt.Sprintf("%s = @%s", f.Column, name))
		params = append(params, db.Arg(name, fields[f.Name]))
	}
	return sets, params
}

func (e *Entity) insertCommand(keys, fields Values, actor requestctx.Actor, now time.Time, affected *int64) db.Command {
	cols := make([]string, 0, len(e.Keys)+len(e.Fields))
	vals := make([]string, 0, cap(cols))
	var params []db.Parameter
	for i, k := range e.Keys {
		name := fmt.Sprintf("Key%d", i)
		cols = append(cols, k.Column)
		vals = append(vals, "@"+name)
		params = append(params, db.Arg(name, keys[k.Name]))
	}
	for i, f := range e.Fields {
		name := fmt.Sprintf("F%d", i)
		cols = append(cols, f.Column)
		vals = append(vals, "@"+name)
		params = append(params, db.Arg(name, fields[f.Name]))
	}
	_, stamp := makerStamp(actor, now, domain.ActionInsert)
	params = append(params, stamp...)
	params = append(params, db.Out(db.RowsAffectedParam, affected))

	text := fmt.Sprintf(`INSERT INTO %s (%s,
  auth_state, is_deleted, auth_level, maker_id, action_timestamp, transaction_date,
  origin_address, action_type, auth_id, auth_timestamp, auth_transaction_date,
  remarks, pending_data, row_version)
VALUES (%s,
  @AuthState, 0, @AuthLevel, @MakerID, @ActionTimestamp, @TransactionDate,
  @OriginAddress, @ActionType, NULL, NULL, NULL,
  NULL, NULL, 1)`, e.Table, strings.Join(cols, ", "), strings.Join(vals, ", "))
	return db.Text(e.Name+".insert", text, params...)
}

// reviveCommand reuses a soft-deleted row for a fresh pending insert.
func (e *Entity) reviveCommand(keys, fields Values, actor requestctx.Actor, now time.Time, version int64, affected *int64) db.Command {
	sets, params := fieldParams(e, fields)
	stampSet, stamp := makerStamp(actor, now, domain.ActionInsert)
	where, keyParams := e.keyWhere(keys)
	params = append(params, stamp...)
	params = append(params, keyParams...)
	params = append(params, db.Arg("Version", version), db.Out(db.RowsAffectedParam, affected))

	text := fmt.Sprintf(`UPDATE %s SET %s,
  is_deleted = 0, pending_data = NULL, %s
WHERE %s AND is_deleted = 1 AND row_version = @Version`,
		e.Table, strings.Join(sets, ", "), stampSet, where)
	return db.Text(e.Name+".revive", text, params...)
}

// pendingCommand records a maker update or delete without touching the
// authoritative columns.
func (e *Entity) pendingCommand(keys Values, pending *string, action domain.ActionType, actor requestctx.Actor, now time.Time, version int64, affected *int64) db.Command {
	stampSet, params := makerStamp(actor, now, action)
	where, keyParams := e.keyWhere(keys)
	var pendingValue any
	if pending != nil {
		pendingValue = *pending
	}
	params = append(params, db.Arg("Pending", pendingValue))
	params = append(params, keyParams...)
	params = append(params, db.Arg("Version", version), db.Out(db.RowsAffectedParam, affected))

	text := fmt.Sprintf(`UPDATE %s SET pending_data = @Pending, %s
WHERE %s AND is_deleted = 0 AND row_version = @Version`, e.Table, stampSet, where)
	return db.Text(fmt.Sprintf("%s.%s", e.Name, strings.ToLower(string(action))), text, params...)
}

func auditCommand(e *Entity, key, action string, actor requestctx.Actor, remarks string, state domain.AuthState, now time.Time) db.Command {
	var remarksValue any
	if remarks != "" {
		remarksValue = remarks
	}
	return db.Text("workflow_audit.insert", `INSERT INTO workflow_audit
  (entity, entity_key, action, actor_id, origin_address, remarks, auth_state, created_at)
VALUES (@Entity, @EntityKey, @Action, @ActorID, @OriginAddress, @Remarks, @AuthState, @CreatedAt)`,
		db.Arg("Entity", e.Name),
		db.Arg("EntityKey", key),
		db.Arg("Action", action),
		db.Arg("ActorID", actor.ID),
		db.Arg("OriginAddress", actor.OriginAddress),
		db.Arg("Remarks", remarksValue),
		db.Arg("AuthState", int64(state)),
		db.Arg("CreatedAt", now),
	)
}

func (m *Machine) logAction(ctx context.Context, event string, e *Entity, key string, actor requestctx.Actor, action string) {
	log := utils.Module("workflow", requestctx.RequestIDFromContext(ctx))
	log.Info().
		Str("event", event).
		Str("entity", e.Name).
		Str("key", key).
		Str("actor", actor.ID).
		Str("origin", actor.OriginAddress).
		Str("business_date", utils.FormatDate(m.now())).
		Msg(action)
}

// Create records a pending insert. A soft-deleted row with the same key is
// reused; an active one is a DomainError.
func (m *Machine) Create(ctx context.Context, e *Entity, keys, fields Values) (Record, error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return Record{}, err
	}
	fields, err = e.normalizeFields(fields, nil)
	if err != nil {
		return Record{}, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return Record{}, err
	}
	now := m.now().UTC()
	key := e.KeyString(keys)

	_, err = db.RunInTx(ctx, m.db, func(ex *db.Executor) (empty, error) {
		existing, found, err := m.load(ctx, ex, e, keys, true)
		if err != nil {
			return empty{}, m.wrap(ctx, "create", e, key, actor, err)
		}
		if found && existing.IsDeleted == domain.Active {
			return empty{}, m.wrap(ctx, "create", e, key, actor, alreadyExists(e, key))
		}

		var affected int64
		cmd := e.insertCommand(keys, fields, actor, now, &affected)
		if found {
			cmd = e.reviveCommand(keys, fields, actor, now, existing.Version, &affected)
		}
		if _, err := ex.ExecuteWithOutputs(ctx, cmd); err != nil {
			if ex.Dialect().IsUniqueViolation(err) {
				err = alreadyExists(e, key)
			}
			return empty{}, m.wrap(ctx, "create", e, key, actor, err)
		}
		if affected == 0 {
			return empty{}, m.wrap(ctx, "create", e, key, actor, noRowsUpdated(e, key))
		}
		if _, err := ex.Execute(ctx, auditCommand(e, key, string(domain.ActionInsert), actor, "", domain.Unauthorized, now)); err != nil {
			return empty{}, m.wrap(ctx, "create", e, key, actor, err)
		}
		return empty{}, nil
	})
	if err != nil {
		return Record{}, err
	}
	m.logAction(ctx, utils.EventMakerAction, e, key, actor, string(domain.ActionInsert))
	return m.Get(ctx, e, keys)
}

// Update records pending values for an active row. Fields not supplied keep
// their authoritative value in the pending set.
func (m *Machine) Update(ctx context.Context, e *Entity, keys, fields Values) (Record, error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return Record{}, err
	}
	if _, err := e.normalizeFields(fields, nil); err != nil {
		return Record{}, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return Record{}, err
	}
	now := m.now().UTC()
	key := e.KeyString(keys)

	_, err = db.RunInTx(ctx, m.db, func(ex *db.Executor) (empty, error) {
		current, found, err := m.load(ctx, ex, e, keys, false)
		if err != nil {
			return empty{}, m.wrap(ctx, "update", e, key, actor, err)
		}
		if !found {
			return empty{}, m.wrap(ctx, "update", e, key, actor, notFound(e, key))
		}
		pending, err := e.normalizeFields(fields, current.Fields)
		if err != nil {
			return empty{}, m.wrap(ctx, "update", e, key, actor, err)
		}
		encoded, err := e.encodePending(pending)
		if err != nil {
			return empty{}, m.wrap(ctx, "update", e, key, actor, err)
		}

		var affected int64
		cmd := e.pendingCommand(keys, &encoded, domain.ActionUpdate, actor, now, current.Version, &affected)
		if _, err := ex.ExecuteWithOutputs(ctx, cmd); err != nil {
			return empty{}, m.wrap(ctx, "update", e, key, actor, err)
		}
		if affected == 0 {
			return empty{}, m.wrap(ctx, "update", e, key, actor, noRowsUpdated(e, key))
		}
		if _, err := ex.Execute(ctx, auditCommand(e, key, string(domain.ActionUpdate), actor, "", domain.Unauthorized, now)); err != nil {
			return empty{}, m.wrap(ctx, "update", e, key, actor, err)
		}
		return empty{}, nil
	})
	if err != nil {
		return Record{}, err
	}
	m.logAction(ctx, utils.EventMakerAction, e, key, actor, string(domain.ActionUpdate))
	return m.Get(ctx, e, keys)
}

// Delete records a pending delete. The row stays active until approved.
func (m *Machine) Delete(ctx context.Context, e *Entity, keys Values) (Record, error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return Record{}, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return Record{}, err
	}
	now := m.now().UTC()
	key := e.KeyString(keys)

	_, err = db.RunInTx(ctx, m.db, func(ex *db.Executor) (empty, error) {
		current, found, err := m.load(ctx, ex, e, keys, false)
		if err != nil {
			return empty{}, m.wrap(ctx, "delete", e, key, actor, err)
		}
		if !found {
			return empty{}, m.wrap(ctx, "delete", e, key, actor, notFound(e, key))
		}
		var affected int64
		cmd := e.pendingCommand(keys, nil, domain.ActionDelete, actor, now, current.Version, &affected)
		if _, err := ex.ExecuteWithOutputs(ctx, cmd); err != nil {
			return empty{}, m.wrap(ctx, "delete", e, key, actor, err)
		}
		if affected == 0 {
			return empty{}, m.wrap(ctx, "delete", e, key, actor, noRowsUpdated(e, key))
		}
		if _, err := ex.Execute(ctx, auditCommand(e, key, string(domain.ActionDelete), actor, "", domain.Unauthorized, now)); err != nil {
			return empty{}, m.wrap(ctx, "delete", e, key, actor, err)
		}
		return empty{}, nil
	})
	if err != nil {
		return Record{}, err
	}
	m.logAction(ctx, utils.EventMakerAction, e, key, actor, string(domain.ActionDelete))
	return m.Get(ctx, e, keys)
}
