package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskadmin/internal/db"
	"riskadmin/internal/domain"
	"riskadmin/internal/outbox"
	"riskadmin/internal/requestctx"
	"riskadmin/internal/utils"
)

// Authorize applies a checker decision to a pending record. The update is
// conditional on the record still being Unauthorized at the version read,
// so of two racing checkers only one succeeds.
func (m *Machine) Authorize(ctx context.Context, e *Entity, keys Values, decision domain.Decision, remarks string) (Record, error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return Record{}, err
	}
	decision = domain.Decision(strings.ToLower(strings.TrimSpace(string(decision))))
	if !decision.Valid() {
		return Record{}, domain.InvalidArgument("decision", "must be approve or deny, got %q", decision)
	}
	remarks = utils.NormalizeSpace(remarks)
	if decision == domain.DecisionDeny && remarks == "" {
		return Record{}, domain.DomainError{Code: domain.CodeRemarksRequired, Msg: "remarks are required to deny a change"}
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return Record{}, err
	}
	now := m.now().UTC()
	key := e.KeyString(keys)

	var action domain.ActionType
	_, err = db.RunInTx(ctx, m.db, func(ex *db.Executor) (empty, error) {
		current, found, err := m.load(ctx, ex, e, keys, false)
		if err != nil {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, err)
		}
		if !found {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, notFound(e, key))
		}
		if current.AuthState != domain.Unauthorized {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, domain.DomainError{
				Code: domain.CodeNotPending,
				Msg:  fmt.Sprintf("%s %s is not pending authorization (state %s)", e.Name, key, current.AuthState),
			})
		}
		if current.MakerID == actor.ID {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, domain.DomainError{
				Code: domain.CodeSelfAuthorization,
				Msg:  fmt.Sprintf("%s cannot authorize their own change", actor.ID),
			})
		}
		action = current.ActionType

		var affected int64
		cmd := e.authorizeCommand(current, decision, remarks, actor, now, &affected)
		if _, err := ex.ExecuteWithOutputs(ctx, cmd); err != nil {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, err)
		}
		if affected == 0 {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, noRowsUpdated(e, key))
		}

		state := stateFor(decision)
		auditAction := "Approve"
		if decision == domain.DecisionDeny {
			auditAction = "Deny"
		}
		if _, err := ex.Execute(ctx, auditCommand(e, key, auditAction, actor, remarks, state, now)); err != nil {
			return empty{}, m.wrap(ctx, "authorize", e, key, actor, err)
		}

		if decision == domain.DecisionApprove && e.notifies(action) {
			id, err := outbox.Enqueue(ctx, ex, outbox.Notification{
				Entity:     e.Name,
				EntityKey:  key,
				Keys:       map[string]any(current.Keys),
				ChangeKind: string(action),
			}, now)
			if err != nil {
				return empty{}, m.wrap(ctx, "authorize", e, key, actor, err)
			}
			log := utils.Module("workflow", requestctx.RequestIDFromContext(ctx))
			log.Info().
				Str("event", utils.EventNotificationQueued).
				Str("entity", e.Name).Str("key", key).Str("outbox_id", id).
				Msg("downstream notification queued")
		}
		return empty{}, nil
	})
	if err != nil {
		return Record{}, err
	}
	m.logAction(ctx, utils.EventCheckerAction, e, key, actor, fmt.Sprintf("%s %s", decision, action))

	// An approved delete is no longer visible to ordinary reads.
	rec, found, err := m.load(ctx, m.db.Executor(), e, keys, true)
	if err != nil {
		return Record{}, m.wrap(ctx, "authorize", e, key, actor, err)
	}
	if !found {
		return Record{}, notFound(e, key)
	}
	return rec, nil
}

func stateFor(decision domain.Decision) domain.AuthState {
	if decision == domain.DecisionApprove {
		return domain.Approved
	}
	return domain.Denied
}

func (e *Entity) authorizeCommand(current Record, decision domain.Decision, remarks string, actor requestctx.Actor, now time.Time, affected *int64) db.Command {
	var (
		sets   []string
		params []db.Parameter
	)
	if decision == domain.DecisionApprove {
		switch current.ActionType {
		case domain.ActionUpdate:
			if current.Pending != nil {
				promoted := make(Values, len(e.Fields))
				for _, f := range e.Fields {
					promoted[f.Name] = current.Fields[f.Name]
					if v, ok := current.Pending[f.Name]; ok {
						promoted[f.Name] = v
					}
				}
				sets, params = fieldParams(e, promoted)
			}
		case domain.ActionDelete:
			sets = append(sets, "is_deleted = 1")
		}
	}

	var remarksValue any
	if remarks != "" {
		remarksValue = remarks
	}
	sets = append(sets,
		"pending_data = NULL",
		"auth_state = @AuthState",
		"auth_id = @AuthID",
		"auth_timestamp = @AuthTimestamp",
		"auth_transaction_date = @AuthTransactionDate",
		"remarks = @Remarks",
		"row_version = row_version + 1",
	)
	where, keyParams := e.keyWhere(current.Keys)
	params = append(params,
		db.Arg("AuthState", int64(stateFor(decision))).As(db.TypeInt),
		db.Arg("AuthID", actor.ID).As(db.TypeString),
		db.Arg("AuthTimestamp", now).As(db.TypeTime),
		db.Arg("AuthTransactionDate", utils.BusinessDate(now)).As(db.TypeTime),
		db.Arg("Remarks", remarksValue),
	)
	params = append(params, keyParams...)
	params = append(params,
		db.Arg("ExpectedState", int64(domain.Unauthorized)),
		db.Arg("Version", current.Version),
		db.Out(db.RowsAffectedParam, affected),
	)

	text := fmt.Sprintf(`UPDATE %s SET %s
WHERE %s AND is_deleted = 0 AND auth_state = @ExpectedState AND row_version = @Version`,
		e.Table, strings.Join(sets, ", "), where)
	return db.Text(e.Name+".authorize", text, params...)
}
