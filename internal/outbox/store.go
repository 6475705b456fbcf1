package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskadmin/internal/db"
)

const (
	StatusPending   = "pending"
	StatusLeased    = "leased"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Notification is what the downstream collaborator receives for an
// approved change.
type Notification struct {
	EventID    string         `json:"eventId"`
	Entity     string         `json:"entity"`
	EntityKey  string         `json:"entityKey"`
	Keys       map[string]any `json:"keys"`
	ChangeKind string         `json:"changeKind"`
}

// Event is one stored outbox row.
type Event struct {
	ID             string
	Entity         string
	EntityKey      string
	ChangeKind     string
	PayloadJSON    string
	Status         string
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}

func (e Event) Notification() (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(e.PayloadJSON), &n); err != nil {
		return Notification{}, fmt.Errorf("decode outbox payload %s: %w", e.ID, err)
	}
	n.EventID = e.ID
	return n, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func millisPtr(r *db.Row, col string) *time.Time {
	if r.IsNull(col) {
		return nil
	}
	t := fromMillis(r.Int64(col))
	return &t
}

// Enqueue writes a pending notification through ex, normally inside the
// transaction that made the change.
func Enqueue(ctx context.Context, ex *db.Executor, n Notification, now time.Time) (string, error) {
	if strings.TrimSpace(n.Entity) == "" || strings.TrimSpace(n.ChangeKind) == "" {
		return "", fmt.Errorf("outbox notification needs entity and change kind")
	}
	id := uuid.NewString()
	n.EventID = id
	payload, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode outbox payload: %w", err)
	}
	ms := toMillis(now)
	_, err = ex.Execute(ctx, db.Text("outbox.enqueue", `INSERT INTO outbox_events
  (id, entity, entity_key, change_kind, payload_json, status, attempt_count,
   next_attempt_at, lease_owner, lease_expires_at, last_error, processed_at, created_at, updated_at)
VALUES (@ID, @Entity, @EntityKey, @ChangeKind, @Payload, @Status, 0,
   @Now, '', NULL, '', NULL, @Now, @Now)`,
		db.Arg("ID", id),
		db.Arg("Entity", n.Entity),
		db.Arg("EntityKey", n.EntityKey),
		db.Arg("ChangeKind", n.ChangeKind),
		db.Arg("Payload", string(payload)),
		db.Arg("Status", StatusPending),
		db.Arg("Now", ms),
	))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Store leases and settles outbox rows.
type Store struct {
	db *db.Database
}

func NewStore(database *db.Database) *Store {
	return &Store{db: database}
}

const eventColumns = `id, entity, entity_key, change_kind, payload_json, status, attempt_count,
  next_attempt_at, lease_owner, lease_expires_at, last_error, processed_at, created_at`

func mapEvent(r *db.Row) (Event, error) {
	ev := Event{
		ID:             r.String("id"),
		Entity:         r.String("entity"),
		EntityKey:      r.String("entity_key"),
		ChangeKind:     r.String("change_kind"),
		PayloadJSON:    r.String("payload_json"),
		Status:         r.String("status"),
		AttemptCount:   r.Int("attempt_count"),
		NextAttemptAt:  fromMillis(r.Int64("next_attempt_at")),
		LeaseOwner:     r.String("lease_owner"),
		LeaseExpiresAt: millisPtr(r, "lease_expires_at"),
		LastError:      r.String("last_error"),
		ProcessedAt:    millisPtr(r, "processed_at"),
		CreatedAt:      fromMillis(r.Int64("created_at")),
	}
	return ev, r.Err()
}

// Get returns one event by id.
func (s *Store) Get(ctx context.Context, id string) (Event, bool, error) {
	return db.QuerySingle(ctx, s.db.Executor(), db.Text("outbox.get",
		"SELECT "+eventColumns+" FROM outbox_events WHERE id = @ID", db.Arg("ID", id)), mapEvent)
}

// Lease claims up to limit due events for owner until now+ttl. Pending rows
// past their next attempt and leased rows whose lease expired are due.
func (s *Store) Lease(ctx context.Context, owner string, limit int, now time.Time, ttl time.Duration) ([]Event, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("lease owner is required")
	}
	if limit <= 0 || ttl <= 0 {
		return nil, fmt.Errorf("lease limit and ttl must be greater than zero")
	}
	nowMs := toMillis(now)

	return db.RunInTx(ctx, s.db, func(ex *db.Executor) ([]Event, error) {
		ids, err := db.QueryAll(ctx, ex, db.Text("outbox.lease_candidates", `SELECT id FROM outbox_events
WHERE (status = @Pending AND next_attempt_at <= @Now)
   OR (status = @Leased AND lease_expires_at IS NOT NULL AND lease_expires_at <= @Now)
ORDER BY next_attempt_at ASC, created_at ASC, id ASC
LIMIT @Limit`,
			db.Arg("Pending", StatusPending),
			db.Arg("Leased", StatusLeased),
			db.Arg("Now", nowMs),
			db.Arg("Limit", int64(limit)),
		), func(r *db.Row) (string, error) { return r.String("id"), r.Err() })
		if err != nil {
			return nil, err
		}

		leased := make([]Event, 0, len(ids))
		for _, id := range ids {
			var affected int64
			_, err := ex.ExecuteWithOutputs(ctx, db.Text("outbox.lease", `UPDATE outbox_events
SET status = @Leased, lease_owner = @Owner, lease_expires_at = @Expires, updated_at = @Now
WHERE id = @ID
  AND ((status = @Pending AND next_attempt_at <= @Now)
    OR (status = @Leased AND lease_expires_at IS NOT NULL AND lease_expires_at <= @Now))`,
				db.Arg("Leased", StatusLeased),
				db.Arg("Pending", StatusPending),
				db.Arg("Owner", owner),
				db.Arg("Expires", toMillis(now.Add(ttl))),
				db.Arg("Now", nowMs),
				db.Arg("ID", id),
				db.Out(db.RowsAffectedParam, &affected),
			))
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				continue
			}
			ev, found, err := db.QuerySingle(ctx, ex, db.Text("outbox.get",
				"SELECT "+eventColumns+" FROM outbox_events WHERE id = @ID", db.Arg("ID", id)), mapEvent)
			if err != nil {
				return nil, err
			}
			if found {
				leased = append(leased, ev)
			}
		}
		return leased, nil
	})
}

// MarkDelivered settles an event leased by owner.
func (s *Store) MarkDelivered(ctx context.Context, id, owner string, now time.Time) error {
	n, err := s.db.Executor().Execute(ctx, db.Text("outbox.delivered", `UPDATE outbox_events
SET status = @Delivered, processed_at = @Now, lease_owner = '', lease_expires_at = NULL,
  last_error = '', updated_at = @Now
WHERE id = @ID AND status = @Leased AND lease_owner = @Owner`,
		db.Arg("Delivered", StatusDelivered),
		db.Arg("Now", toMillis(now)),
		db.Arg("ID", id),
		db.Arg("Leased", StatusLeased),
		db.Arg("Owner", owner),
	))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox event %s is no longer leased by %s", id, owner)
	}
	return nil
}

// MarkRetry records a failed attempt. The event returns to pending at
// nextAttempt, or becomes failed when giveUp is set.
func (s *Store) MarkRetry(ctx context.Context, id, owner string, now, nextAttempt time.Time, lastErr string, giveUp bool) error {
	status := StatusPending
	if giveUp {
		status = StatusFailed
	}
	n, err := s.db.Executor().Execute(ctx, db.Text("outbox.retry", `UPDATE outbox_events
SET status = @Status, attempt_count = attempt_count + 1, next_attempt_at = @Next,
  lease_owner = '', lease_expires_at = NULL, last_error = @LastError, updated_at = @Now
WHERE id = @ID AND status = @Leased AND lease_owner = @Owner`,
		db.Arg("Status", status),
		db.Arg("Next", toMillis(nextAttempt)),
		db.Arg("LastError", lastErr),
		db.Arg("Now", toMillis(now)),
		db.Arg("ID", id),
		db.Arg("Leased", StatusLeased),
		db.Arg("Owner", owner),
	))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox event %s is no longer leased by %s", id, owner)
	}
	return nil
}
