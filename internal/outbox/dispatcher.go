package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"riskadmin/internal/utils"
)

// Notifier delivers one notification downstream.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	LeaseTTL     time.Duration
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    20,
		MaxAttempts:  8,
		LeaseTTL:     30 * time.Second,
		RetryBackoff: 5 * time.Second,
	}
}

// Backoff is the linear delay before retry number attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return base * time.Duration(attempt)
}

// Dispatcher delivers committed outbox events. Delivery failures never
// affect the authorization that queued them.
type Dispatcher struct {
	store    *Store
	notifier Notifier
	cfg      Config
	owner    string
	now      func() time.Time
	log      zerolog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithOwner(owner string) DispatcherOption {
	return func(d *Dispatcher) { d.owner = owner }
}

func NewDispatcher(store *Store, notifier Notifier, cfg Config, opts ...DispatcherOption) *Dispatcher {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		owner:    "dispatcher-" + uuid.NewString(),
		now:      utils.NowUTC,
		log:      utils.Module("outbox", ""),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := d.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error().Err(err).Msg("outbox poll failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce leases one batch and attempts each event. It returns the
// number delivered.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	now := d.now()
	events, err := d.store.Lease(ctx, d.owner, d.cfg.BatchSize, now, d.cfg.LeaseTTL)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if d.deliver(ctx, ev) {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) bool {
	n, err := ev.Notification()
	if err == nil {
		err = d.notifier.Notify(ctx, n)
	}
	now := d.now()
	if err == nil {
		if markErr := d.store.MarkDelivered(ctx, ev.ID, d.owner, now); markErr != nil {
			d.log.Error().Err(markErr).Str("outbox_id", ev.ID).Msg("mark delivered failed")
			return false
		}
		d.log.Info().
			Str("event", utils.EventNotificationDelivered).
			Str("outbox_id", ev.ID).Str("entity", ev.Entity).Str("key", ev.EntityKey).
			Msg("notification delivered")
		return true
	}

	attempt := ev.AttemptCount + 1
	giveUp := attempt >= d.cfg.MaxAttempts
	next := now.Add(Backoff(d.cfg.RetryBackoff, attempt))
	level := d.log.Warn()
	if giveUp {
		level = d.log.Error()
	}
	level.Err(err).
		Str("event", utils.EventNotificationFailed).
		Str("outbox_id", ev.ID).Str("entity", ev.Entity).Str("key", ev.EntityKey).
		Int("attempt", attempt).Bool("give_up", giveUp).
		Msg("notification failed")
	if markErr := d.store.MarkRetry(ctx, ev.ID, d.owner, now, next, err.Error(), giveUp); markErr != nil {
		d.log.Error().Err(markErr).Str("outbox_id", ev.ID).Msg("mark retry failed")
	}
	return false
}
