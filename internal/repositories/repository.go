package repositories

import (
	"context"
	"fmt"

	"riskadmin/internal/domain"
	"riskadmin/internal/workflow"
)

// Codec converts between a model and workflow field values.
type Codec[T any] struct {
	Keys   func(T) workflow.Values
	Fields func(T) workflow.Values
	Decode func(keys, fields workflow.Values) T
}

// Entry is a model with its pending change and workflow envelope.
type Entry[T any] struct {
	Data     T                     `json:"data"`
	Pending  *T                    `json:"pending,omitempty"`
	Workflow domain.WorkflowRecord `json:"workflow"`
}

// Repository gives typed access to one workflow-controlled entity.
type Repository[T any] struct {
	Entity  *workflow.Entity
	Codec   Codec[T]
	Machine *workflow.Machine
}

func (r *Repository[T]) entry(rec workflow.Record) Entry[T] {
	out := Entry[T]{
		Data:     r.Codec.Decode(rec.Keys, rec.Fields),
		Workflow: rec.WorkflowRecord,
	}
	if rec.Pending != nil {
		pending := r.Codec.Decode(rec.Keys, rec.Pending)
		out.Pending = &pending
	}
	return out
}

func (r *Repository[T]) Name() string { return r.Entity.Name }

// ParseKey reads a "k1~k2" path key.
func (r *Repository[T]) ParseKey(raw string) (workflow.Values, error) {
	return r.Entity.ParseKey(raw)
}

func (r *Repository[T]) Create(ctx context.Context, item T) (Entry[T], error) {
	rec, err := r.Machine.Create(ctx, r.Entity, r.Codec.Keys(item), r.Codec.Fields(item))
	if err != nil {
		return Entry[T]{}, err
	}
	return r.entry(rec), nil
}

// Update records item's fields as pending values for keys. Key values in
// item must match keys when set.
func (r *Repository[T]) Update(ctx context.Context, keys workflow.Values, item T) (Entry[T], error) {
	for name, v := range r.Codec.Keys(item) {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if fmt.Sprint(v) != fmt.Sprint(keys[name]) {
			return Entry[T]{}, domain.InvalidArgument(name, "body key %v does not match path key %v", v, keys[name])
		}
	}
	rec, err := r.Machine.Update(ctx, r.Entity, keys, r.Codec.Fields(item))
	if err != nil {
		return Entry[T]{}, err
	}
	return r.entry(rec), nil
}

func (r *Repository[T]) Delete(ctx context.Context, keys workflow.Values) (Entry[T], error) {
	rec, err := r.Machine.Delete(ctx, r.Entity, keys)
	if err != nil {
		return Entry[T]{}, err
	}
	return r.entry(rec), nil
}

func (r *Repository[T]) Authorize(ctx context.Context, keys workflow.Values, decision domain.Decision, remarks string) (Entry[T], error) {
	rec, err := r.Machine.Authorize(ctx, r.Entity, keys, decision, remarks)
	if err != nil {
		return Entry[T]{}, err
	}
	return r.entry(rec), nil
}

func (r *Repository[T]) Get(ctx context.Context, keys workflow.Values) (Entry[T], error) {
	rec, err := r.Machine.Get(ctx, r.Entity, keys)
	if err != nil {
		return Entry[T]{}, err
	}
	return r.entry(rec), nil
}

func (r *Repository[T]) List(ctx context.Context, req workflow.ListRequest) (domain.PageResult[Entry[T]], error) {
	page, err := r.Machine.List(ctx, r.Entity, req)
	if err != nil {
		return domain.PageResult[Entry[T]]{}, err
	}
	out := domain.PageResult[Entry[T]]{
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
		Items:      make([]Entry[T], 0, len(page.Items)),
	}
	for _, rec := range page.Items {
		out.Items = append(out.Items, r.entry(rec))
	}
	return out, nil
}

func (r *Repository[T]) History(ctx context.Context, keys workflow.Values, page domain.PageRequest) (domain.PageResult[domain.AuditEntry], error) {
	return r.Machine.History(ctx, r.Entity, keys, page)
}

func str(v workflow.Values, name string) string {
	s, _ := v[name].(string)
	return s
}

func i64(v workflow.Values, name string) int64 {
	n, _ := v[name].(int64)
	return n
}

func f64(v workflow.Values, name string) float64 {
	f, _ := v[name].(float64)
	return f
}
