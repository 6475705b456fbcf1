package requestctx

import (
	"context"
	"strings"
)

// Actor identifies who performs a maker or checker action and from where.
type Actor struct {
	ID            string
	OriginAddress string
}

// AuditContext supplies the acting user for one request.
type AuditContext interface {
	CurrentActorID() string
	CurrentOriginAddress() string
}

func (a Actor) CurrentActorID() string       { return a.ID }
func (a Actor) CurrentOriginAddress() string { return a.OriginAddress }

type actorContextKey struct{}
type requestIDContextKey struct{}

// WithActor stores the acting user in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	actor.ID = strings.TrimSpace(actor.ID)
	actor.OriginAddress = strings.TrimSpace(actor.OriginAddress)
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting user stored in context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

// AuditFromContext returns the request's audit context.
func AuditFromContext(ctx context.Context) (AuditContext, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, false
	}
	return actor, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
