package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{ID: " maker-1 ", OriginAddress: "10.0.0.7"})

	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "maker-1", actor.CurrentActorID())
	assert.Equal(t, "10.0.0.7", actor.CurrentOriginAddress())
}

func TestActorMissing(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ActorFromContext(WithActor(context.Background(), Actor{ID: "  "}))
	assert.False(t, ok, "blank actor id must not count as an actor")
}

func TestActorsDoNotCrossContexts(t *testing.T) {
	base := context.Background()
	a := WithActor(base, Actor{ID: "alice"})
	b := WithActor(base, Actor{ID: "bob"})

	got, _ := ActorFromContext(a)
	assert.Equal(t, "alice", got.ID)
	got, _ = ActorFromContext(b)
	assert.Equal(t, "bob", got.ID)
}

func TestRequestID(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "req-1", RequestIDFromContext(WithRequestID(context.Background(), "req-1")))
}

func TestAuditFromContext(t *testing.T) {
	_, ok := AuditFromContext(context.Background())
	assert.False(t, ok)

	audit, ok := AuditFromContext(WithActor(context.Background(), Actor{ID: "checker-2", OriginAddress: "10.1.1.1"}))
	require.True(t, ok)
	assert.Equal(t, "checker-2", audit.CurrentActorID())
	assert.Equal(t, "10.1.1.1", audit.CurrentOriginAddress())
}
