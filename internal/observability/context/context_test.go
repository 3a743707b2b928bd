package context

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithAccountID(ctx, "acct-9")
	ctx = WithActor(ctx, "admin", "42")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := AccountIDFromContext(ctx); got != "acct-9" {
		t.Fatalf("expected acct-9, got %q", got)
	}
	kind, id := ActorFromContext(ctx)
	if kind != "admin" || id != "42" {
		t.Fatalf("unexpected actor %q/%q", kind, id)
	}
}

func TestEmptyContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	kind, id := ActorFromContext(context.Background())
	if kind != "" || id != "" {
		t.Fatalf("expected empty actor")
	}
}
