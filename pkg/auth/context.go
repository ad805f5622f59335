package auth

import (
	"context"
)

// Context keys for authentication data
type contextKey string

// ContextKeyActor is the context key for the authenticated actor
const ContextKeyActor contextKey = "actor"

// WithActor adds the authenticated actor to the context
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ActorFromContext retrieves the authenticated actor from the context
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(*Actor)
	return actor, ok
}
