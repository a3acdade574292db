package shared

import (
	"context"
	"time"
)

// Actor identifies the authenticated user performing a request.
type Actor struct {
	ID   int64
	Name string
}

// RequestContext carries per-request inputs that would otherwise be read
// from ambient state: who is acting and what time it is.
type RequestContext struct {
	Actor          Actor
	Now            time.Time
	RequestID      string
	IdempotencyKey string
}

// Validate ensures the context can be used for mutations.
func (rc RequestContext) Validate() error {
	if rc.Actor.ID <= 0 {
		return ErrActorRequired
	}
	return nil
}

// Clock returns the request time, falling back to fn when unset.
func (rc RequestContext) Clock(fn func() time.Time) time.Time {
	if !rc.Now.IsZero() {
		return rc.Now
	}
	if fn == nil {
		return time.Now()
	}
	return fn()
}

type actorContextKey struct{}

type requestContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ContextWithRequest stores the request context.
func ContextWithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestFromContext extracts the request context, filling the actor from
// ContextWithActor when the stored value has none.
func RequestFromContext(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	if rc.Actor.ID == 0 {
		if actor, ok := ActorFromContext(ctx); ok {
			rc.Actor = actor
		}
	}
	return rc
}
