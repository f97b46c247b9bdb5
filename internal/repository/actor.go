package repository

import "context"

type actorKey struct{}

// WithActor tags the context with the identity making the change, so audit
// entries can record who moved a tracked field. Absent actor is fine; the
// entries then carry an empty actor.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the acting identity from the context, if any.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
