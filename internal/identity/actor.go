// Package identity supplies the current actor to domain services. The core
// never authenticates anyone: it trusts the claims carried by a verified
// bearer token and exposes them as a typed Actor in request context.
package identity

import (
	"context"

	"lifecert/pkg/domain"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID        string
	DisplayID string
	Name      string
	Role      domain.Role
}

// IsPensioner reports whether the actor may perform owner operations.
func (a Actor) IsPensioner() bool { return a.Role == domain.RolePensioner }

// IsNotary reports whether the actor may attest or reject submissions.
func (a Actor) IsNotary() bool { return a.Role == domain.RoleNotary }

type actorKey struct{}
type userAgentKey struct{}

// WithActor stores the actor in context. Set by middleware, read by services.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom retrieves the actor; ok is false when no middleware ran.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithUserAgent records the caller's user agent for the audit trail.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgentFrom retrieves the user agent, empty when unknown.
func UserAgentFrom(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}
