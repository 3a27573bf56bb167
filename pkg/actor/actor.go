// Package actor identifies the user or system performing an action.
// Attribution fields on transactions and alerts (created_by, acknowledged_by,
// resolved_by) are filled from the actor in the request context; background
// jobs run as the system actor.
package actor

import (
	"context"
)

// SystemID is the well-known ID used for system-initiated operations.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is the actor's display name, if known
	Name string `json:"name,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}

// SystemActor returns an Actor representing the system itself.
// Use this for scheduled sweeps and other system-initiated operations.
func SystemActor() *Actor {
	return &Actor{ID: SystemID, Name: "system"}
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// FromContextOrSystem retrieves the Actor from the context, falling back to
// the system actor when none is set. Use in paths that can run outside an
// HTTP request, like scheduled jobs.
func FromContextOrSystem(ctx context.Context) *Actor {
	if a := FromContext(ctx); a != nil {
		return a
	}
	return SystemActor()
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}
