// Package actor resolves the acting user for audit attribution. Resolvers
// are explicit collaborators handed to the save coordinator; there is no
// process-wide ambient lookup.
package actor

import (
	"context"

	"github.com/google/uuid"
)

// Resolver reports the user on whose behalf the current save runs. The
// second return value is false when no user can be attributed; audit
// records then carry a null actor.
type Resolver interface {
	CurrentUser(ctx context.Context) (uuid.UUID, bool)
}

// Static always resolves to a fixed user. Useful for batch jobs and
// migrations run under a service identity.
type Static struct {
	ID uuid.UUID
}

func (s Static) CurrentUser(context.Context) (uuid.UUID, bool) {
	return s.ID, s.ID != uuid.Nil
}

// Anonymous never resolves a user.
type Anonymous struct{}

func (Anonymous) CurrentUser(context.Context) (uuid.UUID, bool) {
	return uuid.Nil, false
}

type userKey struct{}

// WithUser plants the acting user in a request context for FromContext to
// pick up.
func WithUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// FromContext resolves the user previously planted with WithUser.
type FromContext struct{}

func (FromContext) CurrentUser(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
