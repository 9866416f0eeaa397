package actor

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type sessionKey struct{}

// WithSessionToken plants the caller's session token in context for
// SessionResolver to look up.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, token)
}

// SessionClient is the slice of the redis client the resolver needs.
// Satisfied by *redis.Client.
type SessionClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SessionResolver maps a session token from context to a user id stored in
// Redis under prefix+token. Lookup failures resolve to no user rather than
// failing the save: attribution is best-effort, the audit row itself is not.
type SessionResolver struct {
	client SessionClient
	prefix string
}

func NewSessionResolver(client SessionClient, prefix string) *SessionResolver {
	return &SessionResolver{client: client, prefix: prefix}
}

func (r *SessionResolver) CurrentUser(ctx context.Context) (uuid.UUID, bool) {
	token, ok := ctx.Value(sessionKey{}).(string)
	if !ok || token == "" {
		return uuid.Nil, false
	}
	raw, err := r.client.Get(ctx, r.prefix+token).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
