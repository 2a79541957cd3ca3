package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/auth"
)

type contextKey string

const ctxIdentity contextKey = "actor_identity"

// WithIdentity stores the authenticated actor on the context.
func WithIdentity(ctx context.Context, identity auth.ActorIdentity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

func IdentityFromContext(ctx context.Context) (auth.ActorIdentity, bool) {
	if ctx == nil {
		return auth.ActorIdentity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.ActorIdentity)
	return identity, ok
}

// ActorIDFromContext returns uuid.Nil for anonymous requests.
func ActorIDFromContext(ctx context.Context) uuid.UUID {
	identity, _ := IdentityFromContext(ctx)
	return identity.UserID
}
