package auth

import (
	"context"
	"time"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Identity is the authenticated caller as established by JWTMiddleware.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}
