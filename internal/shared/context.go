package shared

import "context"

// Identity is the verified caller attached to a request context once the
// guard has accepted the bearer token and confirmed a live session.
type Identity struct {
	UserID    int64
	Email     string
	Role      string
	SessionID string
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
