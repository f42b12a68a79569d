// Package session manages the server-side session records that can revoke a
// still-unexpired bearer token. Sessions are mutated only to set revoked_at
// and are never deleted, so the trail survives for audit.
package session

import (
	"context"
	"time"
)

// Session is one server-side login record. A user may hold several at once.
type Session struct {
	ID        string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IP        string
	UserAgent string
}

// Live reports whether the session is still valid at the given instant:
// not revoked and not past its expiry.
func (s *Session) Live(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(now)
}

// Store is the persistence contract for sessions. Get returns (nil, nil)
// when no such session exists; it returns revoked and expired rows as-is so
// the caller can evaluate liveness against its own clock. Revocation is
// idempotent.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context, userID int64, ttl time.Duration, ip, ua string) (*Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}
