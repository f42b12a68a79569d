package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memStore mirrors the PGStore contract in memory with an injectable clock so
// the adapter semantics can be exercised without a database.
type memStore struct {
	now      func() time.Time
	sessions []*Session
}

func (m *memStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, userID int64, ttl time.Duration, ip, ua string) (*Session, error) {
	now := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		IP:        ip,
		UserAgent: ua,
	}
	m.sessions = append(m.sessions, sess)
	return sess, nil
}

func (m *memStore) Revoke(ctx context.Context, sessionID string) error {
	for _, s := range m.sessions {
		if s.ID == sessionID && s.RevokedAt == nil {
			t := m.now()
			s.RevokedAt = &t
		}
	}
	return nil
}

func (m *memStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	for _, s := range m.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := m.now()
			s.RevokedAt = &t
		}
	}
	return nil
}

var _ Store = (*memStore)(nil)

func TestSessionHonoursTTL(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := t0
	store := &memStore{now: func() time.Time { return clock }}
	ctx := context.Background()

	created, err := store.Create(ctx, 7, time.Hour, "10.0.0.1", "cli")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess == nil || !sess.Live(t0.Add(59*time.Minute)) {
		t.Fatal("expected live session at T0+59m")
	}

	// Past the server-side TTL the session is dead regardless of whatever
	// expiry the bearer token itself claims.
	if sess.Live(t0.Add(61 * time.Minute)) {
		t.Fatal("expected dead session at T0+61m")
	}
}

func TestRevokedSessionIsReturnedButNotLive(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store := &memStore{now: func() time.Time { return t0 }}
	ctx := context.Background()

	sess, err := store.Create(ctx, 7, time.Hour, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("revoked rows stay readable, they are never deleted")
	}
	if got.Live(t0) {
		t.Fatal("revoked session must not be live")
	}
}

func TestGetResolvesExactSession(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := t0
	store := &memStore{now: func() time.Time { return clock }}
	ctx := context.Background()

	first, err := store.Create(ctx, 7, time.Hour, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock = t0.Add(time.Minute)
	if _, err := store.Create(ctx, 7, time.Hour, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A newer concurrent session must not shadow the one asked for.
	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("expected session %s, got %+v", first.ID, got)
	}

	missing, err := store.Get(ctx, "no-such-session")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v", missing)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := t0
	store := &memStore{now: func() time.Time { return clock }}
	ctx := context.Background()

	sess, err := store.Create(ctx, 7, time.Hour, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	stamped := *sess.RevokedAt

	clock = t0.Add(10 * time.Minute)
	if err := store.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second revoke must be a no-op, got %v", err)
	}
	if !sess.RevokedAt.Equal(stamped) {
		t.Fatal("second revoke must not move the revocation timestamp")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store := &memStore{now: func() time.Time { return t0 }}
	ctx := context.Background()

	mine := make([]*Session, 0, 3)
	for i := 0; i < 3; i++ {
		sess, err := store.Create(ctx, 7, time.Hour, "", "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		mine = append(mine, sess)
	}
	other, err := store.Create(ctx, 8, time.Hour, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.RevokeAllForUser(ctx, 7); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	for _, sess := range mine {
		got, _ := store.Get(ctx, sess.ID)
		if got.Live(t0) {
			t.Fatalf("session %s for user 7 must be revoked", sess.ID)
		}
	}
	if got, _ := store.Get(ctx, other.ID); !got.Live(t0) {
		t.Fatal("user 8 sessions must be untouched")
	}
}

func TestLiveEdgeCases(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	cases := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil session", nil, false},
		{"expires exactly now", &Session{ExpiresAt: now}, false},
		{"revoked but unexpired", &Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
		{"live", &Session{ExpiresAt: now.Add(time.Hour)}, true},
	}
	for _, tc := range cases {
		if got := tc.sess.Live(now); got != tc.want {
			t.Fatalf("%s: Live = %v, want %v", tc.name, got, tc.want)
		}
	}
}
