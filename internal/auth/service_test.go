package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-erp/atlas-access/internal/mfa"
	"github.com/atlas-erp/atlas-access/internal/session"
	"github.com/atlas-erp/atlas-access/internal/shared"
)

type stubRepo struct {
	users       map[string]*User
	updated     map[int64]string
	updateCalls int
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	if r.updated == nil {
		r.updated = map[int64]string{}
	}
	r.updated[userID] = hash
	r.updateCalls++
	return nil
}

type stubSessionStore struct {
	created      []*session.Session
	revoked      []string
	revokedUsers []int64
}

func (s *stubSessionStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	return nil, nil
}

func (s *stubSessionStore) Create(ctx context.Context, userID int64, ttl time.Duration, ip, ua string) (*session.Session, error) {
	sess := &session.Session{
		ID:        "sess-created",
		UserID:    userID,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
		IP:        ip,
		UserAgent: ua,
	}
	s.created = append(s.created, sess)
	return sess, nil
}

func (s *stubSessionStore) Revoke(ctx context.Context, sessionID string) error {
	s.revoked = append(s.revoked, sessionID)
	return nil
}

func (s *stubSessionStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	s.revokedUsers = append(s.revokedUsers, userID)
	return nil
}

type stubIssuer struct {
	lastSessionID string
}

func (i *stubIssuer) Issue(userID int64, email, role, sessionID string) (string, error) {
	i.lastSessionID = sessionID
	return "signed-token", nil
}

type stubFactor struct {
	status   mfa.Status
	wantCode string
}

func (f *stubFactor) StatusOf(ctx context.Context, userID int64) (mfa.Status, error) {
	return f.status, nil
}

func (f *stubFactor) Verify(ctx context.Context, userID int64, code string) error {
	if code != f.wantCode {
		return shared.ErrInvalidCode
	}
	return nil
}

type stubThrottle struct {
	blocked  bool
	failures int
	resets   int
}

func (t *stubThrottle) Check(ctx context.Context, email string) error {
	if t.blocked {
		return shared.ErrTooManyAttempts
	}
	return nil
}

func (t *stubThrottle) RecordFailure(ctx context.Context, email string) error {
	t.failures++
	return nil
}

func (t *stubThrottle) Reset(ctx context.Context, email string) error {
	t.resets++
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func newAuthFixture(t *testing.T) (*Service, *stubRepo, *stubSessionStore, *stubIssuer, *stubFactor, *stubThrottle) {
	t.Helper()
	repo := &stubRepo{users: map[string]*User{
		"pat@example.com": {
			ID:           42,
			Email:        "pat@example.com",
			PasswordHash: hashOf(t, "correct horse"),
			Role:         "manager",
			IsActive:     true,
		},
	}}
	sessions := &stubSessionStore{}
	issuer := &stubIssuer{}
	factor := &stubFactor{status: mfa.StatusNotStarted}
	throttle := &stubThrottle{}
	svc := NewService(ServiceConfig{
		Repo:         repo,
		Sessions:     sessions,
		Tokens:       issuer,
		SecondFactor: factor,
		Throttle:     throttle,
		SessionTTL:   time.Hour,
	})
	return svc, repo, sessions, issuer, factor, throttle
}

func TestLoginIssuesTokenBoundToNewSession(t *testing.T) {
	svc, _, sessions, issuer, _, throttle := newAuthFixture(t)

	result, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "", "10.0.0.1", "cli")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token != "signed-token" {
		t.Fatalf("unexpected token %q", result.Token)
	}
	if len(sessions.created) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.created))
	}
	if issuer.lastSessionID != sessions.created[0].ID {
		t.Fatalf("token bound to %q, session is %q", issuer.lastSessionID, sessions.created[0].ID)
	}
	if sessions.created[0].IP != "10.0.0.1" || sessions.created[0].UserAgent != "cli" {
		t.Fatalf("session metadata not captured: %+v", sessions.created[0])
	}
	if throttle.resets != 1 {
		t.Fatalf("expected throttle reset, got %d", throttle.resets)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, sessions, _, _, throttle := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "pat@example.com", "wrong password", "", "", "")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(sessions.created) != 0 {
		t.Fatal("no session must be created on failure")
	}
	if throttle.failures != 1 {
		t.Fatalf("expected one recorded failure, got %d", throttle.failures)
	}
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	svc, _, _, _, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever pass", "", "", "")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo, _, _, _, _ := newAuthFixture(t)
	repo.users["pat@example.com"].IsActive = false

	_, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "", "", "")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginThrottled(t *testing.T) {
	svc, _, _, _, _, throttle := newAuthFixture(t)
	throttle.blocked = true

	_, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "", "", "")
	if !errors.Is(err, shared.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestLoginRequiresSecondFactorWhenEnabled(t *testing.T) {
	svc, _, sessions, _, factor, _ := newAuthFixture(t)
	factor.status = mfa.StatusEnabled
	factor.wantCode = "123456"

	if _, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "", "", ""); !errors.Is(err, shared.ErrInvalidCode) {
		t.Fatalf("missing code: expected ErrInvalidCode, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "654321", "", ""); !errors.Is(err, shared.ErrInvalidCode) {
		t.Fatalf("wrong code: expected ErrInvalidCode, got %v", err)
	}
	if len(sessions.created) != 0 {
		t.Fatal("no session until the second factor passes")
	}

	if _, err := svc.Login(context.Background(), "pat@example.com", "correct horse", "123456", "", ""); err != nil {
		t.Fatalf("valid code: %v", err)
	}
	if len(sessions.created) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.created))
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, sessions, _, _, _ := newAuthFixture(t)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "sess-1" {
		t.Fatalf("expected sess-1 revoked, got %v", sessions.revoked)
	}
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	svc, repo, sessions, _, _, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), 42, "correct horse", "battery staple 9")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	newHash, ok := repo.updated[42]
	if !ok {
		t.Fatal("expected password hash update")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(newHash), []byte("battery staple 9")); err != nil {
		t.Fatalf("stored hash does not match new password: %v", err)
	}
	if len(sessions.revokedUsers) != 1 || sessions.revokedUsers[0] != 42 {
		t.Fatalf("expected all sessions of user 42 revoked, got %v", sessions.revokedUsers)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, repo, sessions, _, _, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), 42, "not the password", "battery staple 9")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if repo.updateCalls != 0 {
		t.Fatal("password must not change")
	}
	if len(sessions.revokedUsers) != 0 {
		t.Fatal("sessions must survive a failed change")
	}
}
