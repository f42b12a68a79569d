package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-erp/atlas-access/internal/mfa"
	"github.com/atlas-erp/atlas-access/internal/session"
	"github.com/atlas-erp/atlas-access/internal/shared"
)

// TokenIssuer signs a bearer token bound to a session.
type TokenIssuer interface {
	Issue(userID int64, email, role, sessionID string) (string, error)
}

// SecondFactor is the slice of the MFA engine the login flow needs.
type SecondFactor interface {
	StatusOf(ctx context.Context, userID int64) (mfa.Status, error)
	Verify(ctx context.Context, userID int64, code string) error
}

// Service wraps the login and session lifecycle rules.
type Service struct {
	repo       Repository
	sessions   session.Store
	tokens     TokenIssuer
	factor     SecondFactor
	throttle   Throttle
	sessionTTL time.Duration
}

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Repo         Repository
	Sessions     session.Store
	Tokens       TokenIssuer
	SecondFactor SecondFactor
	Throttle     Throttle
	SessionTTL   time.Duration
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		repo:       cfg.Repo,
		sessions:   cfg.Sessions,
		tokens:     cfg.Tokens,
		factor:     cfg.SecondFactor,
		throttle:   cfg.Throttle,
		sessionTTL: ttl,
	}
}

// LoginResult is handed back on a successful login.
type LoginResult struct {
	Token   string
	Session *session.Session
	User    *User
}

// Login validates credentials, verifies the second factor for enrolled users,
// then creates a session and issues a token bound to it. Every failure path
// collapses to InvalidCredentials except a wrong one-time code and throttling,
// which keep their own sentinels.
func (s *Service) Login(ctx context.Context, email, password, code, ip, ua string) (*LoginResult, error) {
	if s.throttle != nil {
		if err := s.throttle.Check(ctx, email); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.noteFailure(ctx, email)
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive {
		s.noteFailure(ctx, email)
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.noteFailure(ctx, email)
		return nil, shared.ErrInvalidCredentials
	}

	if s.factor != nil {
		status, err := s.factor.StatusOf(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("auth: mfa status: %w", err)
		}
		if status == mfa.StatusEnabled {
			if code == "" {
				s.noteFailure(ctx, email)
				return nil, shared.ErrInvalidCode
			}
			if err := s.factor.Verify(ctx, user.ID, code); err != nil {
				s.noteFailure(ctx, email)
				return nil, err
			}
		}
	}

	if s.throttle != nil {
		_ = s.throttle.Reset(ctx, email)
	}

	sess, err := s.sessions.Create(ctx, user.ID, s.sessionTTL, ip, ua)
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	signed, err := s.tokens.Issue(user.ID, user.Email, user.Role, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue token: %w", err)
	}
	return &LoginResult{Token: signed, Session: sess, User: user}, nil
}

// Logout revokes the session the caller is riding on. Revocation is
// idempotent, so a repeated logout is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every session the user holds. All outstanding tokens die with
// their sessions.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("auth: find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("auth: revoke sessions: %w", err)
	}
	return nil
}

func (s *Service) noteFailure(ctx context.Context, email string) {
	if s.throttle != nil {
		_ = s.throttle.RecordFailure(ctx, email)
	}
}
