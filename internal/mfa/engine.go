package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-erp/atlas-access/internal/shared"
)

// Status tracks a user's enrollment state. Only two states are ever
// persisted: no row means not_started, a row means enabled. The interval
// between Begin and Confirm is held client-side, never stored.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusEnabled    Status = "enabled"
)

// Record is the persisted per-user secret and enrollment state.
type Record struct {
	UserID     int64
	Secret     string
	Status     Status
	EnrolledAt time.Time
}

// Store persists MFA records. Enable must apply secret and status as one
// atomic write so a racing verification never observes a half-applied
// confirmation.
type Store interface {
	Get(ctx context.Context, userID int64) (Record, bool, error)
	Enable(ctx context.Context, userID int64, secret string) error
}

// Limiter throttles failed confirmation attempts per user.
type Limiter interface {
	Check(ctx context.Context, userID int64) error
	RecordFailure(ctx context.Context, userID int64) error
	Reset(ctx context.Context, userID int64) error
}

// Enrollment is handed to the caller when enrollment begins. Nothing is
// persisted at this point; the secret lives client-side until confirmed.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// Engine drives enrollment from not_started to enabled, with re-enrollment
// superseding an enabled user's secret once the fresh one is confirmed.
type Engine struct {
	store   Store
	limiter Limiter
	issuer  string
	now     func() time.Time
}

// NewEngine constructs an Engine. The issuer names this installation in
// authenticator apps.
func NewEngine(store Store, limiter Limiter, issuer string) *Engine {
	return &Engine{store: store, limiter: limiter, issuer: issuer, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Begin issues a fresh secret and enrollment URI. Beginning again before
// confirmation simply issues another secret; only a confirmed secret is ever
// persisted, and confirming supersedes whatever was stored before.
func (e *Engine) Begin(ctx context.Context, userID int64, account string) (Enrollment, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		Secret: secret,
		URI:    ProvisionURI(e.issuer, account, secret),
	}, nil
}

// Confirm verifies the code against the candidate secret and, on match,
// persists it with status enabled in a single atomic write. Any previously
// stored secret is discarded by the same write, so its codes stop validating
// immediately. On mismatch nothing changes and the caller must restart
// enrollment.
func (e *Engine) Confirm(ctx context.Context, userID int64, secret, code string) error {
	if e.limiter != nil {
		if err := e.limiter.Check(ctx, userID); err != nil {
			return err
		}
	}
	ok, _, err := VerifyCode(secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		if e.limiter != nil {
			if lerr := e.limiter.RecordFailure(ctx, userID); lerr != nil && errors.Is(lerr, shared.ErrTooManyAttempts) {
				return lerr
			}
		}
		return shared.ErrInvalidCode
	}
	if err := e.store.Enable(ctx, userID, secret); err != nil {
		return fmt.Errorf("mfa: enable: %w", err)
	}
	if e.limiter != nil {
		_ = e.limiter.Reset(ctx, userID)
	}
	return nil
}

// Verify checks a one-time code against the user's enabled secret, used as
// the second factor after password authentication. Codes generated from a
// superseded secret fail here because only the current secret is stored.
// Code reuse inside the tolerance window is not rejected; there is no replay
// cache.
func (e *Engine) Verify(ctx context.Context, userID int64, code string) error {
	record, found, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("mfa: get record: %w", err)
	}
	if !found || record.Status != StatusEnabled || record.Secret == "" {
		return shared.ErrInvalidCode
	}
	if e.limiter != nil {
		if err := e.limiter.Check(ctx, userID); err != nil {
			return err
		}
	}
	ok, _, err := VerifyCode(record.Secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		if e.limiter != nil {
			if lerr := e.limiter.RecordFailure(ctx, userID); lerr != nil && errors.Is(lerr, shared.ErrTooManyAttempts) {
				return lerr
			}
		}
		return shared.ErrInvalidCode
	}
	if e.limiter != nil {
		_ = e.limiter.Reset(ctx, userID)
	}
	return nil
}

// StatusOf reports the user's enrollment state.
func (e *Engine) StatusOf(ctx context.Context, userID int64) (Status, error) {
	record, found, err := e.store.Get(ctx, userID)
	if err != nil {
		return StatusNotStarted, err
	}
	if !found {
		return StatusNotStarted, nil
	}
	return record.Status, nil
}
