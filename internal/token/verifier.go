// Package token verifies and issues the signed bearer tokens presented on
// every request. Verification is a pure function of (token, secret, clock);
// session liveness is checked separately by the guard.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atlas-erp/atlas-access/internal/shared"
)

// Config holds the signing material injected at construction time. The secret
// is never read from ambient scope.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims is the identity payload carried by a bearer token. It is untrusted
// until signature and expiry checks pass.
type Claims struct {
	UserID    int64  `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens with HMAC-SHA256.
type Verifier struct {
	cfg    Config
	parser *jwt.Parser
	now    func() time.Time
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier constructs a Verifier.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: secret required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	v := &Verifier{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	v.parser = jwt.NewParser(parserOpts...)
	return v, nil
}

// Issue signs a token for the given identity, bound to its session.
func (v *Verifier) Issue(userID int64, email, role, sessionID string) (string, error) {
	now := v.now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.cfg.TTL)),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.cfg.Secret)
}

// Verify checks signature and expiry, returning the decoded claims. The error
// distinguishes malformed tokens, bad signatures and expired tokens because
// the distinction is audit-relevant (expired vs. forged).
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	parsed, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", shared.ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", shared.ErrTokenInvalid, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %w", shared.ErrTokenInvalid, err)
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, shared.ErrTokenInvalid
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing uid claim", shared.ErrTokenMalformed)
	}
	return claims, nil
}
