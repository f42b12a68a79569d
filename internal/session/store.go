package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL-backed Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Get fetches the session row by primary key. The row is returned even when
// revoked or expired; liveness is the caller's check. Nothing is cached, so
// revocation takes effect on the next request.
func (s *PGStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	const query = `SELECT id, user_id, issued_at, expires_at, revoked_at, ip, user_agent
FROM sessions
WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, sessionID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// Create inserts a new session expiring after ttl.
func (s *PGStore) Create(ctx context.Context, userID int64, ttl time.Duration, ip, ua string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		IP:        ip,
		UserAgent: ua,
	}
	const query = `INSERT INTO sessions (id, user_id, issued_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		sess.ID, sess.UserID,
		pgtype.Timestamptz{Time: sess.IssuedAt, Valid: true},
		pgtype.Timestamptz{Time: sess.ExpiresAt, Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Revoke stamps revoked_at on the session. Revoking an already-revoked
// session is a no-op, not an error.
func (s *PGStore) Revoke(ctx context.Context, sessionID string) error {
	const query = `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, query, sessionID)
	return err
}

// RevokeAllForUser revokes every live session the user holds. Used on
// password change and MFA re-enrollment.
func (s *PGStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	const query = `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, query, userID)
	return err
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess      Session
		issuedAt  pgtype.Timestamptz
		expiresAt pgtype.Timestamptz
		revokedAt pgtype.Timestamptz
		ip        pgtype.Text
		ua        pgtype.Text
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &issuedAt, &expiresAt, &revokedAt, &ip, &ua); err != nil {
		return nil, err
	}
	sess.IssuedAt = issuedAt.Time
	sess.ExpiresAt = expiresAt.Time
	if revokedAt.Valid {
		t := revokedAt.Time
		sess.RevokedAt = &t
	}
	sess.IP = ip.String
	sess.UserAgent = ua.String
	return &sess, nil
}

var _ Store = (*PGStore)(nil)
