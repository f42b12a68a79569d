package mfa

import (
	"context"
	"errors"
	"time"

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

// Get fetches the user's MFA record, if one exists.
func (s *PGStore) Get(ctx context.Context, userID int64) (Record, bool, error) {
	const query = `SELECT user_id, secret, status, enrolled_at FROM mfa_secrets WHERE user_id = $1`
	var (
		record     Record
		status     string
		enrolledAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(&record.UserID, &record.Secret, &status, &enrolledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	record.Status = Status(status)
	if enrolledAt.Valid {
		record.EnrolledAt = enrolledAt.Time
	}
	return record, true, nil
}

// Enable stores the secret with status enabled as a single upsert, so the
// secret swap and the status flip are one atomic write. A concurrent Verify
// sees either the old record or the new one, never a mixture.
func (s *PGStore) Enable(ctx context.Context, userID int64, secret string) error {
	const query = `INSERT INTO mfa_secrets (user_id, secret, status, enrolled_at)
VALUES ($1, $2, 'enabled', $3)
ON CONFLICT (user_id) DO UPDATE
SET secret = EXCLUDED.secret, status = EXCLUDED.status, enrolled_at = EXCLUDED.enrolled_at`
	_, err := s.pool.Exec(ctx, query, userID, secret, pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true})
	return err
}

var _ Store = (*PGStore)(nil)
