package permission

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

// Override fetches the per-user override row for a module, if one exists.
func (s *PGStore) Override(ctx context.Context, userID int64, module string) (Flags, bool, error) {
	const query = `SELECT view, "create", edit, "delete", approve
FROM permission_overrides WHERE user_id = $1 AND module = $2`
	var f Flags
	err := s.pool.QueryRow(ctx, query, userID, module).Scan(&f.View, &f.Create, &f.Edit, &f.Delete, &f.Approve)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Flags{}, false, nil
		}
		return Flags{}, false, err
	}
	return f, true, nil
}

// Default fetches the per-role default row for a module, if one exists.
func (s *PGStore) Default(ctx context.Context, role, module string) (Flags, bool, error) {
	const query = `SELECT view, "create", edit, "delete", approve
FROM permission_defaults WHERE role = $1 AND module = $2`
	var f Flags
	err := s.pool.QueryRow(ctx, query, role, module).Scan(&f.View, &f.Create, &f.Edit, &f.Delete, &f.Approve)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Flags{}, false, nil
		}
		return Flags{}, false, err
	}
	return f, true, nil
}

var _ Store = (*PGStore)(nil)
