package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer persists entries. Split from Sink so the synchronous insert can be
// reused by the retry worker.
type Writer interface {
	Insert(ctx context.Context, entry Entry) error
}

// PGWriter appends entries into audit_log.
type PGWriter struct {
	pool *pgxpool.Pool
}

// NewPGWriter returns a new PGWriter.
func NewPGWriter(pool *pgxpool.Pool) *PGWriter {
	return &PGWriter{pool: pool}
}

// Insert appends the entry. Missing IDs and timestamps are filled in so
// retried entries keep their original identity and instant.
func (w *PGWriter) Insert(ctx context.Context, entry Entry) error {
	if entry.Action == "" || entry.Outcome == "" {
		return errors.New("audit: entry requires action and outcome")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	var actor pgtype.Int8
	if entry.ActorID != nil {
		actor = pgtype.Int8{Int64: *entry.ActorID, Valid: true}
	}
	const query = `INSERT INTO audit_log (id, actor_id, action, resource, outcome, reason, ip, user_agent, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`
	_, err := w.pool.Exec(ctx, query,
		entry.ID, actor, entry.Action, entry.Resource, entry.Outcome, entry.Reason,
		pgtype.Text{String: entry.IP, Valid: entry.IP != ""},
		pgtype.Text{String: entry.UserAgent, Valid: entry.UserAgent != ""},
		pgtype.Timestamptz{Time: entry.OccurredAt, Valid: true},
	)
	return err
}

var _ Writer = (*PGWriter)(nil)
