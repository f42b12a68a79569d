package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineFilters narrows the timeline query. Zero values mean "no filter".
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Action   string
	Outcome  string
	Page     int
	PageSize int
}

// PagingInfo describes the returned window.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// Reader fetches a window of the audit trail.
type Reader interface {
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
}

// Service coordinates timeline reads over the append-only trail.
type Service struct {
	reader Reader
}

// NewService constructs the timeline service.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.reader == nil {
		return Result{}, fmt.Errorf("audit: reader not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	// Fetch one extra row to learn whether a next page exists.
	rows, err := s.reader.Window(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// PGReader implements Reader over audit_log.
type PGReader struct {
	pool *pgxpool.Pool
}

// NewPGReader constructs a PostgreSQL-backed Reader.
func NewPGReader(pool *pgxpool.Pool) *PGReader {
	return &PGReader{pool: pool}
}

// Window fetches entries matching the filters, newest first.
func (r *PGReader) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	const query = `SELECT id, actor_id, action, resource, outcome, reason, ip, user_agent, occurred_at
FROM audit_log
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR action = $4)
  AND ($5::text IS NULL OR outcome = $5)
ORDER BY occurred_at DESC
LIMIT $6 OFFSET $7`
	rows, err := r.pool.Query(ctx, query,
		optionalTime(filters.From), optionalTime(filters.To),
		optionalInt(filters.ActorID), optionalText(filters.Action), optionalText(filters.Outcome),
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			actor      pgtype.Int8
			ip         pgtype.Text
			ua         pgtype.Text
			occurredAt pgtype.Timestamptz
		)
		if err := rows.Scan(&entry.ID, &actor, &entry.Action, &entry.Resource, &entry.Outcome, &entry.Reason, &ip, &ua, &occurredAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			id := actor.Int64
			entry.ActorID = &id
		}
		entry.IP = ip.String
		entry.UserAgent = ua.String
		entry.OccurredAt = occurredAt.Time
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalInt(v int64) pgtype.Int8 {
	if v == 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var _ Reader = (*PGReader)(nil)
