// Package audit appends one immutable record for every guarded request and
// exposes a read-only timeline over the trail. The log is write-only from the
// core's perspective: entries are never updated or deleted here.
package audit

import (
	"context"
	"time"
)

// Outcome of an access decision.
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// Entry is one append-only audit record. ActorID is nil when the actor was
// unknown at decision time (e.g. the token never verified).
type Entry struct {
	ID         string    `json:"id"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink accepts entries for recording. Implementations must not block the
// guarded request or surface storage failures to it; an audit outage degrades
// observability, never availability.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}
