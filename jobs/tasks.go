// Package jobs defines the background tasks and the Asynq worker that runs
// them. The only task today is the audit retry: entries the dispatcher could
// not insert synchronously are replayed here until they land.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/atlas-erp/atlas-access/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRetry replays an audit entry that failed its first insert.
	TaskTypeAuditRetry = "audit:retry"
)

// NewAuditRetryTask wraps an audit entry as an Asynq task. The entry keeps
// its original ID, so a replay that races a late-succeeding first insert is
// deduplicated by the writer.
func NewAuditRetryTask(entry audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRetry, data, asynq.MaxRetry(10)), nil
}

// NewAuditRetryHandler builds the handler that replays audit entries through
// the writer. Unmarshal failures skip retry; insert failures are retried by
// Asynq with its backoff.
func NewAuditRetryHandler(writer audit.Writer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry audit.Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return asynq.SkipRetry
		}
		return writer.Insert(ctx, entry)
	}
}
