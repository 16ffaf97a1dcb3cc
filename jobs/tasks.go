package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/finwise/finwise-admin/internal/audit"
	jobmetrics "github.com/finwise/finwise-admin/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord is the task type persisting one audit entry.
	TaskAuditRecord = "audit:record"
)

// NewAuditRecordTask wraps an audit entry as an Asynq task.
func NewAuditRecordTask(e audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewAuditRecordHandler returns the worker-side handler persisting audit
// entries. Malformed payloads are dropped without retry; store errors are
// returned so Asynq retries, and exhausted retries stay visible in the
// queue's dead set.
func NewAuditRecordHandler(store audit.Appender, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskAuditRecord)
		var entry audit.Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			if logger != nil {
				logger.Error("audit task payload malformed", slog.Any("error", err))
			}
			return tracker.End(asynq.SkipRetry)
		}
		if err := store.Append(ctx, entry); err != nil {
			if logger != nil {
				logger.Warn("audit task append failed, will retry",
					slog.String("action", entry.Action), slog.Any("error", err))
			}
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
