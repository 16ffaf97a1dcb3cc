package audit

import (
	"context"
	"log/slog"
	"time"
)

// Enqueuer hands an entry to the background queue for persistence.
type Enqueuer interface {
	EnqueueAuditRecord(ctx context.Context, e Entry) error
}

const defaultWriteTimeout = 3 * time.Second

// Logger records entries without ever failing the caller. The preferred
// path enqueues a background task so audit storage latency stays off the
// response path; if enqueueing fails the Logger falls back to a direct
// bounded write. Any persistence failure is logged and swallowed: audit
// recording is best effort, but its absence must show up in the operational
// log.
type Logger struct {
	queue   Enqueuer
	store   Appender
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewLogger constructs a Logger. Either queue or store may be nil, not both.
func NewLogger(queue Enqueuer, store Appender, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		queue:   queue,
		store:   store,
		logger:  logger,
		timeout: defaultWriteTimeout,
		now:     time.Now,
	}
}

// Record persists the entry best effort. It never returns an error and never
// panics into the caller. The write uses a detached context: the request
// that produced the entry may already be canceled, and a finished decision
// still deserves its record.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	entry := e.normalize(l.now().UTC())

	if l.queue != nil {
		if err := l.queue.EnqueueAuditRecord(ctx, entry); err == nil {
			return
		} else {
			l.logger.Warn("audit enqueue failed, writing directly",
				slog.String("action", entry.Action), slog.Any("error", err))
		}
	}

	if l.store == nil {
		l.logger.Error("audit entry dropped, no store configured",
			slog.String("action", entry.Action), slog.String("request_id", entry.RequestID))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.store.Append(writeCtx, entry); err != nil {
		l.logger.Error("audit append failed",
			slog.String("action", entry.Action),
			slog.String("actor", entry.ActorEmail),
			slog.String("request_id", entry.RequestID),
			slog.Any("error", err))
	}
}
