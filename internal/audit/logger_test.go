package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/finwise/finwise-admin/internal/rbac"
)

type stubAppender struct {
	entries []Entry
	err     error
	lastCtx context.Context
}

func (s *stubAppender) Append(ctx context.Context, e Entry) error {
	s.lastCtx = ctx
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type stubEnqueuer struct {
	entries []Entry
	err     error
}

func (s *stubEnqueuer) EnqueueAuditRecord(_ context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func testEntry() Entry {
	return Entry{
		ActorID:    7,
		ActorEmail: "admin@finwise.io",
		ActorRole:  rbac.RoleAdmin,
		Action:     ActionUserSuspend,
		TargetType: TargetUser,
		TargetID:   41,
		RequestID:  "req-1",
	}
}

func TestRecordPrefersQueue(t *testing.T) {
	queue := &stubEnqueuer{}
	store := &stubAppender{}
	l := NewLogger(queue, store, slog.Default())

	l.Record(context.Background(), testEntry())

	if len(queue.entries) != 1 {
		t.Fatalf("queued %d entries, want 1", len(queue.entries))
	}
	if len(store.entries) != 0 {
		t.Fatalf("store received %d entries, want 0", len(store.entries))
	}
	if queue.entries[0].Status != StatusSuccess {
		t.Fatalf("status = %q, want defaulted success", queue.entries[0].Status)
	}
	if queue.entries[0].CreatedAt.IsZero() {
		t.Fatal("created_at must be stamped")
	}
}

func TestRecordFallsBackToDirectWrite(t *testing.T) {
	queue := &stubEnqueuer{err: errors.New("queue down")}
	store := &stubAppender{}
	l := NewLogger(queue, store, slog.Default())

	l.Record(context.Background(), testEntry())

	if len(store.entries) != 1 {
		t.Fatalf("store received %d entries, want 1", len(store.entries))
	}
}

// The single most important property: a persistence failure stays inside
// the logger. Record has no error to return and must not panic.
func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &stubAppender{err: errors.New("pg down")}
	l := NewLogger(nil, store, slog.Default())

	l.Record(context.Background(), testEntry())
}

func TestRecordWritesDespiteCanceledRequest(t *testing.T) {
	store := &stubAppender{}
	l := NewLogger(nil, store, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Record(ctx, testEntry())

	if len(store.entries) != 1 {
		t.Fatalf("store received %d entries, want 1", len(store.entries))
	}
	if err := store.lastCtx.Err(); err != nil {
		t.Fatalf("write context inherited cancellation: %v", err)
	}
}

func TestRecordTruncatesDescription(t *testing.T) {
	store := &stubAppender{}
	l := NewLogger(nil, store, slog.Default())

	e := testEntry()
	e.Description = strings.Repeat("x", 800)
	l.Record(context.Background(), e)

	if got := len(store.entries[0].Description); got != maxDescriptionLen {
		t.Fatalf("description length = %d, want %d", got, maxDescriptionLen)
	}
}

func TestNormalizeDoesNotMutateOriginal(t *testing.T) {
	e := testEntry()
	_ = e.normalize(time.Now())
	if e.Status != "" || !e.CreatedAt.IsZero() {
		t.Fatal("normalize must copy, the built entry is immutable")
	}
}
