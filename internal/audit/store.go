package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finwise/finwise-admin/internal/rbac"
)

// Appender persists entries. Implementations must be safe for concurrent use.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// Filters narrow an audit listing.
type Filters struct {
	Action     string
	Status     Status
	ActorEmail string
	TargetType string
	Search     string
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
	SortDesc   bool
}

// Stats aggregates outcomes over a period.
type Stats struct {
	Total        int64 `json:"total"`
	Successful   int64 `json:"successful"`
	Failed       int64 `json:"failed"`
	UniqueAdmins int64 `json:"unique_admins"`
}

// PGStore persists and queries audit entries in admin_audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store over the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Append inserts one entry. Snapshots marshal to JSONB.
func (s *PGStore) Append(ctx context.Context, e Entry) error {
	if e.Action == "" || e.TargetType == "" || e.ActorEmail == "" {
		return errors.New("audit: entry requires action, target type and actor email")
	}
	prev, err := marshalSnapshot(e.PreviousValue)
	if err != nil {
		return fmt.Errorf("audit: marshal previous value: %w", err)
	}
	next, err := marshalSnapshot(e.NewValue)
	if err != nil {
		return fmt.Errorf("audit: marshal new value: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO admin_audit_logs (
			actor_id, actor_email, actor_role,
			action, target_type, target_id, target_email, description,
			previous_value, new_value,
			ip_address, user_agent, session_id, request_id,
			status, error_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		e.ActorID, e.ActorEmail, string(e.ActorRole),
		e.Action, e.TargetType, nullInt64(e.TargetID), nullText(e.TargetEmail), e.Description,
		prev, next,
		e.IP, e.UserAgent, nullText(e.SessionID), e.RequestID,
		string(e.Status), nullText(e.ErrorMessage), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// List returns one page of entries plus the total match count.
func (s *PGStore) List(ctx context.Context, f Filters) ([]Entry, int64, error) {
	where, args := buildWhere(f)

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM admin_audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}

	order := " ORDER BY created_at DESC"
	if !f.SortDesc {
		order = " ORDER BY created_at ASC"
	}
	limitArgs := append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query := `
		SELECT id, actor_id, actor_email, actor_role,
		       action, target_type, target_id, target_email, description,
		       previous_value, new_value,
		       ip_address, user_agent, session_id, request_id,
		       status, error_message, created_at
		FROM admin_audit_logs` + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			role        string
			status      string
			targetID    pgtype.Int8
			targetEmail pgtype.Text
			prev, next  []byte
			sessionID   pgtype.Text
			errMsg      pgtype.Text
			createdAt   pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &role,
			&e.Action, &e.TargetType, &targetID, &targetEmail, &e.Description,
			&prev, &next,
			&e.IP, &e.UserAgent, &sessionID, &e.RequestID,
			&status, &errMsg, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("audit: scan: %w", err)
		}
		e.ActorRole = rbac.ParseRole(role)
		e.Status = Status(status)
		e.TargetID = targetID.Int64
		e.TargetEmail = targetEmail.String
		e.SessionID = sessionID.String
		e.ErrorMessage = errMsg.String
		e.CreatedAt = createdAt.Time
		e.PreviousValue = unmarshalSnapshot(prev)
		e.NewValue = unmarshalSnapshot(next)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("audit: list rows: %w", err)
	}
	return entries, total, nil
}

// AggregateStats computes outcome counts for the period.
func (s *PGStore) AggregateStats(ctx context.Context, from, to time.Time) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status = 'failure'),
		       COUNT(DISTINCT actor_id)
		FROM admin_audit_logs
		WHERE created_at >= $1 AND created_at <= $2`, from, to).
		Scan(&st.Total, &st.Successful, &st.Failed, &st.UniqueAdmins)
	if err != nil {
		return Stats{}, fmt.Errorf("audit: stats: %w", err)
	}
	return st, nil
}

func buildWhere(f Filters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.ActorEmail != "" {
		add("actor_email = $%d", f.ActorEmail)
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
	}
	if f.Search != "" {
		args = append(args, f.Search)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(description ILIKE '%%' || $%d || '%%' OR target_email ILIKE '%%' || $%d || '%%')", n, n))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalSnapshot(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullInt64(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: v != 0}
}
