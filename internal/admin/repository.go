package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finwise/finwise-admin/internal/identity"
	"github.com/finwise/finwise-admin/internal/platform/db"
	"github.com/finwise/finwise-admin/internal/rbac"
)

// RepositoryPort defines the persistence surface of the admin service.
type RepositoryPort interface {
	ListUsers(ctx context.Context, p ListUsersParams) ([]identity.User, int64, error)
	GetUser(ctx context.Context, id int64) (*identity.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name *string, customPermissions *[]string) error
	SetUserStatus(ctx context.Context, id int64, status identity.Status, reason string, byID int64) error
	SetUserRole(ctx context.Context, id int64, role rbac.Role) error

	ListConfig(ctx context.Context) ([]ConfigEntry, error)
	UpsertConfig(ctx context.Context, key string, value any, byEmail string) (previous any, err error)

	CountUsersByStatus(ctx context.Context) (map[string]int64, error)
	CountUsersByRole(ctx context.Context) (map[string]int64, error)
	CountUsersCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var userSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"email":      "email",
	"name":       "name",
	"role":       "role",
}

const userColumns = `id, email, name, role, status, custom_permissions,
	suspended_at, suspension_reason, created_at, updated_at`

// ListUsers returns one filtered page of users plus the total match count.
func (r *Repository) ListUsers(ctx context.Context, p ListUsersParams) ([]identity.User, int64, error) {
	var clauses []string
	var args []any
	if p.Search != "" {
		args = append(args, p.Search)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(email ILIKE '%%' || $%d || '%%' OR name ILIKE '%%' || $%d || '%%')", n, n))
	}
	if p.Role != "" {
		args = append(args, p.Role)
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if p.Status != "" {
		args = append(args, p.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("admin: count users: %w", err)
	}

	column, ok := userSortColumns[p.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if p.SortDesc {
		direction = "DESC"
	}
	args = append(args, p.PageSize, (p.Page-1)*p.PageSize)
	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		userColumns, where, column, direction, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("admin: list users rows: %w", err)
	}
	return users, total, nil
}

// GetUser fetches one user by id. Returns ErrUserNotFound when absent.
func (r *Repository) GetUser(ctx context.Context, id int64) (*identity.User, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateUserProfile applies the non-nil profile fields.
func (r *Repository) UpdateUserProfile(ctx context.Context, id int64, name *string, customPermissions *[]string) error {
	sets := []string{"updated_at = NOW()"}
	var args []any
	if name != nil {
		args = append(args, *name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if customPermissions != nil {
		args = append(args, *customPermissions)
		sets = append(sets, fmt.Sprintf("custom_permissions = $%d", len(args)))
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return fmt.Errorf("admin: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserStatus suspends or reactivates an account.
func (r *Repository) SetUserStatus(ctx context.Context, id int64, status identity.Status, reason string, byID int64) error {
	var tag pgconn.CommandTag
	var err error
	if status == identity.StatusSuspended {
		tag, err = r.pool.Exec(ctx, `
			UPDATE users SET status = $1, suspended_at = NOW(), suspended_by = $2,
			       suspension_reason = $3, updated_at = NOW()
			WHERE id = $4`, string(status), byID, reason, id)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE users SET status = $1, suspended_at = NULL, suspended_by = NULL,
			       suspension_reason = NULL, updated_at = NOW()
			WHERE id = $2`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("admin: set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserRole assigns a new role.
func (r *Repository) SetUserRole(ctx context.Context, id int64, role rbac.Role) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2", string(role), id)
	if err != nil {
		return fmt.Errorf("admin: set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListConfig returns every configuration entry ordered by key.
func (r *Repository) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT key, value, updated_at, updated_by FROM system_config ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("admin: list config: %w", err)
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		var (
			entry     ConfigEntry
			raw       []byte
			updatedAt pgtype.Timestamptz
			updatedBy pgtype.Text
		)
		if err := rows.Scan(&entry.Key, &raw, &updatedAt, &updatedBy); err != nil {
			return nil, fmt.Errorf("admin: scan config: %w", err)
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &entry.Value)
		}
		entry.UpdatedAt = updatedAt.Time
		entry.UpdatedBy = updatedBy.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: config rows: %w", err)
	}
	return entries, nil
}

// UpsertConfig replaces one configuration value, returning the previous one.
func (r *Repository) UpsertConfig(ctx context.Context, key string, value any, byEmail string) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("admin: marshal config value: %w", err)
	}

	var prevRaw []byte
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"SELECT value FROM system_config WHERE key = $1 FOR UPDATE", key).Scan(&prevRaw)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("admin: read config: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO system_config (key, value, updated_at, updated_by)
			VALUES ($1, $2, NOW(), $3)
			ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW(), updated_by = $3`,
			key, raw, byEmail)
		if err != nil {
			return fmt.Errorf("admin: upsert config: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var previous any
	if len(prevRaw) > 0 {
		_ = json.Unmarshal(prevRaw, &previous)
	}
	return previous, nil
}

// CountUsersByStatus groups users by account status.
func (r *Repository) CountUsersByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "SELECT status, COUNT(*) FROM users GROUP BY status")
}

// CountUsersByRole groups users by role.
func (r *Repository) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
}

// CountUsersCreatedSince counts signups after the given instant.
func (r *Repository) CountUsersCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE created_at >= $1", since).Scan(&n); err != nil {
		return 0, fmt.Errorf("admin: count new users: %w", err)
	}
	return n, nil
}

func (r *Repository) countGrouped(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("admin: count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("admin: scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*identity.User, error) {
	var (
		user        identity.User
		role        string
		status      string
		customPerms []string
		suspendedAt pgtype.Timestamptz
		reason      pgtype.Text
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &role, &status, &customPerms,
		&suspendedAt, &reason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = rbac.ParseRole(role)
	user.Status = identity.Status(status)
	user.CustomPermissions = make([]rbac.Permission, 0, len(customPerms))
	for _, p := range customPerms {
		user.CustomPermissions = append(user.CustomPermissions, rbac.Permission(p))
	}
	if suspendedAt.Valid {
		t := suspendedAt.Time
		user.SuspendedAt = &t
	}
	user.SuspensionReason = reason.String
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

var _ RepositoryPort = (*Repository)(nil)
