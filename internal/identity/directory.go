package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finwise/finwise-admin/internal/rbac"
)

// PGDirectory implements Directory over the platform user table.
type PGDirectory struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPGDirectory constructs a PostgreSQL backed directory.
func NewPGDirectory(pool *pgxpool.Pool, timeout time.Duration) *PGDirectory {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &PGDirectory{pool: pool, timeout: timeout}
}

// FindByEmail fetches the user record for an authenticated identity. A
// missing row is ErrUserNotFound; any other failure, timeouts included, is
// returned so the caller fails closed.
func (d *PGDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `
		SELECT id, email, name, role, status, custom_permissions,
		       suspended_at, suspension_reason, created_at, updated_at
		FROM users
		WHERE email = $1`, email)

	var (
		user        User
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("identity: find user: %w", err)
	}

	user.Role = rbac.ParseRole(role)
	user.Status = Status(status)
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

var _ Directory = (*PGDirectory)(nil)
