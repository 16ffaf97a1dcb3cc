// Package identity resolves an opaque session credential to the platform
// user record behind it. It owns the two collaborator seams the access gate
// depends on: the session resolver and the user directory.
package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/finwise/finwise-admin/internal/rbac"
)

var (
	// ErrNoSession indicates the request carries no valid session credential.
	ErrNoSession = errors.New("identity: no session")
	// ErrUserNotFound indicates the directory has no record for the identity.
	ErrUserNotFound = errors.New("identity: user not found")
)

// Session is the resolved session credential.
type Session struct {
	UserID int64
	Email  string
}

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Active reports whether the account may act. Unknown stored values count
// as active to match the platform's default status.
func (s Status) Active() bool {
	return s != StatusSuspended && s != StatusDeleted
}

// User is the directory record consulted by the gate and returned by the
// admin user endpoints.
type User struct {
	ID                int64             `json:"id"`
	Email             string            `json:"email"`
	Name              string            `json:"name"`
	Role              rbac.Role         `json:"role"`
	Status            Status            `json:"status"`
	CustomPermissions []rbac.Permission `json:"custom_permissions"`
	SuspendedAt       *time.Time        `json:"suspended_at,omitempty"`
	SuspensionReason  string            `json:"suspension_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Resolver resolves the caller's session from an inbound request.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Session, error)
}

// Directory looks up full user records for authenticated identities.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}
