// Package admin implements the privileged operations of the admin plane:
// user management, configuration, analytics overview and system health.
// Every handler here runs behind the access gate and records its outcome in
// the audit log.
package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/finwise/finwise-admin/internal/identity"
)

// Error is a business rule violation with a stable envelope code.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("admin: %s: %s", e.Code, e.Message)
}

func errCode(status int, code, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Business rule errors shared across operations.
var (
	ErrUserNotFound      = errCode(http.StatusNotFound, "NOT_FOUND", "User not found")
	ErrInvalidAction     = errCode(http.StatusBadRequest, "INVALID_ACTION", `Invalid action. Must be "suspend" or "unsuspend"`)
	ErrInvalidRole       = errCode(http.StatusBadRequest, "INVALID_ROLE", "Unknown role")
	ErrCannotManage      = errCode(http.StatusForbidden, "INSUFFICIENT_PRIVILEGES", "Cannot manage user with equal or higher privileges")
	ErrProtectedUser     = errCode(http.StatusForbidden, "PROTECTED_USER", "Cannot modify super admin accounts")
	ErrAlreadySuspended  = errCode(http.StatusBadRequest, "ALREADY_SUSPENDED", "User is already suspended")
	ErrNotSuspended      = errCode(http.StatusBadRequest, "NOT_SUSPENDED", "User is not suspended")
	ErrRoleNotAssignable = errCode(http.StatusForbidden, "ROLE_NOT_ASSIGNABLE", "Role is not assignable by the caller")
	ErrSelfTarget        = errCode(http.StatusBadRequest, "SELF_ACTION", "Cannot perform this action on your own account")
)

// ListUsersParams filter and page a user listing.
type ListUsersParams struct {
	Search   string
	Role     string
	Status   string
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}

// UserPage is one page of user records.
type UserPage struct {
	Users    []identity.User `json:"users"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasNext  bool            `json:"has_next"`
}

// UpdateUserInput carries the PATCHable profile fields. Nil pointers leave
// the field untouched.
type UpdateUserInput struct {
	Name              *string   `json:"name" validate:"omitempty,min=1,max=120"`
	CustomPermissions *[]string `json:"custom_permissions" validate:"omitempty,dive,min=3,max=64"`
}

// SuspendInput toggles a user's suspension.
type SuspendInput struct {
	Action string `json:"action" validate:"required,oneof=suspend unsuspend"`
	Reason string `json:"reason" validate:"max=300"`
}

// RoleChangeInput assigns a new role.
type RoleChangeInput struct {
	Role string `json:"role" validate:"required"`
}

// ConfigEntry is one system configuration value.
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// UpdateConfigInput replaces configuration values by key.
type UpdateConfigInput struct {
	Values map[string]any `json:"values" validate:"required,min=1"`
}

// Overview aggregates platform-level user statistics.
type Overview struct {
	TotalUsers     int64            `json:"total_users"`
	ActiveUsers    int64            `json:"active_users"`
	SuspendedUsers int64            `json:"suspended_users"`
	DeletedUsers   int64            `json:"deleted_users"`
	ByRole         map[string]int64 `json:"by_role"`
	NewLast30Days  int64            `json:"new_users_last_30_days"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ComponentHealth is the probe result for one dependency.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport aggregates dependency probes.
type HealthReport struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}
