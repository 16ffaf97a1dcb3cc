// Package audit records the outcome of privileged administrative operations.
// Recording is best effort: a failed audit write is logged operationally and
// never fails the operation it describes.
package audit

import (
	"time"

	"github.com/finwise/finwise-admin/internal/rbac"
)

// Status is the recorded outcome of an action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Action names for the privileged operations of the admin plane.
const (
	ActionUserView       = "user:view"
	ActionUserList       = "user:list"
	ActionUserUpdate     = "user:update"
	ActionUserSuspend    = "user:suspend"
	ActionUserUnsuspend  = "user:unsuspend"
	ActionUserRoleChange = "user:role_change"
	ActionConfigView     = "config:view"
	ActionConfigUpdate   = "config:update"
	ActionAnalyticsView  = "analytics:view"
	ActionSystemHealth   = "system:health_check"
	ActionAuditView      = "audit:view"
	ActionAuditExport    = "audit:export"
)

// Target types referenced by audit entries.
const (
	TargetUser      = "user"
	TargetConfig    = "config"
	TargetSystem    = "system"
	TargetAnalytics = "analytics"
	TargetAudit     = "audit"
)

// maxDescriptionLen caps the human readable description column.
const maxDescriptionLen = 500

// Entry is one immutable audit record. Once built it is never mutated;
// persistence failures drop the entry, they do not rewrite it.
type Entry struct {
	ID         int64      `json:"id,omitempty"`
	ActorID    int64      `json:"actor_id"`
	ActorEmail string     `json:"actor_email"`
	ActorRole  rbac.Role  `json:"actor_role"`

	Action      string `json:"action"`
	TargetType  string `json:"target_type"`
	TargetID    int64  `json:"target_id,omitempty"`
	TargetEmail string `json:"target_email,omitempty"`
	Description string `json:"description"`

	PreviousValue any `json:"previous_value,omitempty"`
	NewValue      any `json:"new_value,omitempty"`

	IP        string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id"`

	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// normalize fills defaults the schema requires. Returns a copy; the input
// entry stays as built.
func (e Entry) normalize(now time.Time) Entry {
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if len(e.Description) > maxDescriptionLen {
		e.Description = e.Description[:maxDescriptionLen]
	}
	if e.IP == "" {
		e.IP = "unknown"
	}
	return e
}
