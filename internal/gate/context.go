package gate

import (
	"context"

	"github.com/finwise/finwise-admin/internal/rbac"
)

// AdminContext is the resolved, validated identity bundle attached to a
// request once every gate check has passed. It is owned by the current
// request and never persisted or shared.
type AdminContext struct {
	AdminID           int64
	Email             string
	Name              string
	Role              rbac.Role
	CustomPermissions []rbac.Permission

	IP        string
	UserAgent string
	RequestID string
}

// HasPermission checks the effective permission set (role defaults plus
// custom grants).
func (c *AdminContext) HasPermission(p rbac.Permission) bool {
	if c == nil {
		return false
	}
	return rbac.HasPermission(c.Role, p, c.CustomPermissions)
}

// EffectivePermissions returns the deduplicated union of role defaults and
// custom grants.
func (c *AdminContext) EffectivePermissions() []rbac.Permission {
	if c == nil {
		return nil
	}
	return rbac.AllPermissions(c.Role, c.CustomPermissions)
}

type adminContextKey struct{}

// ContextWithAdmin stores the admin context in ctx.
func ContextWithAdmin(ctx context.Context, admin *AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey{}, admin)
}

// AdminFromContext extracts the admin context, or nil outside a gated
// request.
func AdminFromContext(ctx context.Context) *AdminContext {
	admin, _ := ctx.Value(adminContextKey{}).(*AdminContext)
	return admin
}
