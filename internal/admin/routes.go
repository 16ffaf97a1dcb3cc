package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/gate"
	"github.com/finwise/finwise-admin/internal/rbac"
)

// Routes mounts the admin API behind the access gate. Each route declares
// the permissions the gate must see before the handler runs.
func Routes(g *gate.Gate, h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(g.Protect(gate.Options{
			Action:              audit.ActionUserList,
			RequiredPermissions: []rbac.Permission{rbac.PermUsersRead},
		}))
		r.Get("/users", h.listUsers)
		r.Get("/users/{id}", h.getUser)
	})

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionUserUpdate,
		RequiredPermissions: []rbac.Permission{rbac.PermUsersWrite},
	})).Patch("/users/{id}", h.updateUser)

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionUserSuspend,
		RequiredPermissions: []rbac.Permission{rbac.PermUsersSuspend},
	})).Post("/users/{id}/suspend", h.suspendUser)

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionUserRoleChange,
		RequiredPermissions: []rbac.Permission{rbac.PermAdminUpdate},
		AllowedRoles:        []rbac.Role{rbac.RoleAdmin, rbac.RoleSuperAdmin},
	})).Put("/users/{id}/role", h.changeRole)

	r.Group(func(r chi.Router) {
		r.Use(g.Protect(gate.Options{
			Action:              audit.ActionAuditView,
			RequiredPermissions: []rbac.Permission{rbac.PermAuditRead},
		}))
		r.Get("/audit", h.listAudit)
		r.Get("/audit/stats", h.auditStats)
	})

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionConfigView,
		RequiredPermissions: []rbac.Permission{rbac.PermConfigRead},
	})).Get("/config", h.getConfig)

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionConfigUpdate,
		RequiredPermissions: []rbac.Permission{rbac.PermConfigWrite},
		AllowedRoles:        []rbac.Role{rbac.RoleSuperAdmin},
	})).Put("/config", h.updateConfig)

	r.With(g.Protect(gate.Options{
		Action:         audit.ActionAnalyticsView,
		AnyPermissions: []rbac.Permission{rbac.PermAnalyticsRead, rbac.PermAnalyticsExport},
	})).Get("/analytics/overview", h.analyticsOverview)

	r.With(g.Protect(gate.Options{
		Action:              audit.ActionSystemHealth,
		RequiredPermissions: []rbac.Permission{rbac.PermSystemRead},
		SkipRateLimit:       true,
		SkipAudit:           true,
	})).Get("/system/health", h.systemHealth)

	return r
}
