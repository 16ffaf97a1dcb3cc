package rbac

// Permission names one allowed action on one resource class. The vocabulary
// is closed; new capabilities are added as constants here.
type Permission string

const (
	// User management
	PermUsersRead    Permission = "users:read"
	PermUsersWrite   Permission = "users:write"
	PermUsersDelete  Permission = "users:delete"
	PermUsersSuspend Permission = "users:suspend"

	// Analytics
	PermAnalyticsRead   Permission = "analytics:read"
	PermAnalyticsExport Permission = "analytics:export"

	// Notifications
	PermNotificationsRead  Permission = "notifications:read"
	PermNotificationsWrite Permission = "notifications:write"
	PermNotificationsSend  Permission = "notifications:send"

	// Configuration
	PermConfigRead  Permission = "config:read"
	PermConfigWrite Permission = "config:write"

	// System
	PermSystemRead   Permission = "system:read"
	PermSystemManage Permission = "system:manage"

	// Audit logs
	PermAuditRead   Permission = "audit:read"
	PermAuditExport Permission = "audit:export"

	// Moderation
	PermModerationRead   Permission = "moderation:read"
	PermModerationAction Permission = "moderation:action"

	// Admin management
	PermAdminCreate Permission = "admin:create"
	PermAdminUpdate Permission = "admin:update"
	PermAdminRevoke Permission = "admin:revoke"
)

// AllDefinedPermissions returns the complete permission vocabulary.
func AllDefinedPermissions() []Permission {
	return []Permission{
		PermUsersRead,
		PermUsersWrite,
		PermUsersDelete,
		PermUsersSuspend,
		PermAnalyticsRead,
		PermAnalyticsExport,
		PermNotificationsRead,
		PermNotificationsWrite,
		PermNotificationsSend,
		PermConfigRead,
		PermConfigWrite,
		PermSystemRead,
		PermSystemManage,
		PermAuditRead,
		PermAuditExport,
		PermModerationRead,
		PermModerationAction,
		PermAdminCreate,
		PermAdminUpdate,
		PermAdminRevoke,
	}
}

var permissionDescriptions = map[Permission]string{
	PermUsersRead:          "View user accounts and details",
	PermUsersWrite:         "Edit user account information",
	PermUsersDelete:        "Permanently delete user accounts",
	PermUsersSuspend:       "Suspend or unsuspend user accounts",
	PermAnalyticsRead:      "View platform analytics and statistics",
	PermAnalyticsExport:    "Export analytics data",
	PermNotificationsRead:  "View notification history",
	PermNotificationsWrite: "Create notifications",
	PermNotificationsSend:  "Send broadcast notifications",
	PermConfigRead:         "View system configuration",
	PermConfigWrite:        "Modify system configuration",
	PermSystemRead:         "View system health and metrics",
	PermSystemManage:       "Manage system (maintenance mode, cache)",
	PermAuditRead:          "View audit logs",
	PermAuditExport:        "Export audit logs",
	PermModerationRead:     "View moderation queue",
	PermModerationAction:   "Take moderation actions (warn, flag)",
	PermAdminCreate:        "Create new admin accounts",
	PermAdminUpdate:        "Update admin permissions",
	PermAdminRevoke:        "Revoke admin privileges",
}

// Description returns the human readable description of the permission.
func (p Permission) Description() string {
	return permissionDescriptions[p]
}

// Valid reports whether the permission belongs to the defined vocabulary.
func (p Permission) Valid() bool {
	_, ok := permissionDescriptions[p]
	return ok
}

// moderatorPermissions is the baseline administrative set; every higher
// role's defaults build on it.
var moderatorPermissions = []Permission{
	PermUsersRead,
	PermNotificationsRead,
	PermModerationRead,
	PermModerationAction,
}

var adminPermissions = append(append([]Permission{}, moderatorPermissions...),
	PermUsersWrite,
	PermUsersSuspend,
	PermAnalyticsRead,
	PermAnalyticsExport,
	PermNotificationsWrite,
	PermNotificationsSend,
	PermConfigRead,
	PermSystemRead,
	PermAuditRead,
)

// rolePermissions maps each role to its default grant set. Maintainers must
// keep each role's set a superset of the role below it; the package tests
// pin that invariant.
var rolePermissions = map[Role][]Permission{
	RoleUser:       {},
	RoleModerator:  moderatorPermissions,
	RoleAdmin:      adminPermissions,
	RoleSuperAdmin: AllDefinedPermissions(),
}

var rolePermissionSets = buildRolePermissionSets()

func buildRolePermissionSets() map[Role]map[Permission]struct{} {
	sets := make(map[Role]map[Permission]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}

// DefaultPermissions returns a copy of the role's default grant set.
func DefaultPermissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
