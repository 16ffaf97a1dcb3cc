package rbac

// Role is one of the closed set of account roles, ordered by privilege.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleLevels ranks roles for management comparisons. Higher means more
// privilege. Roles missing from this table rank as RoleUser.
var roleLevels = map[Role]int{
	RoleUser:       0,
	RoleModerator:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

var roleNames = map[Role]string{
	RoleUser:       "User",
	RoleModerator:  "Moderator",
	RoleAdmin:      "Administrator",
	RoleSuperAdmin: "Super Administrator",
}

// Roles returns every defined role in ascending privilege order.
func Roles() []Role {
	return []Role{RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin}
}

// ParseRole maps a stored role string onto the closed set. Unknown values
// resolve to RoleUser so a corrupt or missing role can never elevate.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := roleLevels[r]; ok {
		return r
	}
	return RoleUser
}

// Level returns the hierarchy rank of the role. Unknown roles rank 0.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// DisplayName returns the human readable role name.
func (r Role) DisplayName() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown"
}

// IsAdminRole reports whether the role is at or above the administrative
// threshold (moderator).
func IsAdminRole(r Role) bool {
	return r.Level() >= roleLevels[RoleModerator]
}

// IsSuperAdmin reports whether the role is the top of the hierarchy.
func IsSuperAdmin(r Role) bool {
	return r == RoleSuperAdmin
}

// CanManageRole reports whether manager outranks target. A role never
// manages itself or a peer.
func CanManageRole(manager, target Role) bool {
	return manager.Level() > target.Level()
}

// AssignableRoles returns the roles strictly below the assigner, in
// ascending privilege order.
func AssignableRoles(assigner Role) []Role {
	level := assigner.Level()
	var out []Role
	for _, r := range Roles() {
		if r.Level() < level {
			out = append(out, r)
		}
	}
	return out
}
