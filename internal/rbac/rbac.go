// Package rbac models the closed role and permission vocabulary of the
// admin plane and the pure checks evaluated by the access gate. Roles and
// permissions are compile-time constants; custom grants layered on top of a
// role are additive only and can never revoke a default.
package rbac

// HasPermission reports whether the role's default set or the custom grants
// contain the permission.
func HasPermission(role Role, perm Permission, custom []Permission) bool {
	if _, ok := rolePermissionSets[role][perm]; ok {
		return true
	}
	for _, c := range custom {
		if c == perm {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission is granted.
func HasAllPermissions(role Role, perms []Permission, custom []Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p, custom) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether at least one permission is granted. An
// empty requirement is trivially satisfied.
func HasAnyPermission(role Role, perms []Permission, custom []Permission) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if HasPermission(role, p, custom) {
			return true
		}
	}
	return false
}

// AllPermissions returns the deduplicated union of the role's defaults and
// the custom grants, in vocabulary order followed by unknown extras.
func AllPermissions(role Role, custom []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(rolePermissions[role])+len(custom))
	out := make([]Permission, 0, len(rolePermissions[role])+len(custom))
	for _, p := range rolePermissions[role] {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range custom {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// MissingPermissions returns the required permissions not granted to the
// role plus custom set, preserving the requirement order.
func MissingPermissions(role Role, required []Permission, custom []Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !HasPermission(role, p, custom) {
			missing = append(missing, p)
		}
	}
	return missing
}
