package auth

import (
	"github.com/relaygate/gateway/internal/storage"
)

// Permission is one member of the closed permission enum (spec.md §4.D).
type Permission string

const (
	PermChatRead       Permission = "chat:read"
	PermChatWrite      Permission = "chat:write"
	PermChatDelete     Permission = "chat:delete"
	PermProjectRead    Permission = "project:read"
	PermProjectWrite   Permission = "project:write"
	PermProjectDelete  Permission = "project:delete"
	PermAdminManage    Permission = "admin:manage"
	PermAdminUsers     Permission = "admin:users"
	PermAdminConfig    Permission = "admin:config"
)

// rolePermissions is the static role -> permission matrix. Admins also
// get an unconditional bypass in HasPermission/RequirePermission,
// independent of this table.
var rolePermissions = map[storage.UserRole]map[Permission]bool{
	storage.RoleAdmin: {
		PermChatRead: true, PermChatWrite: true, PermChatDelete: true,
		PermProjectRead: true, PermProjectWrite: true, PermProjectDelete: true,
		PermAdminManage: true, PermAdminUsers: true, PermAdminConfig: true,
	},
	storage.RoleStandard: {
		PermChatRead: true, PermChatWrite: true, PermChatDelete: true,
		PermProjectRead: true, PermProjectWrite: true,
	},
	storage.RoleReadonly: {
		PermChatRead: true, PermProjectRead: true,
	},
}

// ErrPermissionDenied marks an authorization failure distinct from an
// authentication failure.
type ErrPermissionDenied struct {
	Role       storage.UserRole
	Permission Permission
}

func (e *ErrPermissionDenied) Error() string {
	return "auth: role " + string(e.Role) + " lacks permission " + string(e.Permission)
}

// HasRole reports whether role equals want.
func HasRole(role, want storage.UserRole) bool { return role == want }

// RequireRole returns an error unless role equals want. Admins are not
// given an implicit bypass here: role checks are exact by design,
// unlike permission checks.
func RequireRole(role, want storage.UserRole) error {
	if role != want {
		return &ErrPermissionDenied{Role: role}
	}
	return nil
}

// HasPermission reports whether role carries perm. Admins always carry
// every permission, regardless of the table above.
func HasPermission(role storage.UserRole, perm Permission) bool {
	if role == storage.RoleAdmin {
		return true
	}
	return rolePermissions[role][perm]
}

// RequirePermission returns an error unless role carries perm.
func RequirePermission(role storage.UserRole, perm Permission) error {
	if !HasPermission(role, perm) {
		return &ErrPermissionDenied{Role: role, Permission: perm}
	}
	return nil
}

// CheckResourceAccess authorizes a request against a specific resource.
// Per the gateway's permission-only ownership discipline (no per-record
// user_id fallback: a user's role either carries the permission for
// every resource of that kind, or it doesn't), this is equivalent to
// RequirePermission — ownerID is accepted for call-site clarity and
// audit logging, never consulted for the decision.
func CheckResourceAccess(role storage.UserRole, perm Permission, ownerID, requestingUserID string) error {
	return RequirePermission(role, perm)
}
