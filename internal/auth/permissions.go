package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermTransferInitiate Permission = "transfer:initiate"
	PermTransferApprove  Permission = "transfer:approve"
	PermTransferReject   Permission = "transfer:reject"
	PermTransferReadAll  Permission = "transfer:read:all"
	PermAuditRead        Permission = "audit:read"
	PermActOnBehalf      Permission = "transfer:on_behalf"
)

// rolePermissions maps each role to its granted permissions.
// Party checks (owner, recipient) are made by the transfer engine on top
// of these.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermTransferInitiate,
		PermTransferApprove,
		PermTransferReject,
	},
	RoleAdmin: {
		PermTransferInitiate,
		PermTransferApprove,
		PermTransferReject,
		PermTransferReadAll,
		PermAuditRead,
		PermActOnBehalf,
	},
}

// HasPermission returns true if role has perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role,
// or nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
