package auth

// DefaultRole is assigned when an enterprise role has no mapping.
// It is always the lowest-privilege role.
const DefaultRole = RoleNormal

// MapEnterpriseRole resolves an enterprise role string to a platform role
// using the configured mapping. Unknown enterprise roles, and mappings that
// point at a role the platform does not recognize, both fall back to
// DefaultRole so a misconfiguration can never grant elevated access.
func MapEnterpriseRole(enterpriseRole string, mapping map[string]Role) Role {
	role, ok := mapping[enterpriseRole]
	if !ok {
		return DefaultRole
	}
	if !role.Valid() {
		return DefaultRole
	}
	return role
}

// HighestRole returns the most privileged role among a user's tenant
// memberships. An empty slice yields DefaultRole.
func HighestRole(roles []Role) Role {
	highest := DefaultRole
	for _, r := range roles {
		switch r {
		case RoleOwner:
			return RoleOwner
		case RoleAdmin:
			highest = RoleAdmin
		}
	}
	return highest
}

// PermissionsForRole returns the capability set granted by a tenant role.
func PermissionsForRole(role Role) PermissionSet {
	switch role {
	case RoleOwner:
		return PermissionSet{
			PermissionManageKnowledge: true,
			PermissionChat:            true,
			PermissionManageUsers:     true,
			PermissionAccessSystem:    true,
		}
	case RoleAdmin:
		return PermissionSet{
			PermissionManageKnowledge: true,
			PermissionChat:            true,
			PermissionManageUsers:     false,
			PermissionAccessSystem:    false,
		}
	default:
		return PermissionSet{
			PermissionManageKnowledge: false,
			PermissionChat:            true,
			PermissionManageUsers:     false,
			PermissionAccessSystem:    false,
		}
	}
}
