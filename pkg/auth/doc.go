// Package auth defines the user, tenant-role and permission model shared by
// the enterprise bridge.
//
// # Roles
//
// Tenant roles map to capability sets:
//
//	RoleOwner  - manage knowledge, chat, manage users, system access
//	RoleAdmin  - manage knowledge, chat
//	RoleNormal - chat only
//
// Enterprise role strings are translated through a configured mapping:
//
//	role := auth.MapEnterpriseRole("IT_Manager", cfg.RoleMapping)
//	perms := auth.PermissionsForRole(role)
//
// Unmapped or invalid roles always resolve to RoleNormal, never to an
// elevated role.
//
// # Related Packages
//
//   - pkg/security: token verification pipeline producing claim sets
//   - pkg/provision: persists users and tenant-role assignments
package auth
