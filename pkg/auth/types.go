package auth

import "time"

// User represents a platform account, possibly linked to an enterprise identity.
type User struct {
	ID               string     `json:"id"`
	EnterpriseUserID string     `json:"enterprise_user_id,omitempty"`
	EnterpriseSource string     `json:"enterprise_source,omitempty"`
	Email            string     `json:"email"`
	Nickname         string     `json:"nickname"`
	LoginChannel     string     `json:"login_channel,omitempty"`
	AccessToken      string     `json:"-"` // Session token, never serialized
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// TenantRole represents a user's role within a tenant
type TenantRole struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
}

// Role represents tenant-level roles
type Role string

const (
	RoleOwner  Role = "owner"  // Full control of the tenant space
	RoleAdmin  Role = "admin"  // Can manage knowledge bases
	RoleNormal Role = "normal" // Chat access only
)

// Valid reports whether r is one of the known tenant roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleNormal:
		return true
	}
	return false
}

// Permission represents a capability granted by a tenant role
type Permission string

const (
	PermissionManageKnowledge Permission = "manage_knowledge"
	PermissionChat            Permission = "chat"
	PermissionManageUsers     Permission = "manage_users"
	PermissionAccessSystem    Permission = "access_system"
)

// PermissionSet maps each capability to whether it is granted
type PermissionSet map[Permission]bool
