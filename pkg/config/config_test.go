package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterdocs/entbridge/pkg/auth"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.False(t, cfg.Enterprise.Enabled)
	assert.Equal(t, time.Hour, cfg.Enterprise.TokenMaxAge)
	assert.Equal(t, 10, cfg.Enterprise.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, cfg.Enterprise.RateLimit.Window)
	assert.Equal(t, 5, cfg.Enterprise.Abuse.MaxFailures)
	assert.Equal(t, 5*time.Minute, cfg.Enterprise.Abuse.SuspicionWindow)
	assert.Equal(t, "redis://localhost:6379", cfg.Store.RedisURL)
}

func TestLoad_EnterpriseFromEnv(t *testing.T) {
	t.Setenv("ENTBRIDGE_ENTERPRISE_ENABLED", "true")
	t.Setenv("ENTBRIDGE_JWT_SECRET", "topsecret")
	t.Setenv("ENTBRIDGE_ROLE_MAPPING", "super_admin=owner, manager=admin,employee=normal")
	t.Setenv("ENTBRIDGE_ALLOWED_ORIGINS", "10.0.0.1, 192.168.1.0/24")
	t.Setenv("ENTBRIDGE_TOKEN_MAX_AGE", "30m")
	t.Setenv("ENTBRIDGE_RATE_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Enterprise.Enabled)
	assert.Equal(t, "topsecret", cfg.Enterprise.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Enterprise.TokenMaxAge)
	assert.Equal(t, 3, cfg.Enterprise.RateLimit.Limit)
	assert.Equal(t, []string{"10.0.0.1", "192.168.1.0/24"}, cfg.Enterprise.AllowedOrigins)
	assert.Equal(t, map[string]auth.Role{
		"super_admin": auth.RoleOwner,
		"manager":     auth.RoleAdmin,
		"employee":    auth.RoleNormal,
	}, cfg.Enterprise.RoleMapping)
}

func TestLoad_PolicyFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	policy := `
role_mapping:
  director: owner
  staff: normal
allowed_origins:
  - 172.16.0.0/12
`
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))

	t.Setenv("ENTBRIDGE_ENTERPRISE_ENABLED", "true")
	t.Setenv("ENTBRIDGE_JWT_SECRET", "topsecret")
	t.Setenv("ENTBRIDGE_ROLE_MAPPING", "employee=normal")
	t.Setenv("ENTBRIDGE_ALLOWED_ORIGINS", "10.0.0.1")
	t.Setenv("ENTBRIDGE_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]auth.Role{
		"director": auth.RoleOwner,
		"staff":    auth.RoleNormal,
	}, cfg.Enterprise.RoleMapping)
	assert.Equal(t, []string{"172.16.0.0/12"}, cfg.Enterprise.AllowedOrigins)
}

func TestLoad_PolicyFileMissing(t *testing.T) {
	t.Setenv("ENTBRIDGE_POLICY_FILE", "/nonexistent/policy.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_EnterpriseRequiresSecret(t *testing.T) {
	t.Setenv("ENTBRIDGE_ENTERPRISE_ENABLED", "true")
	t.Setenv("ENTBRIDGE_ROLE_MAPPING", "employee=normal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestValidate_PortsMustDiffer(t *testing.T) {
	t.Setenv("ENTBRIDGE_PORT", "8080")
	t.Setenv("ENTBRIDGE_HEALTH_PORT", "8080")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseRoleMapping_MalformedPairsSkipped(t *testing.T) {
	mapping := parseRoleMapping("good=owner,noequals,=,other=admin")
	assert.Equal(t, auth.RoleOwner, mapping["good"])
	assert.Equal(t, auth.RoleAdmin, mapping["other"])
	assert.Len(t, mapping, 3) // "" -> "" parses but maps empty key
}
