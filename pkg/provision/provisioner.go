package provision

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chatterdocs/entbridge/pkg/auth"
	"github.com/chatterdocs/entbridge/pkg/security"
)

// enterpriseSource marks accounts created or adopted through the bridge.
const enterpriseSource = "enterprise_system"

// UserProvisioner handles JIT (Just-In-Time) provisioning of enterprise
// users and their tenant-role mappings. Uniqueness of enterprise user IDs
// and emails is enforced by the database's constraints; concurrent creation
// races surface as constraint violations and fail the losing request.
type UserProvisioner struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewUserProvisioner creates a new user provisioner
func NewUserProvisioner(db *sql.DB, log *logrus.Logger) *UserProvisioner {
	return &UserProvisioner{db: db, log: log}
}

// Provision creates or updates the local account for a verified enterprise
// identity and ensures its tenant-role mapping. Resolution order: existing
// enterprise-linked account, then an existing account with the same email
// (adopted as enterprise-linked), then a fresh account with its own tenant
// space.
func (p *UserProvisioner) Provision(ctx context.Context, claims *security.ClaimSet, role auth.Role) (*auth.User, error) {
	var userID string
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE enterprise_user_id = $1
	`, claims.UserID).Scan(&userID)

	switch {
	case err == sql.ErrNoRows:
		return p.adoptOrCreate(ctx, claims, role)
	case err != nil:
		return nil, fmt.Errorf("failed to look up enterprise user: %w", err)
	}

	return p.updateUser(ctx, userID, claims, role)
}

// updateUser refreshes an existing enterprise-linked account.
func (p *UserProvisioner) updateUser(ctx context.Context, userID string, claims *security.ClaimSet, role auth.Role) (*auth.User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET email = $1, nickname = $2, updated_at = NOW(), last_login_at = NOW()
		WHERE id = $3
	`, claims.Email, claims.Nickname, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := p.ensureTenantRole(ctx, tx, userID, claims.Nickname, role); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.log.WithField("email", claims.Email).Info("updated enterprise user")
	return p.fetchUser(ctx, userID)
}

// adoptOrCreate links an existing same-email account to the enterprise
// identity, or creates a brand new account.
func (p *UserProvisioner) adoptOrCreate(ctx context.Context, claims *security.ClaimSet, role auth.Role) (*auth.User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM users WHERE email = $1
	`, claims.Email).Scan(&userID)

	switch {
	case err == sql.ErrNoRows:
		userID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, enterprise_user_id, enterprise_source, email, nickname,
			                   access_token, login_channel, is_active, created_at, updated_at, last_login_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'enterprise', true, NOW(), NOW(), NOW())
		`, userID, claims.UserID, enterpriseSource, claims.Email, claims.Nickname, uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		p.log.WithField("email", claims.Email).Info("created enterprise user")
	case err != nil:
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET enterprise_user_id = $1, enterprise_source = $2, nickname = $3,
			    updated_at = NOW(), last_login_at = NOW()
			WHERE id = $4
		`, claims.UserID, enterpriseSource, claims.Nickname, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to adopt user: %w", err)
		}
		p.log.WithField("email", claims.Email).Info("adopted existing account as enterprise user")
	}

	if err := p.ensureTenantRole(ctx, tx, userID, claims.Nickname, role); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p.fetchUser(ctx, userID)
}

// ensureTenantRole makes sure the user has a tenant membership carrying the
// mapped role. Existing memberships with a different role are updated; a
// user without any membership gets a personal tenant space whose ID is the
// user's own ID.
func (p *UserProvisioner) ensureTenantRole(ctx context.Context, tx *sql.Tx, userID, nickname string, role auth.Role) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, role FROM user_tenants WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to query tenant memberships: %w", err)
	}
	defer rows.Close()

	type membership struct {
		id   string
		role string
	}
	var memberships []membership
	for rows.Next() {
		var m membership
		if err := rows.Scan(&m.id, &m.role); err != nil {
			return fmt.Errorf("failed to scan tenant membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tenant memberships: %w", err)
	}

	if len(memberships) > 0 {
		for _, m := range memberships {
			if m.role != string(role) {
				if _, err := tx.ExecContext(ctx, `
					UPDATE user_tenants SET role = $1 WHERE id = $2
				`, string(role), m.id); err != nil {
					return fmt.Errorf("failed to update tenant role: %w", err)
				}
			}
		}
		return nil
	}

	// Personal tenant space: tenant ID equals user ID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`, userID, nickname+"'s Enterprise Space")
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_tenants (id, tenant_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4, $3)
	`, uuid.NewString(), userID, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to create tenant membership: %w", err)
	}

	return nil
}

// fetchUser loads the final user row.
func (p *UserProvisioner) fetchUser(ctx context.Context, userID string) (*auth.User, error) {
	user := &auth.User{}
	var lastLogin sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, enterprise_user_id, enterprise_source, email, nickname,
		       login_channel, is_active, created_at, updated_at, last_login_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.EnterpriseUserID, &user.EnterpriseSource, &user.Email,
		&user.Nickname, &user.LoginChannel, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

// RolesForUser returns the user's roles across all tenant memberships.
func (p *UserProvisioner) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT role FROM user_tenants WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, auth.Role(role))
	}
	return roles, rows.Err()
}
