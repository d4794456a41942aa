// Package authz gates the admin surface on platform-level permissions.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyhq/parley/internal/shared"
)

// Service resolves platform permissions for acting administrators.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the permissions granted by the actor's
// platform role.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.permission
		FROM platform_role_permissions p
		JOIN users u ON u.platform_role = p.role_slug
		WHERE u.id = $1
		ORDER BY p.permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: permissions: %w", err)
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("authz: permissions: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: permissions: %w", err)
	}
	return perms, nil
}

// CanEditUser reports whether the actor may edit the target user's
// capabilities. Mirrors the host platform's edit-user check: the actor
// needs the users.edit permission; editing yourself is not a special case.
func (s *Service) CanEditUser(ctx context.Context, actorID, targetID int64) (bool, error) {
	if actorID == 0 {
		return false, nil
	}
	perms, err := s.EffectivePermissions(ctx, actorID)
	if err != nil {
		return false, err
	}
	allowed := false
	for _, p := range perms {
		if p == shared.PermUsersEdit {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	if exists, err := s.userExists(ctx, targetID); err != nil {
		return false, err
	} else if !exists {
		return false, shared.ErrNotFound
	}
	return true, nil
}

func (s *Service) userExists(ctx context.Context, userID int64) (bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("authz: user exists: %w", err)
	}
	return true, nil
}
