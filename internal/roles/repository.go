package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyhq/parley/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all forum roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT slug, name FROM forum_roles ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Slug, &role.Name); err != nil {
			return nil, fmt.Errorf("roles: list: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return roles, nil
}

// DefaultCapabilities returns the capability defaults of one forum role.
// Unknown roles report shared.ErrNotFound.
func (r *Repository) DefaultCapabilities(ctx context.Context, role string) (map[string]bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM forum_roles WHERE slug = $1)`, role).Scan(&exists); err != nil {
		return nil, fmt.Errorf("roles: defaults: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("roles: %q: %w", role, shared.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx, `SELECT capability, allowed FROM role_capabilities WHERE role_slug = $1`, role)
	if err != nil {
		return nil, fmt.Errorf("roles: defaults: %w", err)
	}
	defer rows.Close()
	caps := make(map[string]bool)
	for rows.Next() {
		var cap string
		var allowed bool
		if err := rows.Scan(&cap, &allowed); err != nil {
			return nil, fmt.Errorf("roles: defaults: %w", err)
		}
		caps[cap] = allowed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: defaults: %w", err)
	}
	return caps, nil
}
