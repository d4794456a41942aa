package capabilities

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/parleyhq/parley/internal/platform/db"
	"github.com/parleyhq/parley/internal/shared"
)

// Repository implements Store on PostgreSQL. Role defaults live in
// role_capabilities keyed by the user's forum role; per-user overrides live
// in user_capabilities and win on merge.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// EffectiveCapabilities returns the merged capability map for a user:
// forum role defaults overlaid by the user's overrides.
func (r *Repository) EffectiveCapabilities(ctx context.Context, userID int64) (map[string]bool, error) {
	forumRole, err := r.forumRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	effective := make(map[string]bool)
	rows, err := r.pool.Query(ctx, `SELECT capability, allowed FROM role_capabilities WHERE role_slug = $1`, forumRole)
	if err != nil {
		return nil, storeError("role defaults", err)
	}
	if err := collectCapabilities(rows, effective); err != nil {
		return nil, storeError("role defaults", err)
	}

	overrides, err := r.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	for cap, allowed := range overrides {
		effective[cap] = allowed
	}
	return effective, nil
}

// Overrides returns only the user's explicit overrides.
func (r *Repository) Overrides(ctx context.Context, userID int64) (map[string]bool, error) {
	overrides := make(map[string]bool)
	rows, err := r.pool.Query(ctx, `SELECT capability, allowed FROM user_capabilities WHERE user_id = $1`, userID)
	if err != nil {
		return nil, storeError("overrides", err)
	}
	if err := collectCapabilities(rows, overrides); err != nil {
		return nil, storeError("overrides", err)
	}
	return overrides, nil
}

// PlatformRole returns the user's platform-level role, empty when unset.
func (r *Repository) PlatformRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT platform_role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", storeError("platform role", err)
	}
	return role, nil
}

// WithTx runs fn inside one transaction so a submission's clear-then-set
// loop is applied atomically per user.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	err := platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txStore{tx: tx})
	})
	if err != nil {
		return storeError("tx", err)
	}
	return nil
}

func (r *Repository) forumRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT forum_role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", storeError("forum role", err)
	}
	return role, nil
}

type txStore struct {
	tx pgx.Tx
}

func (t txStore) SetOverride(ctx context.Context, userID int64, capability string, allowed bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_capabilities (user_id, capability, allowed)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, capability) DO UPDATE SET allowed = EXCLUDED.allowed`,
		userID, capability, allowed)
	return err
}

func (t txStore) ClearOverride(ctx context.Context, userID int64, capability string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_capabilities WHERE user_id = $1 AND capability = $2`, userID, capability)
	return err
}

func collectCapabilities(rows pgx.Rows, dest map[string]bool) error {
	defer rows.Close()
	for rows.Next() {
		var cap string
		var allowed bool
		if err := rows.Scan(&cap, &allowed); err != nil {
			return err
		}
		dest[cap] = allowed
	}
	return rows.Err()
}

// storeError keeps domain sentinels intact and folds connection-level
// failures into ErrStoreUnavailable so callers can report them uniformly.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrPermissionDenied) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 covers connection exceptions.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return fmt.Errorf("%w: %s: %v", shared.ErrStoreUnavailable, op, err)
		}
		return fmt.Errorf("capabilities: %s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", shared.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("capabilities: %s: %w", op, err)
}
