package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/parleyhq/parley/internal/shared"
)

// Store is the per-user permission store boundary. EffectiveCapabilities
// returns the merged view (role defaults overlaid by overrides); Overrides
// returns only the user-specific entries.
type Store interface {
	EffectiveCapabilities(ctx context.Context, userID int64) (map[string]bool, error)
	Overrides(ctx context.Context, userID int64) (map[string]bool, error)
	PlatformRole(ctx context.Context, userID int64) (string, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
}

// StoreTx mutates the override set inside one transaction scoped to a user.
type StoreTx interface {
	SetOverride(ctx context.Context, userID int64, capability string, allowed bool) error
	ClearOverride(ctx context.Context, userID int64, capability string) error
}

// RoleDefaults resolves a forum role to its default capability map.
type RoleDefaults interface {
	DefaultCapabilities(ctx context.Context, role string) (map[string]bool, error)
}

// RoleMapper maps a platform-level role to a forum role, falling back to the
// configured default forum role when unmapped.
type RoleMapper interface {
	ForumRoleFor(platformRole string) string
}

// Authorizer answers whether an actor may edit a target user.
type Authorizer interface {
	CanEditUser(ctx context.Context, actorID, targetID int64) (bool, error)
}

// Service resolves capability state and applies override submissions.
type Service struct {
	store   Store
	roles   RoleDefaults
	roleMap RoleMapper
	authz   Authorizer
	catalog *Catalog
	cache   *Cache
	audit   *shared.AuditLogger
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, roles RoleDefaults, roleMap RoleMapper, authz Authorizer, catalog *Catalog, cache *Cache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if catalog == nil {
		catalog = Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		roles:   roles,
		roleMap: roleMap,
		authz:   authz,
		catalog: catalog,
		cache:   cache,
		audit:   audit,
		logger:  logger,
	}
}

// Catalog exposes the registry the service operates on.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Resolve computes the effective value, provenance and permitted next
// actions for a single capability. Read-only. Capabilities outside the
// catalog resolve from the override set alone.
func (s *Service) Resolve(ctx context.Context, userID int64, capability string) (Resolution, error) {
	effective, err := s.store.EffectiveCapabilities(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}
	overrides, err := s.store.Overrides(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}
	return s.resolveOne(capability, effective, overrides), nil
}

// Table resolves the full catalog for one user, grouped for display. The
// result is cached per user until the next override mutation.
func (s *Service) Table(ctx context.Context, userID int64) ([]GroupView, error) {
	if s.cache == nil {
		return s.buildTable(ctx, userID)
	}
	return s.cache.Table(ctx, userID, func(ctx context.Context) ([]GroupView, error) {
		return s.buildTable(ctx, userID)
	})
}

func (s *Service) buildTable(ctx context.Context, userID int64) ([]GroupView, error) {
	effective, err := s.store.EffectiveCapabilities(ctx, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := make([]GroupView, 0, len(s.catalog.Groups()))
	for _, group := range s.catalog.Groups() {
		view := GroupView{Group: group, Title: s.catalog.GroupTitle(group)}
		for _, cap := range s.catalog.Capabilities(group) {
			view.Rows = append(view.Rows, s.resolveOne(cap, effective, overrides))
		}
		groups = append(groups, view)
	}
	return groups, nil
}

// resolveOne implements the action-menu rules. Once a user-level override
// exists only the same-direction decision remains selectable; flipping it
// requires clearing back to default first.
func (s *Service) resolveOne(capability string, effective, overrides map[string]bool) Resolution {
	allowed := effective[capability]
	_, overridden := overrides[capability]

	res := Resolution{
		Capability: capability,
		Title:      s.catalog.Title(capability),
		Allowed:    allowed,
		Provenance: ProvenanceRole,
		Changed:    overridden,
		Selected:   DecisionDefault,
	}
	if overridden {
		res.Provenance = ProvenanceUser
	}

	switch {
	case !allowed && !overridden:
		res.Options = []Decision{DecisionAllow}
	case allowed && !overridden:
		res.Options = []Decision{DecisionDeny}
	case allowed && overridden:
		res.Options = []Decision{DecisionAllow}
		res.Selected = DecisionAllow
	default:
		res.Options = []Decision{DecisionDeny}
		res.Selected = DecisionDeny
	}
	return res
}

// Apply dispatches one submitted form: a requested reset runs the
// reset-to-role-default path and ignores per-capability fields, anything
// else runs the bulk override application. The actor must be allowed to
// edit the target user; on denial nothing is mutated.
func (s *Service) Apply(ctx context.Context, actorID, userID int64, sub Submission) error {
	allowed, err := s.authz.CanEditUser(ctx, actorID, userID)
	if err != nil {
		return fmt.Errorf("capabilities: authorize: %w", err)
	}
	if !allowed {
		return shared.ErrPermissionDenied
	}

	action := "capabilities.apply"
	if sub.Reset {
		action = "capabilities.reset"
		err = s.resetToRoleDefault(ctx, userID)
	} else {
		err = s.applyOverrides(ctx, userID, sub.Decisions)
	}
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Bump(ctx, userID); err != nil {
			s.logger.Warn("capability cache bump", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, userID, action, sub)
	return nil
}

// applyOverrides walks the full catalog: every capability is cleared first,
// then re-set for explicit allow/deny decisions. Submitted keys outside the
// catalog are never touched, which keeps arbitrary form keys out of the
// store.
func (s *Service) applyOverrides(ctx context.Context, userID int64, decisions map[string]Decision) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx StoreTx) error {
		for _, cap := range s.catalog.All() {
			if err := tx.ClearOverride(ctx, userID, cap); err != nil {
				return err
			}
			switch decisions[cap] {
			case DecisionAllow:
				if err := tx.SetOverride(ctx, userID, cap, true); err != nil {
					return err
				}
			case DecisionDeny:
				if err := tx.SetOverride(ctx, userID, cap, false); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// resetToRoleDefault wipes the override set and re-seeds it with the
// resolved forum role's defaults. The defaults become explicit user-level
// overrides rather than implicit role fallthrough; the table shows user
// provenance for them afterwards.
func (s *Service) resetToRoleDefault(ctx context.Context, userID int64) error {
	platformRole, err := s.store.PlatformRole(ctx, userID)
	if err != nil {
		return err
	}
	if platformRole == "" {
		return shared.ErrNotFound
	}

	forumRole := s.roleMap.ForumRoleFor(platformRole)
	defaults, err := s.roles.DefaultCapabilities(ctx, forumRole)
	if err != nil {
		return err
	}

	seeds := make([]string, 0, len(defaults))
	for cap := range defaults {
		seeds = append(seeds, cap)
	}
	sort.Strings(seeds)

	return s.store.WithTx(ctx, func(ctx context.Context, tx StoreTx) error {
		for _, cap := range s.catalog.All() {
			if err := tx.ClearOverride(ctx, userID, cap); err != nil {
				return err
			}
		}
		for _, cap := range seeds {
			if err := tx.SetOverride(ctx, userID, cap, defaults[cap]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID, userID int64, action string, sub Submission) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"reset": sub.Reset}
	if !sub.Reset {
		var allows, denies int
		for _, d := range sub.Decisions {
			switch d {
			case DecisionAllow:
				allows++
			case DecisionDeny:
				denies++
			}
		}
		meta["allows"] = allows
		meta["denies"] = denies
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user_capabilities",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit capability change", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
