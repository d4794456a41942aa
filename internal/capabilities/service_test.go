package capabilities

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/parleyhq/parley/internal/shared"
)

type memStore struct {
	roleDefaults map[string]bool
	overrides    map[string]bool
	platformRole string
	txErr        error
}

func newMemStore(platformRole string, roleDefaults map[string]bool) *memStore {
	return &memStore{
		roleDefaults: roleDefaults,
		overrides:    make(map[string]bool),
		platformRole: platformRole,
	}
}

func (s *memStore) EffectiveCapabilities(_ context.Context, _ int64) (map[string]bool, error) {
	merged := make(map[string]bool, len(s.roleDefaults))
	for cap, allowed := range s.roleDefaults {
		merged[cap] = allowed
	}
	for cap, allowed := range s.overrides {
		merged[cap] = allowed
	}
	return merged, nil
}

func (s *memStore) Overrides(_ context.Context, _ int64) (map[string]bool, error) {
	out := make(map[string]bool, len(s.overrides))
	for cap, allowed := range s.overrides {
		out[cap] = allowed
	}
	return out, nil
}

func (s *memStore) PlatformRole(_ context.Context, _ int64) (string, error) {
	return s.platformRole, nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	return fn(ctx, memTx{store: s})
}

type memTx struct {
	store *memStore
}

func (t memTx) SetOverride(_ context.Context, _ int64, capability string, allowed bool) error {
	t.store.overrides[capability] = allowed
	return nil
}

func (t memTx) ClearOverride(_ context.Context, _ int64, capability string) error {
	delete(t.store.overrides, capability)
	return nil
}

type stubRoles struct {
	defaults map[string]map[string]bool
}

func (s stubRoles) DefaultCapabilities(_ context.Context, role string) (map[string]bool, error) {
	caps, ok := s.defaults[role]
	if !ok {
		return nil, fmt.Errorf("role %q: %w", role, shared.ErrNotFound)
	}
	return caps, nil
}

type stubMapper struct {
	mapping  map[string]string
	fallback string
}

func (s stubMapper) ForumRoleFor(platformRole string) string {
	if forum, ok := s.mapping[platformRole]; ok {
		return forum
	}
	return s.fallback
}

type stubAuthz struct {
	allowed bool
	err     error
}

func (s stubAuthz) CanEditUser(_ context.Context, _, _ int64) (bool, error) {
	return s.allowed, s.err
}

func newTestService(store *memStore, roles stubRoles, authz stubAuthz) *Service {
	mapper := stubMapper{mapping: map[string]string{"staff": "moderator"}, fallback: "participant"}
	return NewService(store, roles, mapper, authz, Default(), nil, nil, nil)
}

func participantDefaults() map[string]bool {
	return map[string]bool{
		"spectate":        true,
		"participate":     true,
		"publish_topics":  true,
		"publish_replies": true,
		"moderate":        false,
	}
}

func findRow(t *testing.T, groups []GroupView, capability string) Resolution {
	t.Helper()
	for _, g := range groups {
		for _, row := range g.Rows {
			if row.Capability == capability {
				return row
			}
		}
	}
	t.Fatalf("capability %q not found in table", capability)
	return Resolution{}
}

func TestResolveRoleProvenance(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	res, err := svc.Resolve(context.Background(), 7, "participate")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Allowed || res.Provenance != ProvenanceRole || res.Changed {
		t.Fatalf("expected allowed role default, got %+v", res)
	}
	if res.Selected != DecisionDefault {
		t.Fatalf("expected no pre-selected decision, got %q", res.Selected)
	}
}

func TestResolveUserProvenance(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	store.overrides["moderate"] = true
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	res, err := svc.Resolve(context.Background(), 7, "moderate")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Allowed || res.Provenance != ProvenanceUser || !res.Changed {
		t.Fatalf("expected allowed user override, got %+v", res)
	}
}

func TestResolveActionMenu(t *testing.T) {
	cases := []struct {
		name         string
		capability   string
		override     *bool
		wantOptions  []Decision
		wantSelected Decision
	}{
		{name: "denied by role offers allow", capability: "moderate", wantOptions: []Decision{DecisionAllow}, wantSelected: DecisionDefault},
		{name: "allowed by role offers deny", capability: "participate", wantOptions: []Decision{DecisionDeny}, wantSelected: DecisionDefault},
		{name: "allowed by override keeps allow selected", capability: "moderate", override: boolPtr(true), wantOptions: []Decision{DecisionAllow}, wantSelected: DecisionAllow},
		{name: "denied by override keeps deny selected", capability: "participate", override: boolPtr(false), wantOptions: []Decision{DecisionDeny}, wantSelected: DecisionDeny},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore("member", participantDefaults())
			if tc.override != nil {
				store.overrides[tc.capability] = *tc.override
			}
			svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

			res, err := svc.Resolve(context.Background(), 7, tc.capability)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if len(res.Options) != len(tc.wantOptions) {
				t.Fatalf("expected options %v, got %v", tc.wantOptions, res.Options)
			}
			for i := range tc.wantOptions {
				if res.Options[i] != tc.wantOptions[i] {
					t.Fatalf("expected options %v, got %v", tc.wantOptions, res.Options)
				}
			}
			if res.Selected != tc.wantSelected {
				t.Fatalf("expected selected %q, got %q", tc.wantSelected, res.Selected)
			}
		})
	}
}

func boolPtr(v bool) *bool { return &v }

func TestTableFollowsCatalogOrder(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	groups, err := svc.Table(context.Background(), 7)
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	catalog := Default()
	if len(groups) != len(catalog.Groups()) {
		t.Fatalf("expected %d groups, got %d", len(catalog.Groups()), len(groups))
	}
	total := 0
	for i, g := range groups {
		if g.Group != catalog.Groups()[i] {
			t.Fatalf("group %d out of order: %q", i, g.Group)
		}
		if g.Title != catalog.GroupTitle(g.Group) {
			t.Fatalf("unexpected group title %q", g.Title)
		}
		total += len(g.Rows)
	}
	if total != catalog.Len() {
		t.Fatalf("expected %d rows, got %d", catalog.Len(), total)
	}
}

func TestApplyClearsStaleOverrides(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	store.overrides["participate"] = false
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	sub := Submission{Decisions: map[string]Decision{"moderate": DecisionAllow}}
	if err := svc.Apply(context.Background(), 1, 7, sub); err != nil {
		t.Fatalf("apply: %v", err)
	}

	groups, err := svc.Table(context.Background(), 7)
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	moderate := findRow(t, groups, "moderate")
	if !moderate.Allowed || moderate.Provenance != ProvenanceUser {
		t.Fatalf("expected moderate allowed by override, got %+v", moderate)
	}

	// The omitted override falls back to the role default.
	participate := findRow(t, groups, "participate")
	if !participate.Allowed || participate.Provenance != ProvenanceRole || participate.Changed {
		t.Fatalf("expected participate back on role default, got %+v", participate)
	}
}

func TestApplyIgnoresUnknownKeys(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	sub := Submission{Decisions: map[string]Decision{
		"moderate":       DecisionAllow,
		"manage_network": DecisionAllow,
	}}
	if err := svc.Apply(context.Background(), 1, 7, sub); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := store.overrides["manage_network"]; ok {
		t.Fatal("unknown capability must never reach the store")
	}
	if allowed, ok := store.overrides["moderate"]; !ok || !allowed {
		t.Fatalf("expected moderate override, got %v", store.overrides)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	sub := Submission{Decisions: map[string]Decision{
		"moderate":    DecisionAllow,
		"participate": DecisionDeny,
	}}
	if err := svc.Apply(context.Background(), 1, 7, sub); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first, err := svc.Table(context.Background(), 7)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if err := svc.Apply(context.Background(), 1, 7, sub); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	second, err := svc.Table(context.Background(), 7)
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	for _, cap := range []string{"moderate", "participate", "spectate"} {
		wantEq(t, cap, findRow(t, first, cap), findRow(t, second, cap))
	}
}

func wantEq(t *testing.T, cap string, a, b Resolution) {
	t.Helper()
	if a.Allowed != b.Allowed || a.Provenance != b.Provenance || a.Changed != b.Changed || a.Selected != b.Selected {
		t.Fatalf("resolution for %q changed on reapply: %+v vs %+v", cap, a, b)
	}
}

func TestApplyPermissionDenied(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	store.overrides["moderate"] = true
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: false})

	sub := Submission{Decisions: map[string]Decision{"participate": DecisionDeny}}
	err := svc.Apply(context.Background(), 1, 7, sub)
	if !errors.Is(err, shared.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if len(store.overrides) != 1 || !store.overrides["moderate"] {
		t.Fatalf("denied apply must not mutate overrides, got %v", store.overrides)
	}
}

func TestResetSeedsRoleDefaults(t *testing.T) {
	store := newMemStore("staff", participantDefaults())
	store.overrides["participate"] = false
	store.overrides["moderate"] = true

	moderatorDefaults := map[string]bool{
		"spectate":    true,
		"participate": true,
		"moderate":    true,
		"view_trash":  false,
	}
	roles := stubRoles{defaults: map[string]map[string]bool{"moderator": moderatorDefaults}}
	svc := newTestService(store, roles, stubAuthz{allowed: true})

	if err := svc.Apply(context.Background(), 1, 7, Submission{Reset: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if len(store.overrides) != len(moderatorDefaults) {
		t.Fatalf("expected %d seeded overrides, got %v", len(moderatorDefaults), store.overrides)
	}
	for cap, want := range moderatorDefaults {
		got, ok := store.overrides[cap]
		if !ok || got != want {
			t.Fatalf("expected seed %s=%v, got %v", cap, want, store.overrides)
		}
	}

	// Seeded values read back as explicit user overrides, not role defaults.
	res, err := svc.Resolve(context.Background(), 7, "moderate")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Allowed || res.Provenance != ProvenanceUser {
		t.Fatalf("expected seeded user override, got %+v", res)
	}
}

func TestResetFallsBackToDefaultForumRole(t *testing.T) {
	store := newMemStore("guest", participantDefaults())
	roles := stubRoles{defaults: map[string]map[string]bool{
		"participant": {"spectate": true, "participate": true},
	}}
	svc := newTestService(store, roles, stubAuthz{allowed: true})

	if err := svc.Apply(context.Background(), 1, 7, Submission{Reset: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(store.overrides) != 2 || !store.overrides["spectate"] || !store.overrides["participate"] {
		t.Fatalf("expected participant defaults seeded, got %v", store.overrides)
	}
}

func TestResetMissingPlatformRole(t *testing.T) {
	store := newMemStore("", participantDefaults())
	store.overrides["moderate"] = true
	svc := newTestService(store, stubRoles{}, stubAuthz{allowed: true})

	err := svc.Apply(context.Background(), 1, 7, Submission{Reset: true})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.overrides) != 1 {
		t.Fatalf("failed reset must not mutate overrides, got %v", store.overrides)
	}
}

func TestResetUnknownForumRole(t *testing.T) {
	store := newMemStore("staff", participantDefaults())
	store.overrides["moderate"] = true
	svc := newTestService(store, stubRoles{defaults: map[string]map[string]bool{}}, stubAuthz{allowed: true})

	err := svc.Apply(context.Background(), 1, 7, Submission{Reset: true})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.overrides) != 1 {
		t.Fatalf("failed reset must not mutate overrides, got %v", store.overrides)
	}
}

func TestApplyAuthorizerError(t *testing.T) {
	store := newMemStore("member", participantDefaults())
	authzErr := errors.New("authz backend down")
	svc := newTestService(store, stubRoles{}, stubAuthz{err: authzErr})

	err := svc.Apply(context.Background(), 1, 7, Submission{Decisions: map[string]Decision{"moderate": DecisionAllow}})
	if !errors.Is(err, authzErr) {
		t.Fatalf("expected wrapped authorizer error, got %v", err)
	}
	if len(store.overrides) != 0 {
		t.Fatalf("failed authorize must not mutate overrides, got %v", store.overrides)
	}
}
