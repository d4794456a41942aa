package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/parleyhq/parley/internal/shared"
)

type stubRepo struct {
	roles    []Role
	defaults map[string]map[string]bool
}

func (s stubRepo) ListRoles(_ context.Context) ([]Role, error) {
	return s.roles, nil
}

func (s stubRepo) DefaultCapabilities(_ context.Context, role string) (map[string]bool, error) {
	caps, ok := s.defaults[role]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return caps, nil
}

func TestRoleMapFallback(t *testing.T) {
	m := NewRoleMap(map[string]string{"staff": "moderator", "": "ignored", "ghost": ""}, "participant")

	if got := m.ForumRoleFor("staff"); got != "moderator" {
		t.Fatalf("expected moderator, got %q", got)
	}
	if got := m.ForumRoleFor("member"); got != "participant" {
		t.Fatalf("expected fallback participant, got %q", got)
	}
	if got := m.ForumRoleFor("ghost"); got != "participant" {
		t.Fatalf("empty mapping entries must be skipped, got %q", got)
	}
	if got := m.DefaultForumRole(); got != "participant" {
		t.Fatalf("expected default participant, got %q", got)
	}
}

func TestListRolesAddsLabels(t *testing.T) {
	repo := stubRepo{roles: []Role{
		{Slug: "key_master", Name: "key_master"},
		{Slug: "moderator", Name: "moderator"},
	}}
	svc := NewService(repo, NewRoleMap(nil, "participant"))

	roles, err := svc.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if roles[0].Label != "Key Master" {
		t.Fatalf("expected humanized label, got %q", roles[0].Label)
	}
	if roles[1].Label != "Moderator" {
		t.Fatalf("expected humanized label, got %q", roles[1].Label)
	}
}

func TestDefaultCapabilitiesUnknownRole(t *testing.T) {
	svc := NewService(stubRepo{defaults: map[string]map[string]bool{}}, NewRoleMap(nil, "participant"))

	_, err := svc.DefaultCapabilities(context.Background(), "nope")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestForumRoleForUsesConfiguredMap(t *testing.T) {
	svc := NewService(stubRepo{}, NewRoleMap(map[string]string{"admin": "key_master"}, "participant"))

	if got := svc.ForumRoleFor("admin"); got != "key_master" {
		t.Fatalf("expected key_master, got %q", got)
	}
	if got := svc.ForumRoleFor("unknown"); got != "participant" {
		t.Fatalf("expected participant fallback, got %q", got)
	}
}
