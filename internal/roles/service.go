package roles

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RepositoryPort defines data access methods for forum roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	DefaultCapabilities(ctx context.Context, role string) (map[string]bool, error)
}

// Service handles forum role lookups and platform role mapping.
type Service struct {
	repo    RepositoryPort
	roleMap RoleMap
	caser   cases.Caser
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roleMap RoleMap) *Service {
	return &Service{repo: repo, roleMap: roleMap, caser: cases.Title(language.English)}
}

// ListRoles returns all forum roles with display labels.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Label = s.label(roles[i].Name)
	}
	return roles, nil
}

// DefaultCapabilities resolves a forum role to its default capability map.
func (s *Service) DefaultCapabilities(ctx context.Context, role string) (map[string]bool, error) {
	return s.repo.DefaultCapabilities(ctx, role)
}

// ForumRoleFor maps a platform role through the configured role map.
func (s *Service) ForumRoleFor(platformRole string) string {
	return s.roleMap.ForumRoleFor(platformRole)
}

func (s *Service) label(name string) string {
	return s.caser.String(strings.ReplaceAll(name, "_", " "))
}
