package roles

// Role is a forum role: a named bundle of default capability values.
type Role struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	// Label is the humanized display form of Name.
	Label string `json:"label"`
}

// RoleMap resolves a platform-level role to a forum role. Unmapped platform
// roles fall back to the configured default forum role.
type RoleMap struct {
	byPlatform map[string]string
	fallback   string
}

// NewRoleMap builds a RoleMap from configuration.
func NewRoleMap(entries map[string]string, defaultForumRole string) RoleMap {
	byPlatform := make(map[string]string, len(entries))
	for platform, forum := range entries {
		if platform == "" || forum == "" {
			continue
		}
		byPlatform[platform] = forum
	}
	return RoleMap{byPlatform: byPlatform, fallback: defaultForumRole}
}

// ForumRoleFor maps a platform role to its forum role.
func (m RoleMap) ForumRoleFor(platformRole string) string {
	if forum, ok := m.byPlatform[platformRole]; ok {
		return forum
	}
	return m.fallback
}

// DefaultForumRole returns the configured fallback role.
func (m RoleMap) DefaultForumRole() string {
	return m.fallback
}
