package shared

// Platform permissions gating the admin surface.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"

	PermCapabilitiesView = "capabilities.view"
	PermCapabilitiesEdit = "capabilities.edit"
)

// AdminScopes lists all permissions used by the admin surface.
func AdminScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermCapabilitiesView,
		PermCapabilitiesEdit,
	}
}
