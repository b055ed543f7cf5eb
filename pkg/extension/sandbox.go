package extension

// PermissionSet holds the capability tokens granted to one extension.
type PermissionSet struct {
	id          string
	permissions map[Permission]bool
}

// NewPermissionSet creates a permission set for an extension id.
func NewPermissionSet(id string, permissions []Permission) *PermissionSet {
	permMap := make(map[Permission]bool, len(permissions))
	for _, perm := range permissions {
		permMap[perm] = true
	}
	return &PermissionSet{id: id, permissions: permMap}
}

// Has reports whether the permission was granted.
func (s *PermissionSet) Has(permission Permission) bool {
	return s.permissions[permission]
}

// Require returns a PermissionError if the permission was not granted.
func (s *PermissionSet) Require(permission Permission) error {
	if !s.Has(permission) {
		return &PermissionError{ID: s.id, Permission: permission}
	}
	return nil
}

// List returns all granted permissions.
func (s *PermissionSet) List() []Permission {
	perms := make([]Permission, 0, len(s.permissions))
	for perm := range s.permissions {
		perms = append(perms, perm)
	}
	return perms
}
