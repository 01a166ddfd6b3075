package acl

import (
	"sort"
	"sync"
)

type permissionKey struct {
	slug   string
	userID string
}

// MemoryStore keeps permissions in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	permissions map[permissionKey]Role
}

// NewMemoryStore creates an empty permission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[permissionKey]Role),
	}
}

// Grant gives a user a role on a document.
func (m *MemoryStore) Grant(slug, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.permissions[permissionKey{slug: slug, userID: userID}] = role

	return nil
}

// Revoke removes a user's permission on a document.
func (m *MemoryStore) Revoke(slug, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := permissionKey{slug: slug, userID: userID}

	if _, exists := m.permissions[key]; !exists {
		return ErrPermissionNotFound
	}

	delete(m.permissions, key)

	return nil
}

// GetRole returns the user's role for a document.
func (m *MemoryStore) GetRole(slug, userID string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, exists := m.permissions[permissionKey{slug: slug, userID: userID}]
	if !exists {
		return 0, ErrPermissionNotFound
	}

	return role, nil
}

// ListPermissions returns all permissions for a document ordered by user.
func (m *MemoryStore) ListPermissions(slug string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Permission

	for key, role := range m.permissions {
		if key.slug == slug {
			result = append(result, Permission{Slug: key.slug, UserID: key.userID, Role: role})
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })

	return result, nil
}

// Forget drops every permission on a document.
func (m *MemoryStore) Forget(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.permissions {
		if key.slug == slug {
			delete(m.permissions, key)
		}
	}

	return nil
}

var _ Store = (*MemoryStore)(nil)
