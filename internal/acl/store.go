package acl

import "errors"

// Common errors.
var (
	ErrPermissionNotFound = errors.New("permission not found")
	ErrAccessDenied       = errors.New("access denied")
)

// Store persists document permissions.
type Store interface {
	// Grant gives a user a role on a document, replacing any previous one.
	Grant(slug, userID string, role Role) error

	// Revoke removes a user's permission on a document.
	// Returns ErrPermissionNotFound if no permission exists.
	Revoke(slug, userID string) error

	// GetRole returns the user's role for a document.
	// Returns ErrPermissionNotFound if no permission exists.
	GetRole(slug, userID string) (Role, error)

	// ListPermissions returns all permissions for a document.
	ListPermissions(slug string) ([]Permission, error)

	// Forget drops every permission on a document.
	Forget(slug string) error
}
