package acl

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a permission string names no role.
var ErrUnknownRole = errors.New("unknown role")

// Role represents a user's permission level on a document.
type Role int

const (
	// Viewer can read published versions and discussions.
	Viewer Role = iota
	// Editor can also edit the draft.
	Editor
	// Manager can also publish, grant access and delete.
	Manager
)

// String returns the permission string of the role.
func (r Role) String() string {
	switch r {
	case Viewer:
		return "view"
	case Editor:
		return "edit"
	case Manager:
		return "manage"
	default:
		return "unknown"
	}
}

// ParseRole converts a permission string into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "view":
		return Viewer, nil
	case "edit":
		return Editor, nil
	case "manage":
		return Manager, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// CanEdit reports whether the role may change the draft.
func (r Role) CanEdit() bool {
	return r >= Editor
}

// CanManage reports whether the role may publish and administer.
func (r Role) CanManage() bool {
	return r >= Manager
}

// Permission is a user's role on a specific document.
type Permission struct {
	Slug   string
	UserID string
	Role   Role
}
