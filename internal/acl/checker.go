package acl

import "errors"

// Action is an operation a user wants to perform on a document.
type Action int

const (
	ActionView Action = iota
	ActionEdit
	ActionManage
	ActionDelete
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionEdit:
		return "edit"
	case ActionManage:
		return "manage"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Access is everything the view needs to decide what a user may do:
// the user's own role on the document, the role granted to site
// administrators, and whether the user is one.
type Access struct {
	Role      Role
	Granted   bool
	AdminRole Role
	Admin     bool
}

// CanManage reports whether the user manages the document, either
// directly or as a site administrator on a document administrators manage.
func (a Access) CanManage() bool {
	if a.Granted && a.Role.CanManage() {
		return true
	}

	return a.Admin && a.AdminRole.CanManage()
}

// CanEdit reports whether the user may change the draft.
func (a Access) CanEdit() bool {
	return a.CanManage() || (a.Granted && a.Role.CanEdit())
}

// CanDelete reports whether the user may delete the document. Managers may
// delete until the first publication; administrators always may.
func (a Access) CanDelete(published bool) bool {
	if !a.CanManage() {
		return false
	}

	return !published || a.Admin
}

// ReadOnly reports whether an editor session must be read-only. Only the
// draft is editable, and only by editors and managers.
func (a Access) ReadOnly(draft bool) bool {
	return !draft || !a.CanEdit()
}

// Checker validates user permissions for document operations.
type Checker struct {
	store     Store
	adminRole Role
}

// NewChecker creates a permission checker. Site administrators receive
// adminRole on every document.
func NewChecker(store Store, adminRole Role) *Checker {
	return &Checker{store: store, adminRole: adminRole}
}

// Access resolves a user's access to a document.
func (c *Checker) Access(slug, userID string, admin bool) (Access, error) {
	access := Access{AdminRole: c.adminRole, Admin: admin}

	role, err := c.store.GetRole(slug, userID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return access, nil
		}

		return Access{}, err
	}

	access.Role = role
	access.Granted = true

	return access, nil
}

// CanPerform checks whether a user can perform an action on a document.
// Anyone may view; deletion is checked against an unpublished document.
func (c *Checker) CanPerform(slug, userID string, admin bool, action Action) (bool, error) {
	access, err := c.Access(slug, userID, admin)
	if err != nil {
		return false, err
	}

	switch action {
	case ActionView:
		return true, nil
	case ActionEdit:
		return access.CanEdit(), nil
	case ActionManage:
		return access.CanManage(), nil
	case ActionDelete:
		return access.CanDelete(false), nil
	default:
		return false, nil
	}
}

// RequirePermission checks permission and returns ErrAccessDenied if denied.
func (c *Checker) RequirePermission(slug, userID string, admin bool, action Action) error {
	allowed, err := c.CanPerform(slug, userID, admin, action)
	if err != nil {
		return err
	}

	if !allowed {
		return ErrAccessDenied
	}

	return nil
}
