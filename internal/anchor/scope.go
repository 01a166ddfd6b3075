package anchor

// Scope identifies the (version-or-draft, section) pair an anchor is
// meaningful against. Anchors from different scopes may only be related
// through Scope methods; offsets are never compared across scopes.
type Scope struct {
	version   string
	section   string
	sectioned bool
}

// NewScope returns the scope for a version (empty for the live draft) and
// an optional section id.
func NewScope(version string, section *string) Scope {
	s := Scope{version: version}
	if section != nil {
		s.section = *section
		s.sectioned = true
	}

	return s
}

// DraftScope returns the scope of the live draft.
func DraftScope() Scope {
	return Scope{}
}

// InSection returns a copy of s bound to the section id.
func (s Scope) InSection(id string) Scope {
	s.section = id
	s.sectioned = true

	return s
}

// IsDraft reports whether the scope is the live draft.
func (s Scope) IsDraft() bool {
	return s.version == ""
}

// Version returns the version id, empty for the draft.
func (s Scope) Version() string {
	return s.version
}

// Section returns the section id and whether the scope is sectioned.
func (s Scope) Section() (string, bool) {
	return s.section, s.sectioned
}

// Contains reports whether a was captured against exactly this scope.
func (s Scope) Contains(a Anchor) bool {
	return a.Scope() == s
}

// SameSection reports whether a belongs to this scope's section. Unsectioned
// scopes contain every section. Version differences are left to offset
// recovery.
func (s Scope) SameSection(a Anchor) bool {
	if !s.sectioned {
		return true
	}

	return a.Section != nil && *a.Section == s.section
}

func (s Scope) apply(a *Anchor) {
	a.Version = s.version
	a.Section = nil

	if s.sectioned {
		section := s.section
		a.Section = &section
	}
}
