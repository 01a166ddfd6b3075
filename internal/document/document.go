package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors.
var (
	ErrMissingSlug              = errors.New("document slug is required")
	ErrDuplicateImplicitSection = errors.New("more than one section has an empty id")
	ErrNoVersions               = errors.New("document has no published versions")
	ErrVersionNotFound          = errors.New("version not found")
)

// Section is a named, ordered sub-division of a document.
// An empty ID marks the implicit first section.
type Section struct {
	ID      string `json:"id"`
	Order   int    `json:"order"`
	Title   string `json:"title,omitempty"`
	Content *Node  `json:"content,omitempty"`
}

// Content is either a single content tree or an ordered list of sections.
// Which one is a property of the container: a list holding one section is
// still sectioned.
type Content struct {
	Root     *Node
	Sections []Section
}

// Flat returns unsectioned content.
func Flat(root *Node) Content {
	return Content{Root: root}
}

// List returns sectioned content.
func List(sections ...Section) Content {
	if sections == nil {
		sections = []Section{}
	}

	return Content{Sections: sections}
}

// Sectioned reports whether the content is stored as a list of sections.
func (c Content) Sectioned() bool {
	return c.Sections != nil
}

// MarshalJSON encodes sectioned content as an array and flat content as
// a single node.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Sectioned() {
		return json.Marshal(c.Sections)
	}

	return json.Marshal(c.Root)
}

// UnmarshalJSON decodes content by shape: arrays become sections,
// objects become a root node.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = Content{}

		return nil
	case trimmed[0] == '[':
		sections := []Section{}
		if err := json.Unmarshal(trimmed, &sections); err != nil {
			return fmt.Errorf("decode sections: %w", err)
		}

		*c = Content{Sections: sections}

		return nil
	default:
		var root Node
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return fmt.Errorf("decode content: %w", err)
		}

		*c = Content{Root: &root}

		return nil
	}
}

func (c Content) validate() error {
	implicit := 0

	for _, s := range c.Sections {
		if s.ID == "" {
			implicit++
		}
	}

	if implicit > 1 {
		return ErrDuplicateImplicitSection
	}

	return nil
}

// Version is an immutable published snapshot.
type Version struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   Content   `json:"content"`
}

// Document is a collaboratively edited document: a live draft plus the
// versions published from it, oldest first.
type Document struct {
	Slug             string     `json:"slug"`
	Title            string     `json:"title"`
	Draft            Content    `json:"draft"`
	Versions         []Version  `json:"versions,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	FirstPublishedAt *time.Time `json:"firstPublishedAt,omitempty"`
}

// Validate checks structural invariants.
func (d Document) Validate() error {
	if d.Slug == "" {
		return ErrMissingSlug
	}

	if err := d.Draft.validate(); err != nil {
		return fmt.Errorf("draft: %w", err)
	}

	for _, v := range d.Versions {
		if err := v.Content.validate(); err != nil {
			return fmt.Errorf("version %s: %w", v.ID, err)
		}
	}

	return nil
}

// Source is what one view renders: the live draft or a published version.
type Source struct {
	VersionID string
	Content   Content
}

// IsDraft reports whether the source is the live draft.
func (s Source) IsDraft() bool {
	return s.VersionID == ""
}

// DraftSource returns the live draft.
func (d Document) DraftSource() Source {
	return Source{Content: d.Draft}
}

// VersionSource returns the published version with the given id, or the
// latest version when id is empty.
func (d Document) VersionSource(id string) (Source, error) {
	if len(d.Versions) == 0 {
		return Source{}, ErrNoVersions
	}

	if id == "" {
		latest := d.Versions[len(d.Versions)-1]

		return Source{VersionID: latest.ID, Content: latest.Content}, nil
	}

	for _, v := range d.Versions {
		if v.ID == id {
			return Source{VersionID: v.ID, Content: v.Content}, nil
		}
	}

	return Source{}, ErrVersionNotFound
}
