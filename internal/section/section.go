// Package section decides which section of a document a view shows and what
// its neighbors are.
package section

import (
	"cmp"
	"slices"

	"github.com/serroba/annotated-docs/internal/document"
)

// Active describes the section a view resolves to.
type Active struct {
	// Sectioned is false for flat documents, where the remaining section
	// fields are unused.
	Sectioned bool `json:"sectioned"`

	// ID is the requested section id.
	ID string `json:"id"`

	// Index is the position of the section in document order. It is only
	// meaningful when Found is true.
	Index int  `json:"index"`
	Found bool `json:"found"`

	NextID string `json:"nextId"`
	PrevID string `json:"prevId"`

	Content *document.Node `json:"-"`
}

// Entry is one row of a table of contents.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Order int    `json:"order"`
}

// HasSections reports whether src is split into sections. A draft is
// sectioned when it has more than one section; a published version is
// sectioned when its content is stored as a section list, whatever its
// length.
func HasSections(src document.Source) bool {
	if src.IsDraft() {
		return len(src.Content.Sections) > 1
	}

	return src.Content.Sectioned()
}

// Resolve returns the active section of src for the requested id. An
// unknown id falls back to the first section's content with no neighbors.
func Resolve(src document.Source, requested string) Active {
	if !HasSections(src) {
		return Active{Content: flatContent(src.Content)}
	}

	sections := ordered(src.Content.Sections)
	active := Active{Sectioned: true, ID: requested}

	if len(sections) == 0 {
		return active
	}

	active.Content = sections[0].Content

	idx := slices.IndexFunc(sections, func(s document.Section) bool {
		return s.ID == requested
	})
	if idx < 0 {
		return active
	}

	active.Index = idx
	active.Found = true
	active.Content = sections[idx].Content

	if idx+1 < len(sections) {
		active.NextID = sections[idx+1].ID
	}

	if idx > 0 {
		active.PrevID = sections[idx-1].ID
	}

	return active
}

// Table returns the sections of src in document order. Flat documents
// have no table.
func Table(src document.Source) []Entry {
	if !HasSections(src) {
		return nil
	}

	sections := ordered(src.Content.Sections)
	entries := make([]Entry, 0, len(sections))

	for _, s := range sections {
		entries = append(entries, Entry{ID: s.ID, Title: s.Title, Order: s.Order})
	}

	return entries
}

// flatContent returns the content of an unsectioned source. A draft with a
// single section renders that section.
func flatContent(c document.Content) *document.Node {
	if len(c.Sections) > 0 {
		return c.Sections[0].Content
	}

	return c.Root
}

// ordered returns a copy of sections sorted by display order. Sections with
// equal order keep their stored sequence.
func ordered(sections []document.Section) []document.Section {
	out := slices.Clone(sections)
	slices.SortStableFunc(out, func(a, b document.Section) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return out
}
