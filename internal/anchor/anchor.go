// Package anchor binds annotations to ranges of document text and relocates
// them when the text they were captured against has drifted.
package anchor

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// contextLength is the number of characters kept on each side of the
	// anchored text.
	contextLength = 10

	// boundarySize is the reserved trailing boundary at the end of every
	// document, which extraction never reaches into.
	boundarySize = 2

	previewLength = 30
)

// TextSource is the narrow extraction interface the editing layer exposes.
type TextSource interface {
	// TextBetween returns the text between two positions.
	TextBetween(from, to int) string

	// NodeSize returns the total size of the document, including its
	// trailing boundary.
	NodeSize() int
}

// Anchor binds an annotation to a range of text.
type Anchor struct {
	ID        string  `json:"id"`
	Exact     string  `json:"exact"`
	Prefix    string  `json:"prefix"`
	Suffix    string  `json:"suffix"`
	From      int     `json:"from"`
	To        int     `json:"to"`
	Version   string  `json:"version,omitempty"`
	Section   *string `json:"section,omitempty"`
	Permanent bool    `json:"permanent,omitempty"`
}

// Valid reports whether the anchor covers any text. Build returns an
// invalid placeholder for out-of-range requests.
func (a Anchor) Valid() bool {
	return a.Exact != ""
}

// Scope returns the version and section the anchor was captured against.
func (a Anchor) Scope() Scope {
	return NewScope(a.Version, a.Section)
}

// Preview returns a short quotation of the anchored text.
func (a Anchor) Preview() string {
	if a.Exact == "" {
		return "No highlight"
	}

	runes := []rune(a.Exact)
	if len(runes) > previewLength {
		return `"` + string(runes[:previewLength-1]) + `..."`
	}

	return `"` + a.Exact + `"`
}

// Codec builds anchors. NewID generates overlay identifiers; when nil a
// random token is used.
type Codec struct {
	NewID func() string
}

// Build captures the range [from, to) of src as an anchor in scope. When the
// range is negative, reversed, or exceeds the document size it returns an
// empty placeholder; callers check Valid before use.
func (c Codec) Build(src TextSource, scope Scope, from, to int) Anchor {
	if src == nil {
		return Anchor{}
	}

	size := src.NodeSize()
	if from < 0 || to < from || from > size || to > size {
		return Anchor{}
	}

	end := max(size-boundarySize, 0)

	a := Anchor{
		ID:     c.newID(),
		Exact:  src.TextBetween(from, to),
		Prefix: src.TextBetween(max(0, from-contextLength), from),
		Suffix: src.TextBetween(min(end, to), min(end, to+contextLength)),
		From:   from,
		To:     to,
	}

	scope.apply(&a)

	return a
}

func (c Codec) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}

	return NewID()
}

// NewID returns an 8-character random token prefixed with a letter so it is
// safe to use as a DOM identifier.
func NewID() string {
	return "h" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
