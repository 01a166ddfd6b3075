// Package highlight derives the set of highlights a view renders from the
// discussions attached to a document.
package highlight

import (
	"time"

	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/section"
)

// Discussion is one entry of a document's flat discussion list.
type Discussion struct {
	ID           string          `json:"id"`
	ThreadNumber int             `json:"threadNumber"`
	ParentID     string          `json:"parentId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	Title        string          `json:"title,omitempty"`
	Text         string          `json:"text,omitempty"`
	IsArchived   bool            `json:"isArchived"`
	Highlights   []anchor.Anchor `json:"highlights,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Highlight is an anchor tied to the thread of the discussion it came from.
type Highlight struct {
	anchor.Anchor

	ThreadNumber int  `json:"threadNumber"`
	IsArchived   bool `json:"isArchived,omitempty"`
}

// Permalink is a text range requested from outside, e.g. by a shared link.
type Permalink struct {
	From    int
	To      int
	Version string
}

// View is the ordered highlight set for one (version, section) scope.
type View struct {
	scope      anchor.Scope
	Highlights []Highlight
}

// Scope returns the scope the view was projected for.
func (v View) Scope() anchor.Scope {
	return v.scope
}

// Permanent returns the synthesized permalink highlight, if any.
func (v View) Permanent() (Highlight, bool) {
	for _, h := range v.Highlights {
		if h.Permanent {
			return h, true
		}
	}

	return Highlight{}, false
}

// Input is everything one projection needs.
type Input struct {
	Discussions []Discussion
	Source      document.Source
	Active      section.Active

	// Text extracts text from the active content. A nil Text means the
	// editor is not ready and no permalink highlight can be built.
	Text anchor.TextSource

	Permalink *Permalink
}

// ScopeFor returns the scope of the active section of src.
func ScopeFor(src document.Source, active section.Active) anchor.Scope {
	scope := anchor.NewScope(src.VersionID, nil)
	if active.Sectioned {
		scope = scope.InSection(active.ID)
	}

	return scope
}

// Projector turns discussions into view highlights.
type Projector struct {
	codec anchor.Codec
}

// NewProjector creates a projector that builds permalink anchors with codec.
func NewProjector(codec anchor.Codec) *Projector {
	return &Projector{codec: codec}
}

// Project filters out archived discussions, flattens their highlights in
// discussion order, keeps those in the active section, and appends at most
// one permalink highlight built against the active section.
func (p *Projector) Project(in Input) View {
	scope := ScopeFor(in.Source, in.Active)
	view := View{scope: scope, Highlights: []Highlight{}}

	for _, d := range in.Discussions {
		if d.IsArchived || len(d.Highlights) == 0 {
			continue
		}

		for _, a := range d.Highlights {
			// Permalink anchors are never persisted; a stored one is stale.
			if a.Permanent || !scope.SameSection(a) {
				continue
			}

			view.Highlights = append(view.Highlights, Highlight{
				Anchor:       a,
				ThreadNumber: d.ThreadNumber,
			})
		}
	}

	if h, ok := p.permalink(in, scope); ok {
		view.Highlights = append(view.Highlights, h)
	}

	return view
}

func (p *Projector) permalink(in Input, scope anchor.Scope) (Highlight, bool) {
	if in.Permalink == nil || in.Text == nil {
		return Highlight{}, false
	}

	if !in.Source.IsDraft() && in.Permalink.Version == "" {
		return Highlight{}, false
	}

	a := p.codec.Build(in.Text, scope, in.Permalink.From, in.Permalink.To)
	if !a.Valid() {
		return Highlight{}, false
	}

	a.Permanent = true

	return Highlight{Anchor: a}, true
}

// ActiveThread returns the thread named by the URL thread number or the
// user's selection. When both match different threads the later thread in
// the list wins. Threads are non-empty groups of discussions sharing a
// thread number.
func ActiveThread(threads [][]Discussion, fromURL, selected *int) []Discussion {
	var active []Discussion

	for _, thread := range threads {
		if len(thread) == 0 {
			continue
		}

		n := thread[0].ThreadNumber
		if (fromURL != nil && *fromURL == n) || (selected != nil && *selected == n) {
			active = thread
		}
	}

	return active
}

// Placement is where a highlight sits inside a context string.
type Placement struct {
	ID     string       `json:"id"`
	Range  anchor.Range `json:"range"`
	Placed bool         `json:"placed"`
}

// Locate recovers the position of every highlight in src, the content the
// anchors were built against. Highlights that cannot be placed
// unambiguously are reported unplaced rather than guessed.
func (v View) Locate(src anchor.PositionSource) []Placement {
	return v.place(func(a anchor.Anchor) (anchor.Range, bool) {
		return anchor.Locate(a, src)
	})
}

// LocateText is Locate for anchors whose offsets index the plain string ctx.
func (v View) LocateText(ctx string) []Placement {
	return v.place(func(a anchor.Anchor) (anchor.Range, bool) {
		return anchor.RecoverOffsets(a, ctx)
	})
}

func (v View) place(find func(anchor.Anchor) (anchor.Range, bool)) []Placement {
	placements := make([]Placement, 0, len(v.Highlights))

	for _, h := range v.Highlights {
		r, ok := find(h.Anchor)
		placements = append(placements, Placement{ID: h.ID, Range: r, Placed: ok})
	}

	return placements
}
