package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
	"github.com/serroba/annotated-docs/internal/request"
	"github.com/serroba/annotated-docs/internal/section"
	"github.com/serroba/annotated-docs/internal/ws"
)

// BuildAnchorRequest is a selection to turn into an anchor.
type BuildAnchorRequest struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Section string `json:"section"`
	Version string `json:"version"`
	Draft   bool   `json:"draft"`
}

// RecoverRequest asks where anchors sit inside a rendered text.
type RecoverRequest struct {
	Context string          `json:"context"`
	Anchors []anchor.Anchor `json:"anchors"`
}

// RecoverResponse lists one placement per requested anchor.
type RecoverResponse struct {
	Placements []highlight.Placement `json:"placements"`
}

// source picks what a request renders. Without published versions the
// draft is shown.
func source(doc document.Document, draft bool, version string) (document.Source, error) {
	if draft {
		return doc.DraftSource(), nil
	}

	src, err := doc.VersionSource(version)
	if errors.Is(err, document.ErrNoVersions) && version == "" {
		return doc.DraftSource(), nil
	}

	return src, err
}

// buildView resolves the active section of a document and projects its
// highlights. When ready is false the editor cannot extract text yet, so
// no permalink highlight is produced.
func (s *Server) buildView(
	ctx context.Context, slug string, params request.Params, access acl.Access, ready bool,
) (ws.ViewResultPayload, error) {
	doc, err := s.store.LoadDocument(ctx, slug)
	if err != nil {
		return ws.ViewResultPayload{}, err
	}

	src, err := source(doc, params.Draft, params.Version)
	if err != nil {
		return ws.ViewResultPayload{}, err
	}

	discussions, err := s.store.ListDiscussions(ctx, slug)
	if err != nil {
		return ws.ViewResultPayload{}, err
	}

	active := section.Resolve(src, params.SectionID)

	in := highlight.Input{
		Discussions: discussions,
		Source:      src,
		Active:      active,
		Permalink:   params.Permalink(),
	}

	if ready && active.Content != nil {
		in.Text = active.Content
	}

	view := s.projector.Project(in)

	return ws.ViewResultPayload{
		Slug:         slug,
		Version:      src.VersionID,
		ReadOnly:     access.ReadOnly(src.IsDraft()),
		Section:      active,
		Sections:     section.Table(src),
		Highlights:   view.Highlights,
		Placements:   view.Locate(active.Content),
		ActiveThread: highlight.ActiveThread(threads(discussions), params.Thread, nil),
		Ready:        ready,
	}, nil
}

// threads groups discussions by thread number in order of first appearance.
func threads(discussions []highlight.Discussion) [][]highlight.Discussion {
	index := make(map[int]int)

	var out [][]highlight.Discussion

	for _, d := range discussions {
		i, ok := index[d.ThreadNumber]
		if !ok {
			i = len(out)
			index[d.ThreadNumber] = i
			out = append(out, nil)
		}

		out[i] = append(out[i], d)
	}

	return out
}

// handleView handles GET /documents/{slug}/view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	access, err := s.access(r, slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	view, err := s.buildView(r.Context(), slug, request.Parse(r.URL.Query()), access, true)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, view)
}

// handleBuildAnchor handles POST /documents/{slug}/anchors.
func (s *Server) handleBuildAnchor(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	var req BuildAnchorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	doc, err := s.store.LoadDocument(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	src, err := source(doc, req.Draft, req.Version)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	active := section.Resolve(src, req.Section)
	if active.Content == nil {
		s.writeError(w, r, fmt.Errorf("%w: section has no content", errBadRequest))

		return
	}

	a := s.codec.Build(active.Content, highlight.ScopeFor(src, active), req.From, req.To)
	if !a.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: selection %d-%d is empty or out of range", errBadRequest, req.From, req.To))

		return
	}

	s.writeJSON(w, http.StatusCreated, a)
}

// handleRecoverAnchors handles POST /anchors/recover.
func (s *Server) handleRecoverAnchors(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	view := highlight.View{Highlights: make([]highlight.Highlight, 0, len(req.Anchors))}
	for _, a := range req.Anchors {
		view.Highlights = append(view.Highlights, highlight.Highlight{Anchor: a})
	}

	s.writeJSON(w, http.StatusOK, RecoverResponse{Placements: view.LocateText(req.Context)})
}
