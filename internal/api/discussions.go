package api

import (
	"fmt"
	"net/http"

	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/highlight"
)

// AddDiscussionRequest is the request body for starting or replying to a
// discussion.
type AddDiscussionRequest struct {
	ParentID   string          `json:"parentId"`
	Title      string          `json:"title"`
	Text       string          `json:"text"`
	Highlights []anchor.Anchor `json:"highlights"`
}

// handleListDiscussions handles GET /documents/{slug}/discussions.
func (s *Server) handleListDiscussions(w http.ResponseWriter, r *http.Request) {
	discussions, err := s.store.ListDiscussions(r.Context(), slugOf(r))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, discussions)
}

// handleAddDiscussion handles POST /documents/{slug}/discussions.
func (s *Server) handleAddDiscussion(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	var req AddDiscussionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	highlights := make([]anchor.Anchor, 0, len(req.Highlights))

	for _, a := range req.Highlights {
		if !a.Valid() {
			s.writeError(w, r, fmt.Errorf("%w: highlight %q has no text", errBadRequest, a.ID))

			return
		}

		a.Permanent = false
		highlights = append(highlights, a)
	}

	d, err := s.store.AddDiscussion(r.Context(), slug, highlight.Discussion{
		ParentID:   req.ParentID,
		UserID:     UserIDFromContext(r.Context()),
		Title:      req.Title,
		Text:       req.Text,
		Highlights: highlights,
		CreatedAt:  s.clock.Now().UTC(),
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if s.events != nil {
		s.events.BroadcastDiscussion(slug, d, "")
	}

	s.writeJSON(w, http.StatusCreated, d)
}
