package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/section"
	"github.com/serroba/annotated-docs/internal/ws"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Slug  string           `json:"slug"`
	Title string           `json:"title"`
	Draft document.Content `json:"draft"`
}

// AccessResponse tells the client which controls to show.
type AccessResponse struct {
	Role      string `json:"role,omitempty"`
	CanEdit   bool   `json:"canEdit"`
	CanManage bool   `json:"canManage"`
	CanDelete bool   `json:"canDelete"`
}

// DocumentResponse is the response body for getting a document.
type DocumentResponse struct {
	document.Document

	Access   AccessResponse  `json:"access"`
	Sections []section.Entry `json:"sections"`
	Viewers  int             `json:"viewers"`

	// SectionViewers counts the live viewers looking at each section.
	SectionViewers map[string]int `json:"sectionViewers,omitempty"`
}

// VersionResponse describes a newly published version.
type VersionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleCreateDocument handles POST /documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	draft := req.Draft
	if draft.Root == nil && !draft.Sectioned() {
		draft = document.Flat(document.FromParagraphs())
	}

	doc := document.Document{
		Slug:      req.Slug,
		Title:     req.Title,
		Draft:     draft,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		s.writeError(w, r, err)

		return
	}

	userID := UserIDFromContext(r.Context())
	if err := s.permStore.Grant(doc.Slug, userID, acl.Manager); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.logger.Info("document created", "slug", doc.Slug, "user", userID)

	s.writeJSON(w, http.StatusCreated, doc)
}

// handleGetDocument handles GET /documents/{slug}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	doc, err := s.store.LoadDocument(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	access, err := s.access(r, slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	resp := DocumentResponse{
		Document: doc,
		Access:   accessResponse(access, doc),
		Sections: section.Table(doc.DraftSource()),
		Viewers:  s.manager.DocumentSessions(slug),
	}

	if s.hub != nil {
		resp.SectionViewers = sectionViewers(s.hub.Viewers(slug))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func sectionViewers(viewers []ws.Viewer) map[string]int {
	var counts map[string]int

	for _, v := range viewers {
		id, sectioned := v.Scope.Section()
		if !v.Focused || !sectioned {
			continue
		}

		if counts == nil {
			counts = make(map[string]int)
		}

		counts[id]++
	}

	return counts
}

func accessResponse(access acl.Access, doc document.Document) AccessResponse {
	resp := AccessResponse{
		CanEdit:   access.CanEdit(),
		CanManage: access.CanManage(),
		CanDelete: access.CanDelete(doc.FirstPublishedAt != nil),
	}

	if access.Granted {
		resp.Role = access.Role.String()
	}

	return resp
}

// handleDeleteDocument handles DELETE /documents/{slug}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	doc, err := s.store.LoadDocument(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	access, err := s.access(r, slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if !access.CanDelete(doc.FirstPublishedAt != nil) {
		s.writeError(w, r, acl.ErrAccessDenied)

		return
	}

	if err := s.store.DeleteDocument(r.Context(), slug); err != nil {
		s.writeError(w, r, err)

		return
	}

	if err := s.permStore.Forget(slug); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.logger.Info("document deleted", "slug", slug, "user", UserIDFromContext(r.Context()))

	w.WriteHeader(http.StatusNoContent)
}

// handleSaveDraft handles PUT /documents/{slug}/draft.
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	if err := s.require(r, slug, acl.ActionEdit); err != nil {
		s.writeError(w, r, err)

		return
	}

	var draft document.Content
	if err := decodeJSON(r, &draft); err != nil {
		s.writeError(w, r, err)

		return
	}

	if draft.Root == nil && !draft.Sectioned() {
		s.writeError(w, r, fmt.Errorf("%w: draft content is required", errBadRequest))

		return
	}

	if err := s.store.SaveDraft(r.Context(), slug, draft); err != nil {
		s.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handlePublishVersion handles POST /documents/{slug}/versions. The current
// draft becomes a new immutable version.
func (s *Server) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(r)

	if err := s.require(r, slug, acl.ActionManage); err != nil {
		s.writeError(w, r, err)

		return
	}

	doc, err := s.store.LoadDocument(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	version := document.Version{
		ID:        uuid.NewString(),
		CreatedAt: s.clock.Now().UTC(),
		Content:   doc.Draft,
	}

	if _, err := s.store.PublishVersion(r.Context(), slug, version); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.logger.Info("version published", "slug", slug, "version", version.ID)

	s.writeJSON(w, http.StatusCreated, VersionResponse{ID: version.ID, CreatedAt: version.CreatedAt})
}

// require checks that the caller may perform action on a document.
func (s *Server) require(r *http.Request, slug string, action acl.Action) error {
	if _, err := s.store.LoadDocument(r.Context(), slug); err != nil {
		return err
	}

	return s.checker.RequirePermission(slug, UserIDFromContext(r.Context()), IsAdminFromContext(r.Context()), action)
}
