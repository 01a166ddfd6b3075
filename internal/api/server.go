// Package api serves documents, discussions, and highlight views over HTTP
// and streams collaboration status over websockets.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/clock"
	"github.com/serroba/annotated-docs/internal/collab"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/highlight"
	"github.com/serroba/annotated-docs/internal/storage"
	"github.com/serroba/annotated-docs/internal/ws"
)

// Server handles HTTP requests for the annotation API.
type Server struct {
	manager    *collab.Manager
	store      storage.Store
	permStore  acl.Store
	checker    *acl.Checker
	hub        *ws.Hub
	events     ws.Broadcaster
	upgrader   websocket.Upgrader
	codec      anchor.Codec
	projector  *highlight.Projector
	clock      clock.Clock
	readyLimit time.Duration
	logger     *slog.Logger
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Manager   *collab.Manager
	Store     storage.Store
	PermStore acl.Store
	Hub       *ws.Hub

	// Events fans out document events. Defaults to Hub; set it to a
	// ws.Relay when several servers share viewers.
	Events ws.Broadcaster

	// AdminRole is the role site administrators hold on every document.
	AdminRole acl.Role

	// Codec builds anchors; its zero value generates random ids.
	Codec anchor.Codec

	Clock      clock.Clock
	ReadyLimit time.Duration
	Logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	limit := cfg.ReadyLimit
	if limit <= 0 {
		limit = collab.DefaultReadyLimit
	}

	permStore := cfg.PermStore
	if permStore == nil {
		permStore = acl.NewMemoryStore()
	}

	events := cfg.Events
	if events == nil && cfg.Hub != nil {
		events = cfg.Hub
	}

	return &Server{
		manager:    cfg.Manager,
		store:      cfg.Store,
		permStore:  permStore,
		checker:    acl.NewChecker(permStore, cfg.AdminRole),
		hub:        cfg.Hub,
		events:     events,
		codec:      cfg.Codec,
		projector:  highlight.NewProjector(cfg.Codec),
		clock:      c,
		readyLimit: limit,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for demo
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Documents
	r.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	r.HandleFunc("/documents/{slug}", s.handleGetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{slug}", s.handleDeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/documents/{slug}/draft", s.handleSaveDraft).Methods(http.MethodPut)
	r.HandleFunc("/documents/{slug}/versions", s.handlePublishVersion).Methods(http.MethodPost)

	// Discussions
	r.HandleFunc("/documents/{slug}/discussions", s.handleListDiscussions).Methods(http.MethodGet)
	r.HandleFunc("/documents/{slug}/discussions", s.handleAddDiscussion).Methods(http.MethodPost)

	// Views and anchors
	r.HandleFunc("/documents/{slug}/view", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/documents/{slug}/anchors", s.handleBuildAnchor).Methods(http.MethodPost)
	r.HandleFunc("/anchors/recover", s.handleRecoverAnchors).Methods(http.MethodPost)

	// WebSocket endpoint
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	return s.logMiddleware(s.authMiddleware(r))
}

// slugOf returns the routed document slug.
func slugOf(r *http.Request) string {
	return mux.Vars(r)["slug"]
}

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound),
		errors.Is(err, storage.ErrParentNotFound),
		errors.Is(err, document.ErrVersionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrDocumentExists),
		errors.Is(err, storage.ErrVersionExists),
		errors.Is(err, storage.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, acl.ErrAccessDenied):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, errBadRequest),
		errors.Is(err, document.ErrMissingSlug),
		errors.Is(err, document.ErrDuplicateImplicitSection):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// decodeJSON decodes a request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}

	return nil
}

// access resolves the caller's access to a document.
func (s *Server) access(r *http.Request, slug string) (acl.Access, error) {
	return s.checker.Access(slug, UserIDFromContext(r.Context()), IsAdminFromContext(r.Context()))
}
