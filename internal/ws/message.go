package ws

import (
	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/highlight"
	"github.com/serroba/annotated-docs/internal/section"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeStatus MessageType = "status" // Raw collaboration transport status
	MessageTypeReady  MessageType = "ready"  // Editor finished loading
	MessageTypeView   MessageType = "view"   // Client navigated; recompute the view

	// Server to Client messages.
	MessageTypeDisplayStatus MessageType = "display_status" // Debounced status to show
	MessageTypeViewResult    MessageType = "view_result"    // Active section and highlights
	MessageTypeDiscussion    MessageType = "discussion"     // A discussion was added
	MessageTypeError         MessageType = "error"          // Server reports an error
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// StatusPayload carries a collaboration status, raw or displayed.
type StatusPayload struct {
	Status string `json:"status"`
}

// ViewPayload carries the view parameters of the client's current URL.
type ViewPayload struct {
	Params map[string]string `json:"params"`
}

// ViewResultPayload is the server's answer to a view request.
type ViewResultPayload struct {
	Slug         string                 `json:"slug"`
	Version      string                 `json:"version,omitempty"`
	ReadOnly     bool                   `json:"readOnly"`
	Section      section.Active         `json:"section"`
	Sections     []section.Entry        `json:"sections,omitempty"`
	Highlights   []highlight.Highlight  `json:"highlights"`
	Placements   []highlight.Placement  `json:"placements,omitempty"`
	ActiveThread []highlight.Discussion `json:"activeThread,omitempty"`
	Ready        bool                   `json:"ready"`
}

// Scope returns the version and section the view was built for.
func (p ViewResultPayload) Scope() anchor.Scope {
	scope := anchor.NewScope(p.Version, nil)
	if p.Section.Sectioned {
		scope = scope.InSection(p.Section.ID)
	}

	return scope
}

// DiscussionPayload announces a new discussion on a document.
type DiscussionPayload struct {
	Slug       string               `json:"slug"`
	Discussion highlight.Discussion `json:"discussion"`

	// InView is set when one of the discussion's highlights belongs to the
	// section the viewer is looking at.
	InView bool `json:"inView"`
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInternalError  = "internal_error"
)
