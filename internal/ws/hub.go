package ws

import (
	"slices"
	"strings"
	"sync"

	"github.com/serroba/annotated-docs/internal/anchor"
	"github.com/serroba/annotated-docs/internal/highlight"
)

// Hub tracks who views which document, and which section of it, and fans
// out document events to them.
type Hub struct {
	mu sync.RWMutex

	// viewers maps client ID to viewer
	viewers map[string]*viewer

	// documents maps document slug to the IDs of its viewers
	documents map[string]map[string]struct{}
}

type viewer struct {
	client  *Client
	scope   anchor.Scope
	focused bool
}

// Viewer describes one client viewing a document.
type Viewer struct {
	ClientID string
	UserID   string

	// Scope is the version and section of the last view sent to the
	// client. It is only set when Focused is true.
	Scope   anchor.Scope
	Focused bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		viewers:   make(map[string]*viewer),
		documents: make(map[string]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.viewers[client.ID] = &viewer{client: client}
}

// Unregister removes a client from the hub and its document.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client.ID, client.Slug())
	delete(h.viewers, client.ID)
}

// Subscribe moves a client onto a document. Its focus is cleared until the
// next view is sent.
func (h *Hub) Subscribe(client *Client, slug string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old := client.Slug(); old != slug {
		h.leave(client.ID, old)
	}

	if h.documents[slug] == nil {
		h.documents[slug] = make(map[string]struct{})
	}

	h.documents[slug][client.ID] = struct{}{}
	client.SetSlug(slug)

	if v, ok := h.viewers[client.ID]; ok {
		v.scope, v.focused = anchor.Scope{}, false
	}
}

// Unsubscribe removes a client from a document.
func (h *Hub) Unsubscribe(client *Client, slug string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client.ID, slug)

	if client.Slug() == slug {
		client.SetSlug("")
	}
}

// Focus records the scope a client is currently looking at.
func (h *Hub) Focus(client *Client, scope anchor.Scope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.viewers[client.ID]; ok {
		v.scope, v.focused = scope, true
	}
}

func (h *Hub) leave(clientID, slug string) {
	if slug == "" {
		return
	}

	if ids, ok := h.documents[slug]; ok {
		delete(ids, clientID)

		if len(ids) == 0 {
			delete(h.documents, slug)
		}
	}
}

// Viewers lists the viewers of a document ordered by client ID.
func (h *Hub) Viewers(slug string) []Viewer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Viewer, 0, len(h.documents[slug]))

	for id := range h.documents[slug] {
		v, ok := h.viewers[id]
		if !ok {
			continue
		}

		out = append(out, Viewer{ClientID: id, UserID: v.client.UserID, Scope: v.scope, Focused: v.focused})
	}

	slices.SortFunc(out, func(a, b Viewer) int { return strings.Compare(a.ClientID, b.ClientID) })

	return out
}

// Broadcast sends a message to all viewers of a document, except the
// sender (identified by excludeClientID).
func (h *Hub) Broadcast(slug string, msg Message, excludeClientID string) {
	h.each(slug, excludeClientID, func(*viewer) Message { return msg })
}

// BroadcastDiscussion tells every viewer of a document, except the author's
// own connection, that a discussion was added. Viewers whose section holds
// one of its highlights are told it is in view.
func (h *Hub) BroadcastDiscussion(slug string, d highlight.Discussion, excludeClientID string) {
	h.each(slug, excludeClientID, func(v *viewer) Message {
		return Message{
			Type:    MessageTypeDiscussion,
			Payload: DiscussionPayload{Slug: slug, Discussion: d, InView: v.inView(d)},
		}
	})
}

func (v *viewer) inView(d highlight.Discussion) bool {
	if !v.focused || d.IsArchived {
		return false
	}

	for _, a := range d.Highlights {
		if v.scope.SameSection(a) {
			return true
		}
	}

	return false
}

func (h *Hub) each(slug, excludeClientID string, build func(*viewer) Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id := range h.documents[slug] {
		if id == excludeClientID {
			continue
		}

		v, ok := h.viewers[id]
		if !ok {
			continue
		}

		msg := build(v)

		// Send in goroutine to avoid blocking on slow clients
		go func(c *Client) {
			_ = c.Send(msg)
		}(v.client)
	}
}

// ClientCount returns the number of clients viewing a document.
func (h *Hub) ClientCount(slug string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.documents[slug])
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.viewers)
}
