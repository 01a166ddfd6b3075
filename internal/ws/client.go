package ws

import (
	"encoding/json"
	"sync"
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client represents a connected viewer.
type Client struct {
	ID     string
	UserID string
	conn   Conn

	writeMu sync.Mutex

	mu   sync.Mutex
	slug string // Currently subscribed document
}

// NewClient creates a new client wrapper.
func NewClient(id, userID string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
	}
}

// Send sends a message to the client. Writes are serialized.
func (c *Client) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(msg)
}

// SendError sends an error message to the client.
func (c *Client) SendError(code, message string) error {
	return c.Send(Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Receive reads a message from the client.
func (c *Client) Receive() (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.conn.ReadJSON(&raw); err != nil {
		return Message{}, err
	}

	msg := Message{Type: raw.Type}

	switch raw.Type {
	case MessageTypeStatus:
		var payload StatusPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Message{}, err
		}

		msg.Payload = payload
	case MessageTypeView:
		var payload ViewPayload
		if len(raw.Payload) > 0 {
			if err := json.Unmarshal(raw.Payload, &payload); err != nil {
				return Message{}, err
			}
		}

		msg.Payload = payload
	case MessageTypeReady:
		// No payload.
	case MessageTypeDisplayStatus, MessageTypeViewResult, MessageTypeDiscussion, MessageTypeError:
		// Server-to-client messages keep the raw payload.
		msg.Payload = raw.Payload
	}

	return msg, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Slug returns the document the client is subscribed to.
func (c *Client) Slug() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.slug
}

// SetSlug sets the document the client is subscribed to.
func (c *Client) SetSlug(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slug = slug
}
