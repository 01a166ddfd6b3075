package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/collab"
	"github.com/serroba/annotated-docs/internal/document"
	"github.com/serroba/annotated-docs/internal/request"
	"github.com/serroba/annotated-docs/internal/storage"
	"github.com/serroba/annotated-docs/internal/ws"
)

// handleWebSocket handles GET /ws?slug={slug}&mode={mode}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, "slug query parameter is required", http.StatusBadRequest)

		return
	}

	if _, err := s.store.LoadDocument(r.Context(), slug); err != nil {
		s.writeError(w, r, err)

		return
	}

	access, err := s.access(r, slug)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	userID := UserIDFromContext(r.Context())
	draft := r.URL.Query().Get(request.KeyMode) == request.ModeDraft

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)

		return
	}

	client := ws.NewClient(uuid.NewString(), userID, conn)
	s.hub.Register(client)
	s.hub.Subscribe(client, slug)

	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()

		if err := s.manager.CloseSession(client.ID); err != nil {
			s.logger.Warn("close session", "session", client.ID, "error", err)
		}

		s.hub.Unregister(client)
		_ = client.Close()
	}()

	session, err := s.manager.Open(collab.SessionConfig{
		ID:       client.ID,
		Slug:     slug,
		UserID:   userID,
		ReadOnly: access.ReadOnly(draft),
		OnStatus: func(status collab.Status) {
			_ = client.Send(displayStatus(status))
		},
	})
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInternalError, "failed to open session")

		return
	}

	if err := client.Send(displayStatus(session.Status())); err != nil {
		return
	}

	s.handleMessages(ctx, client, session, access)
}

func displayStatus(status collab.Status) ws.Message {
	return ws.Message{
		Type:    ws.MessageTypeDisplayStatus,
		Payload: ws.StatusPayload{Status: string(status)},
	}
}

// handleMessages processes incoming messages from a client until the
// connection fails.
func (s *Server) handleMessages(ctx context.Context, client *ws.Client, session *collab.Session, access acl.Access) {
	for {
		msg, err := client.Receive()
		if err != nil {
			return
		}

		switch msg.Type {
		case ws.MessageTypeStatus:
			payload, ok := msg.Payload.(ws.StatusPayload)
			if !ok {
				_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid status payload")

				continue
			}

			if err := session.HandleStatus(payload.Status); err != nil {
				_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())
			}
		case ws.MessageTypeReady:
			session.MarkReady()
		case ws.MessageTypeView:
			payload, ok := msg.Payload.(ws.ViewPayload)
			if !ok {
				_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid view payload")

				continue
			}

			go s.sendView(ctx, client, session, access, request.FromMap(payload.Params))
		case ws.MessageTypeDisplayStatus, ws.MessageTypeViewResult, ws.MessageTypeDiscussion, ws.MessageTypeError:
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")
		default:
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unknown message type")
		}
	}
}

// sendView waits briefly for the editor and answers a view request. A view
// computed before the editor is ready carries no permalink highlight.
func (s *Server) sendView(
	ctx context.Context, client *ws.Client, session *collab.Session, access acl.Access, params request.Params,
) {
	ready := session.WaitReady(ctx, s.readyLimit)
	if ctx.Err() != nil {
		return
	}

	view, err := s.buildView(ctx, session.Slug(), params, access, ready)
	if err != nil {
		code := ws.ErrorCodeInternalError
		if errors.Is(err, storage.ErrDocumentNotFound) || errors.Is(err, document.ErrVersionNotFound) {
			code = ws.ErrorCodeNotFound
		} else {
			s.logger.Error("build view", "session", session.ID(), "error", err)
		}

		_ = client.SendError(code, err.Error())

		return
	}

	s.hub.Focus(client, view.Scope())

	_ = client.Send(ws.Message{Type: ws.MessageTypeViewResult, Payload: view})
}
