package chat

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	modelchat "github.com/tamerwork/llm-gateway/internal/model/chat"
	"github.com/tamerwork/llm-gateway/internal/observer"
	"github.com/tamerwork/llm-gateway/internal/policy"
	chatservice "github.com/tamerwork/llm-gateway/internal/service/chat"
	"github.com/tamerwork/llm-gateway/internal/service/llm"
	"github.com/tamerwork/llm-gateway/internal/stats"
)

// Handler proxies one websocket chat connection per session: it reads
// a prompt, runs governance, forwards to the backend, and relays the
// answer, publishing stats to the observer registry along the way.
type Handler struct {
	engine   *policy.Engine
	store    *stats.Store
	registry *observer.Registry
	sessions *chatservice.Service
	backend  llm.Backend
	upgrader websocket.Upgrader
}

// New wires the chat handler to its collaborators.
func New(engine *policy.Engine, store *stats.Store, registry *observer.Registry, sessions *chatservice.Service, backend llm.Backend) *Handler {
	return &Handler{
		engine:   engine,
		store:    store,
		registry: registry,
		sessions: sessions,
		backend:  backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket runs the session loop: one text frame in is one
// prompt, one text frame out is the answer or a one-line error.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session := h.sessions.Open(ctx, r.RemoteAddr)
	defer func() {
		h.sessions.Close(ctx, session.ID)
		log.Printf("[chat] session %s closed", session.ID)
	}()

	log.Printf("[chat] session %s connected from %s", session.ID, r.RemoteAddr)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[chat] session %s read error: %v", session.ID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.handlePrompt(ctx, conn, session.ID, string(data)); err != nil {
			log.Printf("[chat] session %s write error: %v", session.ID, err)
			return
		}
	}
}

// handlePrompt drives one full round through the session state machine.
// The returned error is non-nil only when the client connection is no
// longer writable; governance and backend outcomes are handled here.
func (h *Handler) handlePrompt(ctx context.Context, conn *websocket.Conn, sessionID, prompt string) error {
	_ = h.sessions.SetState(ctx, sessionID, modelchat.StateForwarding)

	// Count the request and tell the dashboards before touching the
	// backend, so observers see it promptly even when the model is slow.
	h.store.RecordRequest(prompt)
	h.registry.Broadcast(h.store.Snapshot())

	decision := h.engine.Evaluate(prompt)
	if decision.Outcome == policy.Blocked {
		log.Printf("[chat] session %s blocked: %s", sessionID, decision.Reason)
		_ = h.sessions.SetState(ctx, sessionID, modelchat.StateAwaitingPrompt)
		// Policy blocks are neither errors nor responses; no counter moves.
		return h.writeText(conn, "Error: "+decision.Reason)
	}
	if decision.Outcome == policy.Redacted {
		log.Printf("[chat] session %s prompt redacted before forwarding", sessionID)
	}

	_ = h.sessions.SetState(ctx, sessionID, modelchat.StateAwaitingBackend)
	result, err := h.backend.Generate(ctx, decision.Text)
	if err != nil {
		log.Printf("[chat] session %s backend error: %v", sessionID, err)
		h.store.RecordError()
		h.registry.Broadcast(h.store.Snapshot())
		_ = h.sessions.SetState(ctx, sessionID, modelchat.StateAwaitingPrompt)
		return h.writeText(conn, "Error processing request: "+err.Error())
	}

	_ = h.sessions.SetState(ctx, sessionID, modelchat.StateRelaying)
	if err := h.writeText(conn, result.Text); err != nil {
		return err
	}

	h.store.RecordResponse(result.InputTokens, result.OutputTokens, result.TotalTokens)
	h.registry.Broadcast(h.store.Snapshot())
	_ = h.sessions.SetState(ctx, sessionID, modelchat.StateAwaitingPrompt)
	return nil
}

func (h *Handler) writeText(conn *websocket.Conn, text string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}
