package stats

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tamerwork/llm-gateway/internal/observer"
)

// Handler serves the dashboard's live stats stream. Each connection is
// registered as an observer; the registry handles the initial snapshot
// push and every subsequent broadcast.
type Handler struct {
	registry *observer.Registry
	upgrader websocket.Upgrader
}

// New creates a stats stream handler backed by the registry.
func New(registry *observer.Registry) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and parks it as an observer.
// Inbound frames are keep-alives from the dashboard and are discarded;
// the read loop exists only to notice the disconnect.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stats] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	conn := observer.NewConn(ws)
	h.registry.Register(conn)
	defer h.registry.Unregister(conn)

	log.Printf("[stats] observer %s connected from %s", conn.ID(), r.RemoteAddr)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			log.Printf("[stats] observer %s disconnected", conn.ID())
			return
		}
	}
}
