package observer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tamerwork/llm-gateway/internal/stats"
)

// Conn adapts a websocket connection to the Observer interface. A
// mutex serializes writes: broadcasts and the registration push can
// race, and gorilla/websocket allows only one concurrent writer.
type Conn struct {
	id string

	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{id: uuid.NewString(), ws: ws}
}

// ID returns the connection's opaque handle.
func (c *Conn) ID() string {
	return c.id
}

// Send pushes one snapshot as a JSON text frame.
func (c *Conn) Send(snapshot stats.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(snapshot)
}
