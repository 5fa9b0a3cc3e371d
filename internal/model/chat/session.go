package chat

import "time"

// State tracks where a proxy session sits in its request loop.
type State string

const (
	StateAwaitingPrompt  State = "awaiting_prompt"
	StateForwarding      State = "forwarding"
	StateAwaitingBackend State = "awaiting_backend"
	StateRelaying        State = "relaying"
	StateClosed          State = "closed"
)

// Session captures one live chat connection through the gateway.
type Session struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remoteAddr"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"createdAt"`
}
