package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tamerwork/llm-gateway/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Service tracks live proxy sessions. Sessions are transient: created
// on connect, removed on disconnect, never persisted.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{sessions: make(map[string]chat.Session)}
}

// Open registers a new session for a freshly accepted connection.
func (s *Service) Open(_ context.Context, remoteAddr string) chat.Session {
	session := chat.Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		State:      chat.StateAwaitingPrompt,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// SetState records a session's state transition.
func (s *Service) SetState(_ context.Context, sessionID string, state chat.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.State = state
	s.sessions[sessionID] = session
	return nil
}

// Close removes a session. Closing an unknown session is a no-op so
// disconnect paths never race each other into errors.
func (s *Service) Close(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Get retrieves a session by identifier.
func (s *Service) Get(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// ActiveCount reports how many sessions are currently open.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
