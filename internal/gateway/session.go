package gateway

import (
	"sync"
	"time"

	"github.com/example/attendgate/pkg/transport"
	"github.com/google/uuid"
)

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one viewer connection's lifecycle state. The gateway owns
// it exclusively; transitions only ever move forward
// (unauthenticated → authenticated → closed, or straight to closed).
type Session struct {
	ID        uuid.UUID
	Transport *transport.Connection
	CreatedAt time.Time

	mu       sync.Mutex
	state    SessionState
	identity string
}

func NewSession(conn *transport.Connection) *Session {
	return &Session{
		ID:        conn.ID(),
		Transport: conn,
		CreatedAt: time.Now(),
		state:     StateUnauthenticated,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Authenticate moves the session to the authenticated state. It is a
// no-op if the session has already closed.
func (s *Session) Authenticate(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnauthenticated {
		return false
	}
	s.state = StateAuthenticated
	s.identity = identity
	return true
}

// MarkClosed is terminal. It reports whether the session was
// authenticated at the time of closing.
func (s *Session) MarkClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasAuthenticated := s.state == StateAuthenticated
	s.state = StateClosed
	return wasAuthenticated
}
