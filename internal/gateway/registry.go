package gateway

import (
	"log/slog"
	"sync"
)

// Registry maps authenticated identities to their most recent live
// session. At most one entry per identity: a fresh authentication for
// an identity replaces the previous entry without closing its
// connection, and a closing session only evicts the entry it still
// owns.
type Registry interface {
	Put(identity string, session *Session)
	Get(identity string) (*Session, bool)
	// RemoveIfCurrent deletes the identity's entry only if it still
	// points at the given session.
	RemoveIfCurrent(identity string, session *Session) bool
	// Snapshot returns the current set of registered sessions, safe to
	// iterate while other connections register and deregister.
	Snapshot() []*Session
	Len() int
}

type InMemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

var _ Registry = (*InMemoryRegistry)(nil)

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		sessions: make(map[string]*Session),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

func (r *InMemoryRegistry) Put(identity string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[identity]; ok && prev != session {
		// Replace without closing: the old connection stays open but no
		// longer receives broadcasts.
		r.logger.Info("Replacing registered session for identity",
			slog.String("identity", identity),
			slog.String("oldConnID", prev.ID.String()),
			slog.String("newConnID", session.ID.String()),
		)
	}
	r.sessions[identity] = session
}

func (r *InMemoryRegistry) Get(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[identity]
	return session, ok
}

func (r *InMemoryRegistry) RemoveIfCurrent(identity string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[identity]
	if !ok || current != session {
		return false
	}
	delete(r.sessions, identity)
	r.logger.Debug("Session deregistered", slog.String("identity", identity))
	return true
}

func (r *InMemoryRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
