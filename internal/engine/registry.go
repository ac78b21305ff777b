package engine

import (
	"fmt"
	"sync"
)

// Registry tracks the running session per room. It is owned by the hosting
// layer and passed into whatever needs lookups; there is no package-level
// instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register claims the room for a session. Only one session may run per
// room at a time.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.sessions[s.Room]; busy {
		return fmt.Errorf("room %s already has a running game", s.Room)
	}
	r.sessions[s.Room] = s
	return nil
}

// Get returns the session for a room, nil if none is running.
func (r *Registry) Get(room string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[room]
}

// Remove releases the room.
func (r *Registry) Remove(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, room)
}

// Count returns the number of running sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
