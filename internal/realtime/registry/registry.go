// Package registry tracks which live sessions belong to which user. Entries
// are process-lifetime only: created on successful session authentication,
// removed on disconnect, never persisted.
package registry

import (
	"sync"

	id "helpdesk/pkg/domain"
)

// Registry is the in-memory session map. Safe for arbitrary concurrent
// register/unregister/broadcast from many connection-handling goroutines.
//
// Invariant: a user with zero sessions is absent from the map; IsOnline(u)
// is true iff SessionsOf(u) is non-empty.
type Registry struct {
	mu       sync.RWMutex
	sessions map[id.UserID]map[id.SessionID]struct{}
}

func New() *Registry {
	return &Registry{sessions: make(map[id.UserID]map[id.SessionID]struct{})}
}

// Register adds a session under the user.
func (r *Registry) Register(userID id.UserID, sessionID id.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[id.SessionID]struct{})
		r.sessions[userID] = set
	}
	set[sessionID] = struct{}{}
}

// Unregister removes a session; the user entry disappears with its last
// session.
func (r *Registry) Unregister(userID id.UserID, sessionID id.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[userID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.sessions, userID)
	}
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID id.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// SessionsOf returns a snapshot of the user's sessions, safe to iterate
// while registrations continue concurrently.
func (r *Registry) SessionsOf(userID id.UserID) []id.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[userID]
	out := make([]id.SessionID, 0, len(set))
	for sessionID := range set {
		out = append(out, sessionID)
	}
	return out
}

// OnlineUsers returns a snapshot of every user with at least one session.
func (r *Registry) OnlineUsers() []id.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]id.UserID, 0, len(r.sessions))
	for userID := range r.sessions {
		out = append(out, userID)
	}
	return out
}
