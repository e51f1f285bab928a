package websocket

import (
	"sync"

	"chatrelay/pkg/interfaces"
)

// Registry is the authoritative set of live connections. Anonymous
// connections live only in the primary map; authenticated ones are also
// indexed by user so a user's simultaneous sessions can all be found.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]interfaces.Conn            // connection ID -> connection
	byUser map[string]map[string]interfaces.Conn // userID -> connection ID -> connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]interfaces.Conn),
		byUser: make(map[string]map[string]interfaces.Conn),
	}
}

// Register adds a connection. Multiple connections per user are allowed;
// an existing session is never displaced by a new one.
func (r *Registry) Register(conn interfaces.Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return ErrAlreadyRegistered
	}
	r.conns[conn.ID()] = conn

	if conn.Authenticated() {
		userID := conn.UserID()
		if r.byUser[userID] == nil {
			r.byUser[userID] = make(map[string]interfaces.Conn)
		}
		r.byUser[userID][conn.ID()] = conn
	}
	return nil
}

// Remove deletes a connection from all maps. It is idempotent: the graceful
// close path and a heartbeat reap can both call it for the same connection,
// and only the first call reports true.
func (r *Registry) Remove(conn interfaces.Conn) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; !exists {
		return false
	}
	delete(r.conns, conn.ID())

	if userID := conn.UserID(); userID != "" {
		if sessions, exists := r.byUser[userID]; exists {
			delete(sessions, conn.ID())
			if len(sessions) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
	return true
}

// Snapshot returns the current connection set. Callers iterate the returned
// slice, never the internal maps, so broadcast-triggered removals cannot
// mutate a traversal in progress.
func (r *Registry) Snapshot() []interfaces.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]interfaces.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// FindByUserID returns every connection bound to the user: zero, one, or many.
func (r *Registry) FindByUserID(userID string) []interfaces.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, exists := r.byUser[userID]
	if !exists {
		return nil
	}
	conns := make([]interfaces.Conn, 0, len(sessions))
	for _, conn := range sessions {
		conns = append(conns, conn)
	}
	return conns
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections":   len(r.conns),
		"authenticated_users": len(r.byUser),
	}
}
