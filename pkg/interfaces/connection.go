package interfaces

// Conn is the registry's view of one live duplex connection. Identity fields
// are empty until the handshake binds claims to the connection; binding
// happens at most once.
type Conn interface {
	ID() string
	UserID() string
	Username() string
	Authenticated() bool
	WriteJSON(v any) error
	Ping() error
	Close() error
}

// Registry is the authoritative set of currently live connections. It is
// in-memory only and lives for the process lifetime.
type Registry interface {
	Register(conn Conn) error
	// Remove is idempotent: a second removal of the same connection is a
	// no-op. The return value reports whether the connection was present,
	// so callers publish presence exactly once per actual removal.
	Remove(conn Conn) bool
	Snapshot() []Conn
	// FindByUserID returns every connection bound to the user; a user may
	// hold multiple simultaneous sessions.
	FindByUserID(userID string) []Conn
}
