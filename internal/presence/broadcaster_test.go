package presence

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// recordingConn captures every event written to it.
type recordingConn struct {
	id       string
	userID   string
	username string
	writeErr error
	events   []any
}

func (c *recordingConn) ID() string          { return c.id }
func (c *recordingConn) UserID() string      { return c.userID }
func (c *recordingConn) Username() string    { return c.username }
func (c *recordingConn) Authenticated() bool { return c.userID != "" }
func (c *recordingConn) Ping() error         { return nil }
func (c *recordingConn) Close() error        { return nil }

func (c *recordingConn) WriteJSON(v any) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.events = append(c.events, v)
	return nil
}

type staticRegistry struct {
	conns []interfaces.Conn
}

func (r *staticRegistry) Register(interfaces.Conn) error { return nil }
func (r *staticRegistry) Remove(interfaces.Conn) bool    { return false }
func (r *staticRegistry) Snapshot() []interfaces.Conn    { return r.conns }

func (r *staticRegistry) FindByUserID(userID string) []interfaces.Conn {
	var found []interfaces.Conn
	for _, c := range r.conns {
		if c.UserID() == userID {
			found = append(found, c)
		}
	}
	return found
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcaster_PublishReachesEveryConnection(t *testing.T) {
	req := require.New(t)

	alice := &recordingConn{id: "c1", userID: "u1", username: "alice"}
	bob := &recordingConn{id: "c2", userID: "u2", username: "bob"}
	anon := &recordingConn{id: "c3"}

	reg := &staticRegistry{conns: []interfaces.Conn{alice, bob, anon}}
	NewBroadcaster(reg, discardLogger()).Publish()

	want := []types.RosterEntry{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
		{UserID: "", Username: ""},
	}

	for _, conn := range []*recordingConn{alice, bob, anon} {
		req.Len(conn.events, 1, "connection %s should receive the roster", conn.id)
		event, ok := conn.events[0].(types.PresenceEvent)
		req.True(ok)
		req.ElementsMatch(want, event.Online)
	}
}

func TestBroadcaster_PublishSkipsUnreachableConnection(t *testing.T) {
	req := require.New(t)

	alice := &recordingConn{id: "c1", userID: "u1", username: "alice"}
	broken := &recordingConn{id: "c2", userID: "u2", username: "bob", writeErr: errors.New("write timeout")}

	reg := &staticRegistry{conns: []interfaces.Conn{alice, broken}}
	NewBroadcaster(reg, discardLogger()).Publish()

	// The broken connection still appears in the roster the others see.
	req.Len(alice.events, 1)
	event := alice.events[0].(types.PresenceEvent)
	req.Len(event.Online, 2)
	req.Empty(broken.events)
}

func TestBroadcaster_PublishEmptyRegistry(t *testing.T) {
	reg := &staticRegistry{}
	require.NotPanics(t, func() {
		NewBroadcaster(reg, discardLogger()).Publish()
	})
}
