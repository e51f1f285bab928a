package heartbeat

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/interfaces"
)

// fakePeer notifies a channel on each probe so tests can react like a
// remote endpoint would.
type fakePeer struct {
	id    string
	pings chan struct{}
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, pings: make(chan struct{}, 16)}
}

func (f *fakePeer) ID() string            { return f.id }
func (f *fakePeer) UserID() string        { return "" }
func (f *fakePeer) Username() string      { return "" }
func (f *fakePeer) Authenticated() bool   { return false }
func (f *fakePeer) WriteJSON(v any) error { return nil }
func (f *fakePeer) Close() error          { return nil }

func (f *fakePeer) Ping() error {
	select {
	case f.pings <- struct{}{}:
	default:
	}
	return nil
}

type reapRecorder struct {
	mu     sync.Mutex
	reaped []string
	signal chan string
}

func newReapRecorder() *reapRecorder {
	return &reapRecorder{signal: make(chan string, 16)}
}

func (r *reapRecorder) reap(conn interfaces.Conn) {
	r.mu.Lock()
	r.reaped = append(r.reaped, conn.ID())
	r.mu.Unlock()
	r.signal <- conn.ID()
}

func (r *reapRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reaped)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSupervisor_ReapsUnresponsivePeer(t *testing.T) {
	req := require.New(t)
	rec := newReapRecorder()
	s := NewSupervisor(30*time.Millisecond, 15*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)

	// The peer never answers, so the first cycle's death timer must reap
	// it: probe at ~30ms, reap by ~45ms.
	select {
	case id := <-rec.signal:
		req.Equal("c1", id)
	case <-time.After(time.Second):
		t.Fatal("unresponsive peer was never reaped")
	}

	// DEAD is terminal: no further probes, no second reap.
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, rec.count())
	_, ok := s.StateOf("c1")
	req.False(ok)
}

func TestSupervisor_ResponsivePeerStaysAlive(t *testing.T) {
	req := require.New(t)
	rec := newReapRecorder()
	s := NewSupervisor(30*time.Millisecond, 15*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-peer.pings:
				s.HandleResponse("c1")
			case <-done:
				return
			}
		}
	}()

	// Several full probe cycles with prompt responses.
	time.Sleep(200 * time.Millisecond)
	close(done)

	req.Zero(rec.count())
	_, ok := s.StateOf("c1")
	req.True(ok)

	s.Forget("c1")
}

func TestSupervisor_ResponseCancelsDeathTimer(t *testing.T) {
	req := require.New(t)
	rec := newReapRecorder()
	s := NewSupervisor(40*time.Millisecond, 100*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)

	// Wait for the probe, answer well before the generous death timer.
	select {
	case <-peer.pings:
	case <-time.After(time.Second):
		t.Fatal("no probe was sent")
	}
	s.HandleResponse("c1")

	state, ok := s.StateOf("c1")
	req.True(ok)
	req.Equal(StateWaiting, state)

	// The cancelled timer must not fire a reap.
	time.Sleep(150 * time.Millisecond)
	req.Zero(rec.count())

	s.Forget("c1")
}

func TestSupervisor_LateResponseAfterReapIsNoop(t *testing.T) {
	req := require.New(t)
	rec := newReapRecorder()
	s := NewSupervisor(20*time.Millisecond, 10*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)

	select {
	case <-rec.signal:
	case <-time.After(time.Second):
		t.Fatal("peer was never reaped")
	}

	// A response arriving after the reap lost the race: exactly one
	// outcome per cycle, never both.
	s.HandleResponse("c1")
	time.Sleep(50 * time.Millisecond)
	req.Equal(1, rec.count())
}

func TestSupervisor_ForgetStopsProbing(t *testing.T) {
	req := require.New(t)
	rec := newReapRecorder()
	s := NewSupervisor(20*time.Millisecond, 10*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)
	s.Forget("c1")
	s.Forget("c1") // idempotent

	time.Sleep(100 * time.Millisecond)
	req.Zero(rec.count())
	_, ok := s.StateOf("c1")
	req.False(ok)
}

func TestSupervisor_WatchTwiceIsNoop(t *testing.T) {
	rec := newReapRecorder()
	s := NewSupervisor(30*time.Millisecond, 15*time.Millisecond, rec.reap, testLogger())

	peer := newFakePeer("c1")
	s.Watch(peer)
	s.Watch(peer)

	s.Forget("c1")
	_, ok := s.StateOf("c1")
	require.False(t, ok)
}
