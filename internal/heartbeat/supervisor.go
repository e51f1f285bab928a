package heartbeat

import (
	"log/slog"
	"sync"
	"time"

	"chatrelay/pkg/interfaces"
)

// State of one connection's liveness cycle.
type State int

const (
	// StateWaiting: no outstanding probe.
	StateWaiting State = iota
	// StatePingSent: probe emitted, death timer armed.
	StatePingSent
	// StateDead: terminal; no further probes.
	StateDead
)

type cycle struct {
	conn  interfaces.Conn
	state State
	death *time.Timer
	stop  chan struct{}
}

// Supervisor runs a two-phase liveness state machine per connection. Every
// interval it sends a probe and arms a death timer; a response cancels the
// timer, expiry reaps the connection. Response arrival and timer expiry for
// the same cycle are serialized on one mutex, so exactly one of them wins.
type Supervisor struct {
	interval time.Duration
	timeout  time.Duration
	reap     func(interfaces.Conn)
	log      *slog.Logger

	mu     sync.Mutex
	cycles map[string]*cycle
}

// NewSupervisor creates a supervisor. reap is invoked outside the state lock
// after a connection transitions to StateDead; callers close the connection,
// remove it from the registry and publish presence there.
func NewSupervisor(interval, timeout time.Duration, reap func(interfaces.Conn), log *slog.Logger) *Supervisor {
	return &Supervisor{
		interval: interval,
		timeout:  timeout,
		reap:     reap,
		log:      log,
		cycles:   make(map[string]*cycle),
	}
}

// Watch starts the probe schedule for a connection. Watching an already
// watched connection is a no-op.
func (s *Supervisor) Watch(conn interfaces.Conn) {
	s.mu.Lock()
	if _, exists := s.cycles[conn.ID()]; exists {
		s.mu.Unlock()
		return
	}
	c := &cycle{conn: conn, state: StateWaiting, stop: make(chan struct{})}
	s.cycles[conn.ID()] = c
	s.mu.Unlock()

	go s.probeLoop(c)
}

func (s *Supervisor) probeLoop(c *cycle) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.probe(c)
		case <-c.stop:
			return
		}
	}
}

// probe performs WAITING -> PING_SENT. A tick that lands while a probe is
// still outstanding (or after death) does nothing. The probe itself is sent
// outside the state lock; if the send fails, no response can arrive and the
// armed death timer reaps the connection on schedule.
func (s *Supervisor) probe(c *cycle) {
	s.mu.Lock()
	if c.state != StateWaiting {
		s.mu.Unlock()
		return
	}
	c.state = StatePingSent
	c.death = time.AfterFunc(s.timeout, func() { s.expire(c) })
	s.mu.Unlock()

	if err := c.conn.Ping(); err != nil {
		s.log.Debug("probe send failed", "connection", c.conn.ID(), "err", err)
	}
}

// HandleResponse performs PING_SENT -> WAITING when a liveness response
// arrives before the death timer fires. Responses outside an open cycle are
// ignored.
func (s *Supervisor) HandleResponse(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cycles[connID]
	if !ok || c.state != StatePingSent {
		return
	}
	c.death.Stop()
	c.death = nil
	c.state = StateWaiting
}

// expire performs PING_SENT -> DEAD when the death timer fires first. If the
// response already won this cycle the state is no longer PING_SENT and the
// expiry is a no-op, so a cycle never produces both outcomes.
func (s *Supervisor) expire(c *cycle) {
	s.mu.Lock()
	if c.state != StatePingSent {
		s.mu.Unlock()
		return
	}
	s.killLocked(c)
	s.mu.Unlock()

	s.log.Info("liveness probe unanswered, reaping connection",
		"connection", c.conn.ID(), "user", c.conn.UserID())
	s.reap(c.conn)
}

// killLocked transitions a cycle to its terminal state and cancels its
// schedule. Caller holds s.mu.
func (s *Supervisor) killLocked(c *cycle) {
	if c.death != nil {
		c.death.Stop()
		c.death = nil
	}
	c.state = StateDead
	close(c.stop)
	delete(s.cycles, c.conn.ID())
}

// Forget cancels the probe schedule on graceful close. Idempotent with
// respect to a concurrent reap: whichever path removes the cycle first wins.
func (s *Supervisor) Forget(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cycles[connID]
	if !ok {
		return
	}
	s.killLocked(c)
}

// StateOf reports the current cycle state for a connection.
func (s *Supervisor) StateOf(connID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cycles[connID]
	if !ok {
		return StateDead, false
	}
	return c.state, true
}
