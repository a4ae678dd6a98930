package ws

import (
	"errors"
	"sync"
)

// ErrInvalidRole rejects a connect attempt with a role outside the
// closed set. Callers close the socket with a distinct reason; the
// connection is never registered.
var ErrInvalidRole = errors.New("ws: invalid connection role")

var errConnClosed = errors.New("ws: connection closed")

// Socket is the transport a Conn writes to. *websocket.Conn from
// gorilla satisfies it; tests use in-memory fakes.
type Socket interface {
	WriteJSON(v any) error
	Close() error
}

// Conn is a live registered connection. Its role is fixed at connect
// time; routing authority derives from it, never from frame content.
type Conn struct {
	sessionID string
	role      Role
	sock      Socket

	mu   sync.Mutex
	dead bool
}

func (c *Conn) SessionID() string { return c.sessionID }
func (c *Conn) Role() Role        { return c.role }

func (c *Conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return errConnClosed
	}
	if err := c.sock.WriteJSON(v); err != nil {
		c.dead = true
		_ = c.sock.Close()
		return err
	}
	return nil
}

func (c *Conn) markDead() {
	c.mu.Lock()
	c.dead = true
	_ = c.sock.Close()
	c.mu.Unlock()
}

// Registry is the authoritative map of session -> connections, plus the
// monotonic human-handled flag. One instance per process; constructible
// per test with isolated sessions.
type Registry struct {
	joinText string

	mu    sync.RWMutex
	conns map[string][]*Conn
	human map[string]bool
}

func NewRegistry(joinText string) *Registry {
	return &Registry{
		joinText: joinText,
		conns:    make(map[string][]*Conn),
		human:    make(map[string]bool),
	}
}

// Connect registers a socket under a session with a fixed role. On the
// first therapist connection ever seen for the session it marks the
// session human-handled (never unset) and announces the handoff once to
// every non-therapist connection. Later therapists join silently.
func (r *Registry) Connect(sock Socket, sessionID string, role Role) (*Conn, error) {
	if !ConnectableRole(role) {
		return nil, ErrInvalidRole
	}

	c := &Conn{sessionID: sessionID, role: role, sock: sock}

	var announceTo []*Conn
	r.mu.Lock()
	if role == RoleTherapist && !r.human[sessionID] {
		r.human[sessionID] = true
		for _, other := range r.conns[sessionID] {
			if other.role != RoleTherapist {
				announceTo = append(announceTo, other)
			}
		}
	}
	r.conns[sessionID] = append(r.conns[sessionID], c)
	r.mu.Unlock()

	if announceTo != nil {
		frame := SystemMessageFrame(sessionID, r.joinText)
		for _, other := range announceTo {
			_ = other.write(frame)
		}
		r.sweep(sessionID)
	}
	return c, nil
}

// Disconnect removes the connection. The session and its history stay
// addressable with zero live participants; human-handled is untouched.
func (r *Registry) Disconnect(c *Conn) {
	c.markDead()
	r.mu.Lock()
	live := r.conns[c.sessionID][:0]
	for _, other := range r.conns[c.sessionID] {
		if other != c {
			live = append(live, other)
		}
	}
	if len(live) == 0 {
		delete(r.conns, c.sessionID)
	} else {
		r.conns[c.sessionID] = live
	}
	r.mu.Unlock()
}

// HumanHandled is the single authoritative predicate for AI
// eligibility. Monotonic: once true, true forever.
func (r *Registry) HumanHandled(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.human[sessionID]
}

// Broadcast sends a frame to every connection in the session. Write
// failures are swallowed and the dead connections dropped lazily.
func (r *Registry) Broadcast(sessionID string, v any) {
	r.send(sessionID, v, func(*Conn) bool { return true })
}

// SendToRole sends only to connections registered with the given role.
func (r *Registry) SendToRole(sessionID string, role Role, v any) {
	r.send(sessionID, v, func(c *Conn) bool { return c.role == role })
}

// SendToOthers sends to every connection whose role differs.
func (r *Registry) SendToOthers(sessionID string, exclude Role, v any) {
	r.send(sessionID, v, func(c *Conn) bool { return c.role != exclude })
}

func (r *Registry) send(sessionID string, v any, want func(*Conn) bool) {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns[sessionID]))
	for _, c := range r.conns[sessionID] {
		if want(c) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	failed := false
	for _, c := range targets {
		if err := c.write(v); err != nil {
			failed = true
		}
	}
	if failed {
		r.sweep(sessionID)
	}
}

// sweep drops connections already marked dead by failed writes.
func (r *Registry) sweep(sessionID string) {
	r.mu.Lock()
	live := r.conns[sessionID][:0]
	for _, c := range r.conns[sessionID] {
		c.mu.Lock()
		dead := c.dead
		c.mu.Unlock()
		if !dead {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		delete(r.conns, sessionID)
	} else {
		r.conns[sessionID] = live
	}
	r.mu.Unlock()
}

// ConnectionCount returns the number of live connections in a session.
func (r *Registry) ConnectionCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[sessionID])
}

// ActiveSessions lists sessions with at least one live connection.
func (r *Registry) ActiveSessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for sid := range r.conns {
		out = append(out, sid)
	}
	return out
}
