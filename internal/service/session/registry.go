package session

import (
	"sync"
	"time"
)

// Rate limiter defaults: a full bucket admits a burst of 60 messages,
// refilled continuously at 30 tokens per minute.
const (
	DefaultBurst        = 60
	DefaultRefillPerMin = 30
)

// Conn is the slice of a live connection the registry needs: the
// ability to forcibly terminate it when it is replaced or removed.
type Conn interface {
	Terminate()
}

type rateState struct {
	tokens     float64
	lastRefill time.Time
}

// Session correlates a connection lineage with a signed identifier. The
// attached connection may change across reconnects; at most one is live
// at any instant.
type Session struct {
	ID    string
	Token string

	conn Conn
	rate rateState
}

// Registry is the process-wide map of session id to session state. All
// mutations are serialized behind a single mutex; per-session rate
// state is only touched under that lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	burst     float64
	refillMin float64
	now       func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLimits overrides the token bucket capacity and per-minute refill.
func WithLimits(burst, refillPerMinute float64) Option {
	return func(r *Registry) {
		r.burst = burst
		r.refillMin = refillPerMinute
	}
}

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry with default rate limits.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[string]*Session),
		burst:     DefaultBurst,
		refillMin: DefaultRefillPerMin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the session for id, creating it with a full
// token bucket if absent.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id)
}

func (r *Registry) getOrCreateLocked(id string) *Session {
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{
			ID:   id,
			rate: rateState{tokens: r.burst, lastRefill: r.now()},
		}
		r.sessions[id] = s
	}
	return s
}

// AttachConn binds conn to the session, forcibly terminating any
// previously attached connection. Returns the session.
func (r *Registry) AttachConn(id string, conn Conn) *Session {
	r.mu.Lock()
	s := r.getOrCreateLocked(id)
	prev := s.conn
	s.conn = conn
	r.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Terminate()
	}
	return s
}

// SetToken records the current valid continuity token for the session.
func (r *Registry) SetToken(id, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(id).Token = token
}

// Conn returns the connection currently attached to the session, or
// nil when the session is unknown or detached.
func (r *Registry) Conn(id string) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.conn
	}
	return nil
}

// Has reports whether a session exists for id.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Remove terminates the attached connection, if any, and deletes the
// session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok && s.conn != nil {
		s.conn.Terminate()
	}
}

// RemoveIfAttached deletes the session only when conn is still the one
// attached to it. A reconnect replaces the attached connection, and the
// close of the replaced connection must not tear down the session the
// newcomer now owns.
func (r *Registry) RemoveIfAttached(id string, conn Conn) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.conn != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	if s.conn != nil {
		s.conn.Terminate()
	}
	return true
}

// AllowMessage runs the token bucket check for the session. Refill is
// computed lazily from elapsed wall-clock time, so correctness does not
// depend on call frequency. Unknown sessions are denied.
func (r *Registry) AllowMessage(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}

	now := r.now()
	minutes := now.Sub(s.rate.lastRefill).Minutes()
	if minutes > 0 {
		s.rate.tokens = min(r.burst, s.rate.tokens+minutes*r.refillMin)
		s.rate.lastRefill = now
	}
	if s.rate.tokens >= 1 {
		s.rate.tokens--
		return true
	}
	return false
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close terminates every attached connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.conn != nil {
			conns = append(conns, s.conn)
		}
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Terminate()
	}
}
