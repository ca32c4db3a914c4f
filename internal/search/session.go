package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/query"
)

// ErrStale is returned for a search superseded by a newer one in the same session.
var ErrStale = errors.New("search superseded by a newer request")

// Session sequences the searches of one client: only the newest request
// delivers a result, and issuing a request cancels the one in flight.
type Session struct {
	orch *Orchestrator

	mu       sync.Mutex
	token    uint64
	cancel   context.CancelFunc
	lastUsed time.Time
}

// NewSession creates a Session over o.
func NewSession(o *Orchestrator) *Session {
	return &Session{orch: o, lastUsed: time.Now()}
}

// Resolve runs req, returning ErrStale when a newer request was issued
// before this one completed.
func (s *Session) Resolve(ctx context.Context, req Request) (query.PageResult[catalog.WorkflowRecord], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.token++
	token := s.token
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.lastUsed = time.Now()
	s.mu.Unlock()

	res, err := s.orch.Resolve(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return query.PageResult[catalog.WorkflowRecord]{}, ErrStale
	}
	s.cancel = nil
	return res, err
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

const maxSessions = 1024

// Registry hands out one Session per client id. It holds at most
// maxSessions sessions; when full and nothing is idle past the TTL, the
// least recently used session is evicted.
type Registry struct {
	orch    *Orchestrator
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry. Sessions idle for longer than idleTTL are
// dropped once the registry grows large.
func NewRegistry(o *Orchestrator, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Registry{orch: o, idleTTL: idleTTL, sessions: make(map[string]*Session)}
}

// Session returns the session for clientID, creating it on first use.
func (r *Registry) Session(clientID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[clientID]; ok {
		return s
	}
	if len(r.sessions) >= maxSessions {
		r.pruneLocked(time.Now())
	}
	if len(r.sessions) >= maxSessions {
		r.evictOldestLocked()
	}
	s := NewSession(r.orch)
	r.sessions[clientID] = s
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune drops sessions idle since before now minus the idle TTL.
func (r *Registry) Prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
}

func (r *Registry) pruneLocked(now time.Time) {
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.idleTTL {
			delete(r.sessions, id)
		}
	}
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, s := range r.sessions {
		if used := s.idleSince(); oldestID == "" || used.Before(oldest) {
			oldestID, oldest = id, used
		}
	}
	delete(r.sessions, oldestID)
}
