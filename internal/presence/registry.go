// Package presence maps user ids to their single live realtime session.
//
// The registry is process-local and ephemeral. It is split into shards keyed by
// a hash of the user id so that registrations for different users rarely contend.
package presence

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionHandle
}

type Registry struct {
	shards  [shardCount]*shard
	metrics *metrics.PresenceMetrics
}

var _ domain.Presence = (*Registry)(nil)

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.PresenceMetrics) *Registry {
	r := &Registry{metrics: m}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]domain.SessionHandle)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	return r.shards[xxhash.Sum64String(userID)%shardCount]
}

// Register makes handle the live session of its user, replacing any previous one.
// The superseded session is left open; the transport decides its fate.
func (r *Registry) Register(handle domain.SessionHandle) {
	userID := handle.UserID()
	s := r.shardFor(userID)

	s.mu.Lock()
	previous, replaced := s.sessions[userID]
	s.sessions[userID] = handle
	s.mu.Unlock()

	if replaced {
		slog.Debug("Presence session superseded",
			"user_id", userID,
			"old_session", previous.ID(),
			"new_session", handle.ID())
		if r.metrics != nil {
			r.metrics.SupersededSessions.Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Inc()
	}
}

func (r *Registry) Lookup(userID string) (domain.SessionHandle, bool) {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[userID]
	return h, ok
}

// Deregister removes handle's user entry only if handle is still the registered
// session. A late deregistration from a replaced connection is a no-op.
func (r *Registry) Deregister(handle domain.SessionHandle) bool {
	userID := handle.UserID()
	s := r.shardFor(userID)

	s.mu.Lock()
	current, ok := s.sessions[userID]
	removed := ok && current.ID() == handle.ID()
	if removed {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if r.metrics != nil {
		if removed {
			r.metrics.ActiveSessions.Dec()
		} else if ok {
			r.metrics.StaleDeregistrations.Inc()
		}
	}
	return removed
}

// Len counts registered users across all shards.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.sessions)
		s.mu.RUnlock()
	}
	return n
}
