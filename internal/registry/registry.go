// ABOUTME: Tracks which agents are currently connected, one session per identifier.
// ABOUTME: Serializes mutations under one mutex with pointer-checked removal.

package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry is the process-wide mapping from agent identifier to the session
// currently representing that agent's live connection. Both transport
// adapters mutate the same registry, so every mutation runs under one mutex
// and removal only deletes an entry that still points at the caller's own
// session: a disconnecting stale connection can never erase a newer
// session's entry.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "registry"),
	}
}

// Upsert installs or replaces the session recorded for agentID. Returns the
// session it displaced, or nil. Upserting the same session again is
// idempotent. If the session was previously bound under a different
// identifier (an unauthenticated connection may report a new id in a later
// heartbeat), the entry under the old identifier is removed so only one key
// ever points at a connection.
func (r *Registry) Upsert(agentID string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old := s.AgentID(); old != "" && old != agentID {
		if cur, ok := r.sessions[old]; ok && cur == s {
			delete(r.sessions, old)
			r.logger.Info("agent session rebound",
				"old_agent_id", old,
				"agent_id", agentID,
				"session", s.ID,
			)
		}
	}

	prev := r.sessions[agentID]
	if prev == s {
		prev = nil
	}

	s.bind(agentID)
	r.sessions[agentID] = s

	if prev != nil {
		r.logger.Info("agent session replaced",
			"agent_id", agentID,
			"old_session", prev.ID,
			"new_session", s.ID,
			"total_agents", len(r.sessions),
		)
	} else {
		r.logger.Debug("agent session upserted",
			"agent_id", agentID,
			"session", s.ID,
			"total_agents", len(r.sessions),
		)
	}
	return prev
}

// Drop removes the given session from wherever it is registered. Used at
// disconnect time, when the transport knows only its own session: the entry
// is removed only if it still points at this exact session, so a stale
// connection closing after a reconnect leaves the newer entry alone.
// Returns the agent identifier the session was registered under, or "".
func (r *Registry) Drop(s *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Fast path: the session knows its bound identifier.
	if id := s.AgentID(); id != "" {
		if cur, ok := r.sessions[id]; ok && cur == s {
			delete(r.sessions, id)
			r.logger.Info("agent disconnected",
				"agent_id", id,
				"session", s.ID,
				"total_agents", len(r.sessions),
			)
			return id
		}
		return ""
	}

	// Disconnect before any heartbeat bound an identity: scan for the handle.
	// O(live sessions), acceptable at expected fleet sizes.
	for id, cur := range r.sessions {
		if cur == s {
			delete(r.sessions, id)
			r.logger.Info("agent disconnected",
				"agent_id", id,
				"session", s.ID,
				"total_agents", len(r.sessions),
			)
			return id
		}
	}
	return ""
}

// Get retrieves the session currently bound to agentID.
func (r *Registry) Get(agentID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[agentID]
	return s, ok
}

// IsOnline reports whether an agent with the given ID is currently connected.
func (r *Registry) IsOnline(agentID string) bool {
	_, ok := r.Get(agentID)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns snapshots of all live sessions.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Snapshot())
	}
	return infos
}

// sweep removes sessions whose last heartbeat is older than ttl and returns
// them. Sessions that have never received a heartbeat are left alone; they
// are cleaned up by their connection's own disconnect path.
func (r *Registry) sweep(ttl time.Duration) []*Session {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Session
	for id, s := range r.sessions {
		last := s.LastHeartbeat()
		if last.IsZero() || last.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, s)
		r.logger.Warn("agent session evicted, heartbeat TTL exceeded",
			"agent_id", id,
			"session", s.ID,
			"last_heartbeat", last,
		)
	}
	return evicted
}

// StartSweeper runs TTL-based liveness eviction until ctx is cancelled.
// onEvict is called for each evicted session outside the registry lock.
func (r *Registry) StartSweeper(ctx context.Context, ttl, interval time.Duration, onEvict func(*Session)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("session sweeper started", "ttl", ttl, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.sweep(ttl) {
				if onEvict != nil {
					onEvict(s)
				}
			}
		}
	}
}
