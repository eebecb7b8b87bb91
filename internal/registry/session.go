// ABOUTME: Represents one live transport connection and its heartbeat state.
// ABOUTME: Tracks the bound identity, last telemetry snapshot, and send handle.

package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender pushes a message back over the session's transport connection.
// Each adapter implements it with its own wire framing.
type Sender interface {
	Send(topic string, payload any) error
}

// Telemetry is the last resource snapshot an agent reported in a heartbeat.
type Telemetry struct {
	CPUPercent float64
	MemoryMB   float64
	DiskMB     float64
}

// Session is the ephemeral server-side record of one live agent connection.
// It is created when a transport connection is accepted and destroyed when the
// connection closes. The agent identity is bound on the first heartbeat, not
// at connect time.
type Session struct {
	ID        string
	Transport string

	// CertID is the certificate-derived identity established at connect time.
	// Empty for development-mode connections that presented no certificate.
	// When set it is authoritative: heartbeat payloads cannot rebind the
	// session to another identifier.
	CertID string

	mu            sync.RWMutex
	agentID       string
	lastHeartbeat time.Time
	telemetry     Telemetry
	sender        Sender
}

// NewSession creates a Session for a freshly accepted connection.
func NewSession(transport, certID string, sender Sender) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Transport: transport,
		CertID:    certID,
		sender:    sender,
	}
}

// Send pushes a message to the agent over the session's transport.
func (s *Session) Send(topic string, payload any) error {
	return s.sender.Send(topic, payload)
}

// AgentID returns the identity this session is bound to, or "" before the
// first heartbeat.
func (s *Session) AgentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentID
}

// RecordHeartbeat stores the telemetry snapshot and refreshes the liveness
// timestamp.
func (s *Session) RecordHeartbeat(t Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
	s.lastHeartbeat = time.Now()
}

// LastHeartbeat returns when the session last received a heartbeat, zero if
// it never has.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeartbeat
}

// Telemetry returns the last reported telemetry snapshot.
func (s *Session) Telemetry() Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// bind records the registry assignment. Called by Registry.Upsert with the
// registry lock held; the session's own lock orders it against readers.
func (s *Session) bind(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentID = agentID
}

// Info is a point-in-time snapshot of a session for API responses.
type Info struct {
	SessionID     string
	AgentID       string
	Transport     string
	Authenticated bool
	LastHeartbeat time.Time
	Telemetry     Telemetry
}

// Snapshot returns a consistent copy of the session's observable state.
func (s *Session) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		SessionID:     s.ID,
		AgentID:       s.agentID,
		Transport:     s.Transport,
		Authenticated: s.CertID != "",
		LastHeartbeat: s.lastHeartbeat,
		Telemetry:     s.telemetry,
	}
}
