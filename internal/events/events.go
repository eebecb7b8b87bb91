// ABOUTME: Fleet presence event publishing for downstream consumers
// ABOUTME: Defines the Publisher interface and the event payload shapes

package events

// Presence describes an agent connection lifecycle event.
type Presence struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Transport string `json:"transport"`
	Timestamp string `json:"timestamp"`
}

// Heartbeat describes a processed heartbeat with its telemetry snapshot.
type Heartbeat struct {
	Presence
	CPUPercent float64 `json:"cpu_usage"`
	MemoryMB   float64 `json:"memory_usage"`
	DiskMB     float64 `json:"disk_usage"`
}

// Publisher emits fleet events. Publishing is best-effort: failures are
// logged and counted, never surfaced to the connection that triggered them.
type Publisher interface {
	AgentConnected(p Presence)
	AgentDisconnected(p Presence)
	Heartbeat(h Heartbeat)
	Close() error
}

// NopPublisher discards all events. Used when NATS publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) AgentConnected(Presence)    {}
func (NopPublisher) AgentDisconnected(Presence) {}
func (NopPublisher) Heartbeat(Heartbeat)        {}
func (NopPublisher) Close() error               { return nil }
