// ABOUTME: Heartbeat session protocol shared by both transport adapters
// ABOUTME: Defines the message envelope and payload shapes on the wire

package protocol

import "encoding/json"

// Topics recognized by the gateway. Messages with any other topic are
// accepted and logged but produce no registry mutation and no reply.
const (
	TopicHeartbeat    = "heartbeat"
	TopicHeartbeatAck = "heartbeat_ack"
)

// Envelope is the wire message shape on the raw duplex channel.
// The event-channel transport carries the same topics under its own framing.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// HeartbeatPayload is the telemetry an agent reports with each heartbeat.
// ID is the self-reported agent identifier; it binds the session only when
// the connection did not authenticate with a certificate.
type HeartbeatPayload struct {
	ID          string  `json:"id"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
}

// AckPayload is the server's reply to each heartbeat.
type AckPayload struct {
	Timestamp string `json:"timestamp"`
}
