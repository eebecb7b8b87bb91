// ABOUTME: Transport-independent session protocol handler
// ABOUTME: Binds identities, records telemetry, replies with acknowledgements

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/autonomy-edge/edge-gateway/internal/events"
	"github.com/autonomy-edge/edge-gateway/internal/metrics"
	"github.com/autonomy-edge/edge-gateway/internal/registry"
)

// Handler implements the heartbeat session protocol once, for every
// transport. Adapters translate their native message shapes into Handle
// calls; session semantics are identical regardless of transport.
type Handler struct {
	registry  *registry.Registry
	metrics   *metrics.Metrics
	publisher events.Publisher
	logger    *slog.Logger
}

// NewHandler creates a protocol handler.
func NewHandler(reg *registry.Registry, m *metrics.Metrics, pub events.Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		registry:  reg,
		metrics:   m,
		publisher: pub,
		logger:    logger.With("component", "protocol"),
	}
}

// HandleRaw decodes an Envelope from raw bytes and dispatches it. A message
// that fails to decode is logged and dropped; the connection stays open.
func (h *Handler) HandleRaw(ctx context.Context, sess *registry.Session, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Warn("dropping undecodable message",
			"session", sess.ID,
			"transport", sess.Transport,
			"error", err,
		)
		return nil
	}
	return h.Handle(ctx, sess, env.Topic, env.Payload)
}

// Handle dispatches one decoded message. Unrecognized topics are a logged
// no-op so newer agents can speak to older gateways.
func (h *Handler) Handle(ctx context.Context, sess *registry.Session, topic string, payload json.RawMessage) error {
	switch topic {
	case TopicHeartbeat:
		return h.handleHeartbeat(ctx, sess, payload)
	default:
		h.logger.Debug("ignoring message with unrecognized topic",
			"topic", topic,
			"session", sess.ID,
		)
		return nil
	}
}

func (h *Handler) handleHeartbeat(ctx context.Context, sess *registry.Session, payload json.RawMessage) error {
	var hb HeartbeatPayload
	if err := json.Unmarshal(payload, &hb); err != nil {
		h.logger.Warn("dropping heartbeat with undecodable payload",
			"session", sess.ID,
			"error", err,
		)
		return nil
	}

	// The certificate-derived identity is authoritative. The self-reported id
	// binds the session only on unauthenticated (development mode) connections.
	agentID := sess.CertID
	if agentID == "" {
		agentID = hb.ID
	} else if hb.ID != "" && hb.ID != sess.CertID {
		h.logger.Warn("heartbeat id diverges from certificate identity",
			"session", sess.ID,
			"cert_id", sess.CertID,
			"reported_id", hb.ID,
		)
	}
	if agentID == "" {
		h.logger.Warn("dropping heartbeat without agent id", "session", sess.ID)
		return nil
	}

	firstBind := sess.AgentID() == ""

	sess.RecordHeartbeat(registry.Telemetry{
		CPUPercent: hb.CPUUsage,
		MemoryMB:   hb.MemoryUsage,
		DiskMB:     hb.DiskUsage,
	})
	h.registry.Upsert(agentID, sess)
	h.metrics.HeartbeatsTotal.Inc()
	h.metrics.ConnectedAgents.Set(float64(h.registry.Count()))

	if firstBind {
		h.publisher.AgentConnected(h.presence(agentID, sess))
	}
	h.publisher.Heartbeat(events.Heartbeat{
		Presence:   h.presence(agentID, sess),
		CPUPercent: hb.CPUUsage,
		MemoryMB:   hb.MemoryUsage,
		DiskMB:     hb.DiskUsage,
	})

	ack := AckPayload{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := sess.Send(TopicHeartbeatAck, ack); err != nil {
		return fmt.Errorf("sending heartbeat ack: %w", err)
	}
	return nil
}

// Disconnect releases the session's registry entry. It must run on every
// connection exit path: normal close, transport error, and forced close
// after failed validation. Removal is a no-op if a newer session already
// replaced this one.
func (h *Handler) Disconnect(sess *registry.Session) {
	if agentID := h.registry.Drop(sess); agentID != "" {
		h.publisher.AgentDisconnected(h.presence(agentID, sess))
	}
	h.metrics.ConnectedAgents.Set(float64(h.registry.Count()))
}

// Evicted records a sweeper eviction: the registry entry is already gone,
// only the presence event and gauge need updating.
func (h *Handler) Evicted(sess *registry.Session) {
	if agentID := sess.AgentID(); agentID != "" {
		h.publisher.AgentDisconnected(h.presence(agentID, sess))
	}
	h.metrics.ConnectedAgents.Set(float64(h.registry.Count()))
}

func (h *Handler) presence(agentID string, sess *registry.Session) events.Presence {
	return events.Presence{
		AgentID:   agentID,
		SessionID: sess.ID,
		Transport: sess.Transport,
	}
}
