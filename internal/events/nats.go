// ABOUTME: NATS implementation of the fleet event Publisher
// ABOUTME: Publishes agent presence and heartbeat events to subject hierarchy

package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes fleet events to a NATS subject hierarchy:
//
//	<prefix>.agent.connected
//	<prefix>.agent.disconnected
//	<prefix>.agent.heartbeat
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	logger  *slog.Logger
	onError func()
}

// NewNATSPublisher connects to NATS and returns a publisher.
// onError is invoked once per failed publish (may be nil).
func NewNATSPublisher(url, prefix string, logger *slog.Logger, onError func()) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	logger.Info("connected to NATS", "url", url, "subject_prefix", prefix)
	return &NATSPublisher{
		nc:      nc,
		prefix:  prefix,
		logger:  logger.With("component", "events"),
		onError: onError,
	}, nil
}

func (p *NATSPublisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("marshaling fleet event", "subject", subject, "error", err)
		if p.onError != nil {
			p.onError()
		}
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("publishing fleet event", "subject", subject, "error", err)
		if p.onError != nil {
			p.onError()
		}
	}
}

// AgentConnected publishes a connection event.
func (p *NATSPublisher) AgentConnected(ev Presence) {
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	p.publish(p.prefix+".agent.connected", ev)
}

// AgentDisconnected publishes a disconnection event.
func (p *NATSPublisher) AgentDisconnected(ev Presence) {
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	p.publish(p.prefix+".agent.disconnected", ev)
}

// Heartbeat publishes a heartbeat event with its telemetry snapshot.
func (p *NATSPublisher) Heartbeat(ev Heartbeat) {
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	p.publish(p.prefix+".agent.heartbeat", ev)
}

// Close drains the NATS connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
