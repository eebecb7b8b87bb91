// ABOUTME: Event-channel transport adapter built on coder/websocket and wsjson
// ABOUTME: Speaks event/data frames; refuses bad certificates at the accept handshake

package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/autonomy-edge/edge-gateway/internal/certauth"
	"github.com/autonomy-edge/edge-gateway/internal/metrics"
	"github.com/autonomy-edge/edge-gateway/internal/protocol"
	"github.com/autonomy-edge/edge-gateway/internal/registry"
)

// eventFrame is the inbound frame shape on the event channel.
type eventFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outFrame is the outbound frame shape, emitted only to the originating
// connection, never broadcast.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EventsHandler terminates event-channel connections at /events.
//
// Unlike the raw channel, authentication happens before the upgrade: an
// invalid certificate refuses the handshake itself with 403, so a rejected
// agent never holds an open socket.
type EventsHandler struct {
	auth    *certauth.Authenticator
	proto   *protocol.Handler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEventsHandler creates the event channel adapter.
func NewEventsHandler(auth *certauth.Authenticator, proto *protocol.Handler, m *metrics.Metrics, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		auth:    auth,
		proto:   proto,
		metrics: m,
		logger:  logger.With("component", "transport.events"),
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Authenticate(r.Context(), r.Header.Get(certauth.CertHeader))
	if err != nil {
		h.metrics.AuthRejectionsTotal.Inc()
		http.Error(w, "client certificate rejected", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Agents are not browsers; origin checks do not apply here.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("event channel accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	sess := registry.NewSession("events", identity.AgentID, &eventSender{conn: conn})
	defer h.proto.Disconnect(sess)

	h.logger.Info("event channel connected",
		"session", sess.ID,
		"agent_id", identity.AgentID,
		"authenticated", identity.Authenticated,
		"remote", r.RemoteAddr,
	)

	ctx := r.Context()
	for {
		var frame eventFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// wsjson surfaces decode failures as read errors, so unlike the
			// raw channel a malformed frame ends the connection here.
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				h.logger.Info("event channel closed", "session", sess.ID)
			default:
				h.logger.Warn("event channel read failed", "session", sess.ID, "error", err)
			}
			return
		}

		if err := h.proto.Handle(ctx, sess, frame.Event, frame.Data); err != nil {
			h.logger.Error("event channel handler failed", "session", sess.ID, "error", err)
			conn.Close(websocket.StatusInternalError, "handler failure")
			return
		}
	}
}

// eventSender writes frames back to the originating connection.
type eventSender struct {
	conn *websocket.Conn
}

func (s *eventSender) Send(topic string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, outFrame{Event: topic, Data: payload})
}
