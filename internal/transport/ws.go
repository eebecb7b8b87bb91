// ABOUTME: Raw duplex channel transport adapter built on gorilla/websocket
// ABOUTME: Speaks topic/payload envelopes; rejects bad certificates with a policy-violation close

package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autonomy-edge/edge-gateway/internal/certauth"
	"github.com/autonomy-edge/edge-gateway/internal/metrics"
	"github.com/autonomy-edge/edge-gateway/internal/protocol"
	"github.com/autonomy-edge/edge-gateway/internal/registry"
)

const writeTimeout = 10 * time.Second

// wireMessage is the outbound envelope on the raw channel.
type wireMessage struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// WSHandler terminates raw duplex channel connections at /ws.
//
// Authentication happens after the upgrade: an invalid certificate closes the
// socket with a policy-violation status and a human-readable reason, giving
// the agent a protocol-level signal rather than a bare TCP reset.
type WSHandler struct {
	auth     *certauth.Authenticator
	proto    *protocol.Handler
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates the raw channel adapter.
func NewWSHandler(auth *certauth.Authenticator, proto *protocol.Handler, m *metrics.Metrics, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		auth:    auth,
		proto:   proto,
		metrics: m,
		logger:  logger.With("component", "transport.ws"),
		upgrader: websocket.Upgrader{
			// Agents are not browsers; origin checks do not apply here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	certHeader := r.Header.Get(certauth.CertHeader)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	identity, err := h.auth.Authenticate(r.Context(), certHeader)
	if err != nil {
		h.metrics.AuthRejectionsTotal.Inc()
		deadline := time.Now().Add(writeTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "client certificate rejected"),
			deadline)
		return
	}

	sess := registry.NewSession("websocket", identity.AgentID, &wsSender{conn: conn})
	defer h.proto.Disconnect(sess)

	h.logger.Info("raw channel connected",
		"session", sess.ID,
		"agent_id", identity.AgentID,
		"authenticated", identity.Authenticated,
		"remote", r.RemoteAddr,
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info("raw channel closed", "session", sess.ID)
			} else {
				h.logger.Warn("raw channel read failed", "session", sess.ID, "error", err)
			}
			return
		}

		if err := h.proto.HandleRaw(r.Context(), sess, data); err != nil {
			h.logger.Error("raw channel handler failed", "session", sess.ID, "error", err)
			return
		}
	}
}

// wsSender serializes writes to a gorilla connection, which does not allow
// concurrent writers.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(topic string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(wireMessage{Topic: topic, Payload: payload})
}
