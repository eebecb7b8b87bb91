// ABOUTME: Development agent for exercising the gateway end to end
// ABOUTME: Usage: edge-agent [-addr localhost:8080] [-id dev-agent] [-interval 10s] [-cert cert.pem]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/autonomy-edge/edge-gateway/internal/certauth"
	"github.com/autonomy-edge/edge-gateway/internal/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway HTTP address")
	agentID := flag.String("id", "dev-agent", "agent identifier sent in heartbeats")
	interval := flag.Duration("interval", 10*time.Second, "heartbeat interval")
	certFile := flag.String("cert", "", "PEM client certificate to present in the proxy header")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, *addr, *agentID, *interval, *certFile); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, addr, agentID string, interval time.Duration, certFile string) error {
	header := http.Header{}
	if certFile != "" {
		pem, err := os.ReadFile(certFile)
		if err != nil {
			return fmt.Errorf("reading certificate: %w", err)
		}
		header.Set(certauth.CertHeader, encodeCertHeader(string(pem)))
	}

	wsURL := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "connected to %s as %s\n", wsURL, agentID)

	// Read acks in the background so the connection's read side drains.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			if env.Topic == protocol.TopicHeartbeatAck {
				var ack protocol.AckPayload
				_ = json.Unmarshal(env.Payload, &ack)
				fmt.Fprintf(os.Stderr, "ack at %s\n", ack.Timestamp)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sendHeartbeat(conn, agentID); err != nil {
			return fmt.Errorf("sending heartbeat: %w", err)
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case <-ticker.C:
		}
	}
}

func sendHeartbeat(conn *websocket.Conn, agentID string) error {
	hb := protocol.HeartbeatPayload{ID: agentID}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		hb.CPUUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hb.MemoryUsage = float64(vm.Used) / 1024 / 1024
	}
	if du, err := disk.Usage("/"); err == nil {
		hb.DiskUsage = float64(du.Used) / 1024 / 1024
	}

	payload, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	env := protocol.Envelope{Topic: protocol.TopicHeartbeat, Payload: payload}
	return conn.WriteJSON(env)
}

// encodeCertHeader encodes a PEM certificate the way a TLS-terminating proxy
// forwards it: newlines become spaces, then the value is percent-encoded.
func encodeCertHeader(pem string) string {
	flat := strings.ReplaceAll(strings.TrimSpace(pem), "\n", " ")
	return url.PathEscape(flat)
}
