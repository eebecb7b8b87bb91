// ABOUTME: HTTP control-API handlers for certificate registration and fleet inspection
// ABOUTME: Exposes POST /api/certificates, GET /api/agents, and POST /hello-world

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/autonomy-edge/edge-gateway/internal/certstore"
)

// RegisterCertificateRequest is the JSON request body for POST /api/certificates.
type RegisterCertificateRequest struct {
	AgentID     string `json:"agent_id"`
	Certificate string `json:"certificate"`
}

// RegisterCertificateResponse is the JSON response for POST /api/certificates.
type RegisterCertificateResponse struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
}

// AgentInfoResponse is the JSON response element for GET /api/agents.
type AgentInfoResponse struct {
	ID            string  `json:"id"`
	SessionID     string  `json:"session_id"`
	Transport     string  `json:"transport"`
	Authenticated bool    `json:"authenticated"`
	LastHeartbeat string  `json:"last_heartbeat,omitempty"`
	CPUPercent    float64 `json:"cpu_usage"`
	MemoryMB      float64 `json:"memory_usage"`
	DiskMB        float64 `json:"disk_usage"`
}

// HelloRequest is the JSON request body for POST /hello-world.
type HelloRequest struct {
	Name string `json:"name"`
}

// sendJSONError writes a JSON error response with the given status code.
func sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleRegisterCertificate pins a certificate for an agent identifier.
// Re-registration for a known agent replaces the pinned certificate, so a
// reprovisioned device only needs a fresh upload before reconnecting.
func (g *Gateway) handleRegisterCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RegisterCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		sendJSONError(w, "agent_id is required", http.StatusBadRequest)
		return
	}
	if req.Certificate == "" {
		sendJSONError(w, "certificate is required", http.StatusBadRequest)
		return
	}

	if err := g.store.Register(r.Context(), req.AgentID, req.Certificate); err != nil {
		switch {
		case errors.Is(err, certstore.ErrMalformedCertificate),
			errors.Is(err, certstore.ErrMissingCommonName),
			errors.Is(err, certstore.ErrIdentityMismatch):
			sendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			g.logger.Error("certificate registration failed", "agent_id", req.AgentID, "error", err)
			sendJSONError(w, "failed to store certificate", http.StatusInternalServerError)
		}
		return
	}

	g.metrics.CertRegistrationsTotal.Inc()
	g.logger.Info("certificate registered", "agent_id", req.AgentID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RegisterCertificateResponse{
		Message: "Certificate uploaded successfully",
		AgentID: req.AgentID,
	})
}

// handleListAgents returns the currently connected agents with their latest
// telemetry snapshots.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	infos := g.registry.List()
	response := make([]AgentInfoResponse, 0, len(infos))
	for _, info := range infos {
		a := AgentInfoResponse{
			ID:            info.AgentID,
			SessionID:     info.SessionID,
			Transport:     info.Transport,
			Authenticated: info.Authenticated,
			CPUPercent:    info.Telemetry.CPUPercent,
			MemoryMB:      info.Telemetry.MemoryMB,
			DiskMB:        info.Telemetry.DiskMB,
		}
		if !info.LastHeartbeat.IsZero() {
			a.LastHeartbeat = info.LastHeartbeat.UTC().Format(time.RFC3339)
		}
		response = append(response, a)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleHelloWorld returns a greeting for the supplied name.
func (g *Gateway) handleHelloWorld(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req HelloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		sendJSONError(w, "name is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": fmt.Sprintf("Hello, %s!", req.Name),
	})
}
