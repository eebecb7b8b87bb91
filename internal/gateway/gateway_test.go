// ABOUTME: Tests for the gateway HTTP control API and middleware
// ABOUTME: Covers certificate registration, agent listing, auth, and CORS

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomy-edge/edge-gateway/internal/certtest"
	"github.com/autonomy-edge/edge-gateway/internal/config"
)

const testAPIKey = "test-api-key-12345"

func newTestGateway(t *testing.T, mutate func(*config.Config)) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	cfg.Auth.APIKey = testAPIKey
	cfg.CORS.AllowedOrigins = []string{"https://autonomy-edge.com"}
	if mutate != nil {
		mutate(cfg)
	}

	gw, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.store.Close() })

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return gw, srv
}

func postJSON(t *testing.T, url, apiKey string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRegisterCertificate(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	certPEM := certtest.SelfSigned(t, "07048933")
	resp := postJSON(t, srv.URL+"/api/certificates", testAPIKey, RegisterCertificateRequest{
		AgentID:     "07048933",
		Certificate: certPEM,
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Certificate uploaded successfully", body["message"])
	assert.Equal(t, "07048933", body["agent_id"])
}

func TestRegisterCertificateIdentityMismatch(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	// Certificate minted for a different device than the claimed agent ID.
	certPEM := certtest.SelfSigned(t, "00000000")
	resp := postJSON(t, srv.URL+"/api/certificates", testAPIKey, RegisterCertificateRequest{
		AgentID:     "07048933",
		Certificate: certPEM,
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	msg, ok := body["error"].(string)
	require.True(t, ok)
	assert.Contains(t, msg, "07048933")
	assert.Contains(t, msg, "00000000")
}

func TestRegisterCertificateBadRequests(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing agent_id", `{"certificate":"-----BEGIN CERTIFICATE-----"}`},
		{"missing certificate", `{"agent_id":"07048933"}`},
		{"garbage certificate", `{"agent_id":"07048933","certificate":"not a pem"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/certificates", bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+testAPIKey)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRegisterCertificateStorageFailure(t *testing.T) {
	gw, srv := newTestGateway(t, nil)

	// A valid certificate that passes identity validation but cannot be
	// persisted must come back as a server error, not a client error.
	certPEM := certtest.SelfSigned(t, "07048933")
	require.NoError(t, gw.store.Close())

	resp := postJSON(t, srv.URL+"/api/certificates", testAPIKey, RegisterCertificateRequest{
		AgentID:     "07048933",
		Certificate: certPEM,
	})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "failed to store certificate", body["error"])
}

func TestRegisterCertificateReplacesPrevious(t *testing.T) {
	gw, srv := newTestGateway(t, nil)

	first := certtest.SelfSigned(t, "07048933")
	second := certtest.SelfSigned(t, "07048933")
	require.NotEqual(t, first, second)

	resp := postJSON(t, srv.URL+"/api/certificates", testAPIKey, RegisterCertificateRequest{
		AgentID: "07048933", Certificate: first,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/certificates", testAPIKey, RegisterCertificateRequest{
		AgentID: "07048933", Certificate: second,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	stored, err := gw.store.Lookup(t.Context(), "07048933")
	require.NoError(t, err)
	assert.Equal(t, second, stored)
}

func TestAPIKeyMiddleware(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusForbidden},
		{"wrong key", "Bearer nope", http.StatusForbidden},
		{"wrong scheme", "Basic " + testAPIKey, http.StatusForbidden},
		{"correct key", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/agents", nil)
			require.NoError(t, err)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusForbidden {
				body := decodeBody(t, resp)
				assert.Equal(t, "Forbidden", body["detail"])
			}
		})
	}
}

func TestAPIKeyNotRequiredWhenUnconfigured(t *testing.T) {
	_, srv := newTestGateway(t, func(cfg *config.Config) {
		cfg.Auth.APIKey = ""
	})

	resp, err := http.Get(srv.URL + "/api/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHelloWorld(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp := postJSON(t, srv.URL+"/hello-world", testAPIKey, HelloRequest{Name: "Edge"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Hello, Edge!", body["message"])

	resp = postJSON(t, srv.URL+"/hello-world", testAPIKey, HelloRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListAgentsEmpty(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/agents", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var agents []AgentInfoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	assert.Empty(t, agents)
}

func TestCORSPreflight(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/certificates", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://autonomy-edge.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://autonomy-edge.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/certificates", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthEndpoints(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No agent sessions yet, so readiness reports unavailable.
	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestGateway(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
	})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "edge_connected_agents")
}

func TestTransportsNotAPIKeyGated(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	// A plain GET without an API key must reach the websocket handler and
	// fail the upgrade, not be rejected by the API-key middleware.
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusForbidden, resp.StatusCode)
}

func TestHelloWorldExactGreeting(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	for _, name := range []string{"World", "agent 07048933"} {
		resp := postJSON(t, srv.URL+"/hello-world", testAPIKey, HelloRequest{Name: name})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, fmt.Sprintf("Hello, %s!", name), body["message"])
	}
}
