// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  api_key: "secret-key"
  require_client_cert: true

agents:
  session_ttl: "90s"
  sweep_interval: "30s"

nats:
  enabled: true
  url: "nats://localhost:4222"
  subject_prefix: "fleet"

cors:
  allowed_origins:
    - "https://autonomy-edge.com"
    - "http://localhost:5173"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q, want 0.0.0.0:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want ./test.db", cfg.Database.Path)
	}
	if !cfg.Auth.RequireClientCert {
		t.Error("RequireClientCert = false, want true")
	}
	if cfg.Agents.SessionTTL != 90*time.Second {
		t.Errorf("SessionTTL = %v, want 90s", cfg.Agents.SessionTTL)
	}
	if cfg.Agents.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.Agents.SweepInterval)
	}
	if cfg.NATS.SubjectPrefix != "fleet" {
		t.Errorf("SubjectPrefix = %q, want fleet", cfg.NATS.SubjectPrefix)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.CORS.AllowedOrigins)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("EDGE_TEST_API_KEY", "expanded-secret")

	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  api_key: "${EDGE_TEST_API_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.APIKey != "expanded-secret" {
		t.Errorf("APIKey = %q, want expanded-secret", cfg.Auth.APIKey)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: ":memory:"
auth:
  api_key: "k"
`,
			wantErr: "server.http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "localhost:8080"
auth:
  api_key: "k"
`,
			wantErr: "database.path",
		},
		{
			name: "missing api key",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
`,
			wantErr: "auth.api_key",
		},
		{
			name: "nats enabled without url",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  api_key: "k"
nats:
  enabled: true
`,
			wantErr: "nats.url",
		},
		{
			name: "ttl without sweep interval",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  api_key: "k"
agents:
  session_ttl: "90s"
`,
			wantErr: "sweep_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)

			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  api_key: "k"
agents:
  session_ttl: "ninety seconds"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() succeeded, want duration parse error")
	}
	if !strings.Contains(err.Error(), "session_ttl") {
		t.Errorf("error = %v, want mention of session_ttl", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
}
