// Package config handles configuration loading for edge-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and duration parsing.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  api_key: "${EDGE_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Control API and agent transports
//
// Certificate store:
//
//	database:
//	  path: "/var/lib/edge/gateway.db"
//
// Authentication:
//
//	auth:
//	  api_key: "${EDGE_API_KEY}"   # Required; guards the control API
//	  require_client_cert: true    # Refuse transport connections without a cert
//
// Session liveness (optional; zero TTL disables eviction):
//
//	agents:
//	  session_ttl: "90s"
//	  sweep_interval: "30s"
//
// Fleet event publishing:
//
//	nats:
//	  enabled: true
//	  url: "nats://localhost:4222"
//	  subject_prefix: "fleet"
//
// Browser origins allowed on the control API:
//
//	cors:
//	  allowed_origins:
//	    - "https://autonomy-edge.com"
//	    - "http://localhost:5173"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
