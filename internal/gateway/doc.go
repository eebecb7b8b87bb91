// ABOUTME: Package documentation for the gateway assembly layer
// ABOUTME: Describes how the server's components are composed and served

// Package gateway assembles the edge-gateway server: the SQLite-backed
// certificate store, the session registry, the shared certificate
// authenticator and heartbeat protocol handler, both websocket transports,
// and the HTTP control API, all behind a single http.Server with graceful
// shutdown.
package gateway
