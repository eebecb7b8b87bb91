// Package registry tracks which edge agents are currently connected.
//
// # Model
//
// Each live transport connection is represented by a Session. The Registry
// maps agent identifier to the one session that currently represents that
// agent; "at most one recorded session per agent" is the load-bearing
// invariant.
//
// Two independent transport adapters write into the same registry
// concurrently, so mutations are serialized under a single mutex and removal
// is pointer-checked: Drop deletes an entry only while it still points at
// the caller's own session. A stale connection's disconnect cleanup
// therefore cannot erase the entry of a newer connection that reconnected
// first. When a session rebinds to a different identifier (an
// unauthenticated connection reporting a new id), Upsert removes the entry
// under the old identifier, so at most one key ever points at a connection.
//
// # Liveness
//
// Sessions are removed on disconnect. Optionally, StartSweeper evicts
// sessions whose last heartbeat exceeds a configured TTL, so a hung transport
// that never delivers a close does not leave a phantom "connected" agent.
package registry
