// Package transport contains the two adapters that terminate agent
// connections: a raw duplex websocket channel and an event-framed channel.
//
// Both adapters delegate certificate validation to one shared
// certauth.Authenticator and all session semantics to one shared
// protocol.Handler; each adapter only translates its native wire framing.
// They differ deliberately in rejection mechanics: the raw channel accepts
// the upgrade and then closes with a policy-violation status, while the
// event channel refuses the HTTP handshake outright. The effect is
// equivalent - a rejected agent never gets a registered session.
package transport
