// ABOUTME: Store interface and data types for pinned agent certificates
// ABOUTME: Defines the certificate taxonomy errors and the Store interface

package certstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no certificate is pinned for an agent identifier
var ErrNotFound = errors.New("certificate not found")

// ErrMalformedCertificate is returned when certificate PEM/X.509 parsing fails
var ErrMalformedCertificate = errors.New("malformed certificate")

// ErrMissingCommonName is returned when a certificate carries no CN attribute
var ErrMissingCommonName = errors.New("certificate has no common name")

// ErrIdentityMismatch is returned when a certificate's CN does not equal the
// agent identifier it is being registered under
var ErrIdentityMismatch = errors.New("certificate identity mismatch")

// PinnedCertificate is the certificate currently trusted for one agent identity.
// CertPEM is stored trimmed; Lookup returns it byte-identical to what Register
// persisted.
type PinnedCertificate struct {
	AgentID   string
	CertPEM   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for pinned certificate persistence.
//
// Registration is trust on first use with unconditional overwrite: pinning a
// certificate for an identity that already has one replaces the prior pin and
// keeps no history.
type Store interface {
	// Register validates that certPEM parses and its CN equals agentID, then
	// persists it as the pin for agentID. Validation failures return one of
	// ErrMalformedCertificate, ErrMissingCommonName, or ErrIdentityMismatch;
	// nothing is written in those cases. Persistence failures are wrapped
	// storage errors (a server fault, not the caller's).
	Register(ctx context.Context, agentID, certPEM string) error

	// Lookup returns the currently pinned certificate PEM for agentID, or
	// ErrNotFound.
	Lookup(ctx context.Context, agentID string) (string, error)

	// List returns all pinned certificates ordered by agent identifier.
	List(ctx context.Context) ([]*PinnedCertificate, error)

	// Close releases any resources held by the store
	Close() error
}
