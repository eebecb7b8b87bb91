// Package certstore provides persistent storage for pinned agent certificates
// using SQLite.
//
// # Model
//
// The fleet uses trust-on-first-use pinning: each agent identifier maps to
// exactly one PEM-encoded X.509 certificate whose subject common name must
// equal the identifier. Re-registering an identifier overwrites the prior pin
// unconditionally; no history is kept. Pins survive process restarts.
//
// # Errors
//
// Validation failures are sentinel errors so callers can map them to client
// responses:
//
//   - ErrMalformedCertificate: PEM or X.509 parsing failed
//   - ErrMissingCommonName: certificate has no subject CN
//   - ErrIdentityMismatch: CN does not equal the registration identifier
//   - ErrNotFound: no pin exists for the identifier
//
// Anything else is a wrapped storage error and indicates a server fault.
package certstore
