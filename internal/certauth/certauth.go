// ABOUTME: Shared client-certificate authentication for both transport adapters
// ABOUTME: Decodes the forwarded certificate header and validates it against the pin store

package certauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/autonomy-edge/edge-gateway/internal/certstore"
)

// CertHeader is the header under which the reverse proxy forwards the raw
// client certificate after terminating mutual TLS.
const CertHeader = "X-SSL-Client-Cert"

// ErrRejected is returned for every authentication failure: malformed header,
// unparsable certificate, missing CN, absent pin, or byte mismatch. The cause
// is intentionally not distinguished to callers so the transport layer cannot
// become an identity-probing oracle.
var ErrRejected = errors.New("client certificate rejected")

// Identity is the result of a successful transport authentication.
// Authenticated is false only in development mode, when no certificate header
// was presented and the gateway is configured to allow that.
type Identity struct {
	AgentID       string
	Authenticated bool
}

// DecodeCertHeader reconstructs PEM text from the forwarded header value.
// The reverse proxy substitutes newlines with spaces and percent-encodes the
// result, so decoding percent-unescapes, turns spaces back into newlines, and
// then repairs the envelope boundary lines that the generic substitution
// breaks ("-----BEGIN\nCERTIFICATE-----" and its END counterpart).
func DecodeCertHeader(raw string) (string, error) {
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("percent-decoding certificate header: %w", err)
	}

	pemText := strings.ReplaceAll(unescaped, " ", "\n")
	pemText = strings.ReplaceAll(pemText, "-----BEGIN\nCERTIFICATE-----", "-----BEGIN CERTIFICATE-----")
	pemText = strings.ReplaceAll(pemText, "-----END\nCERTIFICATE-----", "-----END CERTIFICATE-----")

	return pemText, nil
}

// Authenticator validates presented client certificates against the pin store.
// It is the single authentication routine shared by every transport adapter.
type Authenticator struct {
	store       certstore.Store
	requireCert bool
	logger      *slog.Logger
}

// NewAuthenticator creates an Authenticator. When requireCert is true a
// missing certificate header is rejected; when false the connection is
// accepted unauthenticated (development mode).
func NewAuthenticator(store certstore.Store, requireCert bool, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:       store,
		requireCert: requireCert,
		logger:      logger.With("component", "certauth"),
	}
}

// Authenticate checks the forwarded certificate header value and returns the
// identity the connection runs as. The claimed identity is derived from the
// certificate itself: its CN selects the pin, and the presented PEM must be
// byte-equal (after trimming surrounding whitespace) to the pinned PEM.
func (a *Authenticator) Authenticate(ctx context.Context, headerValue string) (Identity, error) {
	if headerValue == "" {
		if a.requireCert {
			a.logger.Warn("connection rejected: no client certificate presented")
			return Identity{}, ErrRejected
		}
		a.logger.Debug("no client certificate presented, accepting unauthenticated")
		return Identity{}, nil
	}

	pemText, err := DecodeCertHeader(headerValue)
	if err != nil {
		a.logger.Warn("connection rejected: undecodable certificate header", "error", err)
		return Identity{}, ErrRejected
	}

	cn, err := certstore.ExtractCommonName(pemText)
	if err != nil {
		a.logger.Warn("connection rejected: unparsable certificate", "error", err)
		return Identity{}, ErrRejected
	}

	pinned, err := a.store.Lookup(ctx, cn)
	if err != nil {
		a.logger.Warn("connection rejected: no pinned certificate", "agent_id", cn)
		return Identity{}, ErrRejected
	}

	if strings.TrimSpace(pemText) != pinned {
		a.logger.Warn("connection rejected: certificate does not match pin", "agent_id", cn)
		return Identity{}, ErrRejected
	}

	return Identity{AgentID: cn, Authenticated: true}, nil
}
