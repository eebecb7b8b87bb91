// ABOUTME: PEM/X.509 parsing helpers shared by the store and the validator
// ABOUTME: Extracts the subject common name that serves as an agent's identity

package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// ExtractCommonName parses a PEM-encoded X.509 certificate and returns its
// subject common name. Returns ErrMalformedCertificate if the PEM envelope or
// the certificate inside it cannot be parsed, and ErrMissingCommonName if the
// subject has no CN attribute.
func ExtractCommonName(certPEM string) (string, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(certPEM)))
	if block == nil || block.Type != "CERTIFICATE" {
		return "", fmt.Errorf("%w: no CERTIFICATE block found", ErrMalformedCertificate)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCertificate, err)
	}

	cn := cert.Subject.CommonName
	if cn == "" {
		return "", ErrMissingCommonName
	}

	return cn, nil
}
