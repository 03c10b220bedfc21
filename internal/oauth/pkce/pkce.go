// Package pkce generates the artifacts for the OAuth 2.0 authorization code
// flow with Proof Key for Code Exchange (RFC 7636): code verifier, S256 code
// challenge and the anti-CSRF state token.
//
// Pure and stateless; callers persist the artifacts via the session store.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	// VerifierMinLength / VerifierMaxLength per RFC 7636 §4.1.
	VerifierMinLength = 43
	VerifierMaxLength = 128

	// unreserved is the allowed verifier alphabet per RFC 7636 §4.1.
	unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

	stateEntropyBytes = 16
)

// GenerateVerifier returns a code verifier of random length in
// [VerifierMinLength, VerifierMaxLength] drawn from the unreserved set.
func GenerateVerifier() (string, error) {
	span := big.NewInt(int64(VerifierMaxLength - VerifierMinLength + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("pkce: generate verifier length: %w", err)
	}
	length := VerifierMinLength + int(n.Int64())

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: generate verifier: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = unreserved[int(b)%len(unreserved)]
	}
	return string(out), nil
}

// Challenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a random state token for CSRF correlation of the
// redirect round trip.
func GenerateState() (string, error) {
	buf := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
