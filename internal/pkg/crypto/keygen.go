package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Token lengths in random bytes. Tokens are hex-encoded, so the string
// form is twice as long.
const (
	// ShareTokenBytes produces a 32-character share token.
	ShareTokenBytes = 16

	// SessionTokenBytes produces a 64-character session token.
	SessionTokenBytes = 32
)

// GenerateShareToken generates the public token for a share link.
func GenerateShareToken() (string, error) {
	return generateHexToken(ShareTokenBytes)
}

// GenerateSessionToken generates an opaque bearer token for a login session.
func GenerateSessionToken() (string, error) {
	return generateHexToken(SessionTokenBytes)
}

// generateHexToken returns n random bytes as a hex string.
func generateHexToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
