package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// MintCSRFToken generates the anti-forgery token minted into a session at
// creation. It is stable for the session's lifetime, not rotated per request.
func MintCSRFToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidateCSRF compares the supplied token against the session's token in
// constant time. Empty supplied tokens always fail.
func ValidateCSRF(sessionToken, supplied string) bool {
	if sessionToken == "" || supplied == "" {
		return false
	}
	if len(sessionToken) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sessionToken), []byte(supplied)) == 1
}
