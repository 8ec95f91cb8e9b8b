package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewID returns a 256-bit random session identifier encoded as URL-safe
// base64 without padding.
func NewID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
