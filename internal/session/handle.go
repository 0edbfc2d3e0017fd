package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const handleByteLength = 32

// NewResumableHandle generates a cryptographically random opaque token a
// caller can present later to resume this conversation from a different
// connection.
func NewResumableHandle() (string, error) {
	buf := make([]byte, handleByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate resumable handle: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
