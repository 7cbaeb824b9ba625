package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	sessionTokenBytes = 32
	idBytes           = 16
)

// IssueToken returns an opaque URL-safe session token with 256 bits of entropy
func IssueToken() (string, error) {
	return randomURLString(sessionTokenBytes)
}

// NewID returns an opaque URL-safe identifier for users and chats
func NewID() (string, error) {
	return randomURLString(idBytes)
}

func randomURLString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
