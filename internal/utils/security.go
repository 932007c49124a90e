// Package utils provides shared utility functions across the application.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// GenerateToken generates a secure random token of length bytes, hex encoded.
func GenerateToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}

// HashToken returns the SHA-256 hex digest of a token. Only the hash is
// persisted so a leaked session table cannot be replayed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}
