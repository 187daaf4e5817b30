package services

import (
	"crypto/rand"
	"encoding/hex"
)

const invitationTokenBytes = 24

// generateToken returns a random URL-safe invitation token.
func generateToken() (string, error) {
	b := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
