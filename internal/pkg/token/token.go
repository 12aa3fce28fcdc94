package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// verificationBytes gives 128 bits of entropy per token.
const verificationBytes = 16

// NewVerificationToken generates a cryptographically random 32-character hex token.
func NewVerificationToken() (string, error) {
	b := make([]byte, verificationBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
