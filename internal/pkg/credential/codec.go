// Package credential hashes and verifies account passwords with bcrypt.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretBytes is the longest password bcrypt will accept.
const MaxSecretBytes = 72

// Codec produces salted one-way digests. Digests of the same plaintext differ
// between calls, so they must only ever be compared through Verify.
type Codec struct {
	cost int
}

// NewCodec returns a Codec using cost, or bcrypt.DefaultCost when cost is out of range.
func NewCodec(cost int) *Codec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Codec{cost: cost}
}

// Hash returns the digest for plaintext. An error here means the digest could
// not be produced at all and must never be read as a mismatch.
func (c *Codec) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxSecretBytes {
		return "", fmt.Errorf("hash secret: %w", bcrypt.ErrPasswordTooLong)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. Malformed digests yield false.
func (c *Codec) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
