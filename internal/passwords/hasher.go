// Package passwords hashes and verifies account passwords with bcrypt.
package passwords

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest password bcrypt accepts, in bytes.
const MaxLength = 72

// Hasher produces salted bcrypt hashes. Every Hash call draws a fresh salt,
// so two hashes of the same password never compare equal; use Verify.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, clamped to bcrypt's valid range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
// bcrypt compares only the first MaxLength bytes, so longer input is
// rejected; the comparison still runs to keep timing uniform.
func (h *Hasher) Verify(plaintext, hash string) bool {
	ok := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
	return ok && len(plaintext) <= MaxLength
}
