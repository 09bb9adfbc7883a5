// Package entropy provides the random-value contract for code generation.
// RANDOM and UUID placeholders draw from a Source; the crypto-backed
// implementation is the production default, tests may substitute a
// deterministic one.
package entropy

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Source produces random strings and UUIDs for placeholder substitution.
type Source interface {
	// RandomString returns an alphanumeric string of exactly length characters.
	RandomString(length int) (string, error)

	// UUID returns a new version-4 UUID string.
	UUID() (string, error)
}

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Crypto is a Source backed by crypto/rand.
type Crypto struct{}

// RandomString implements Source.
func (Crypto) RandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("random length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return string(buf), nil
}

// UUID implements Source.
func (Crypto) UUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}

// Ensure compile-time interface compliance.
var _ Source = Crypto{}
