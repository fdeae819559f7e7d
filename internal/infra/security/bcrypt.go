package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for passwords and security answers.
const DefaultBcryptCost = 12

// BcryptHasher hashes secrets with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher validates cost against the bcrypt bounds.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt: cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns the modular-crypt encoded bcrypt hash of secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: hash: %w", err)
	}
	return string(sum), nil
}

// Verify compares secret with an encoded bcrypt hash.
func (h *BcryptHasher) Verify(secret, encoded string) (bool, error) {
	if secret == "" || encoded == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: verify: %w", err)
	}
}

func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}
