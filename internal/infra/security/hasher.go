package security

import (
	"fmt"
	"strings"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
)

const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmArgon2 = "argon2id"
)

// Hasher writes new hashes with the preferred algorithm and verifies hashes
// produced by either algorithm.
type Hasher struct {
	preferred port.SecretHasher
	bcrypt    *BcryptHasher
	argon     *Argon2Hasher
}

// NewHasher builds a Hasher preferring algorithm.
func NewHasher(algorithm string, bcryptCost int, argonCfg Argon2Config) (*Hasher, error) {
	bc, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}
	ar, err := NewArgon2Hasher(argonCfg)
	if err != nil {
		return nil, err
	}

	h := &Hasher{bcrypt: bc, argon: ar}
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		h.preferred = bc
	case AlgorithmArgon2, "argon2":
		h.preferred = ar
	default:
		return nil, fmt.Errorf("security: unknown hash algorithm %q", algorithm)
	}
	return h, nil
}

// Hash encodes secret with the preferred algorithm.
func (h *Hasher) Hash(secret string) (string, error) {
	return h.preferred.Hash(secret)
}

// Verify dispatches on the encoded hash prefix.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	switch {
	case isBcryptHash(encoded):
		return h.bcrypt.Verify(secret, encoded)
	case isArgon2Hash(encoded):
		return h.argon.Verify(secret, encoded)
	case encoded == "":
		return false, nil
	default:
		return false, errInvalidHashFormat
	}
}

var (
	_ port.SecretHasher = (*Hasher)(nil)
	_ port.SecretHasher = (*BcryptHasher)(nil)
	_ port.SecretHasher = (*Argon2Hasher)(nil)
)
