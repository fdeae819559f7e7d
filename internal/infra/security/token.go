package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

const (
	otpLowerBound = 100000
	otpUpperBound = 999999
)

// OTPGenerator draws six-digit reset codes from a cryptographic source.
type OTPGenerator struct {
	reader io.Reader
}

// NewOTPGenerator returns a generator backed by crypto/rand.
func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{reader: rand.Reader}
}

// Generate returns a code uniformly distributed over [100000, 999999].
func (g *OTPGenerator) Generate() (string, error) {
	reader := rand.Reader
	if g != nil && g.reader != nil {
		reader = g.reader
	}

	span := big.NewInt(otpUpperBound - otpLowerBound + 1)
	n, err := rand.Int(reader, span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return strconv.FormatInt(n.Int64()+otpLowerBound, 10), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
// The digest is deterministic; stores compare-and-swap on it.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TokenHashesEqual compares two hex digests in constant time.
func TokenHashesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
