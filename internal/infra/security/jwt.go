package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// TokenKind selects the signing key and lifetime of a token.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	TokenKindReset   TokenKind = "reset"
)

// ResetPurpose is the purpose claim carried by password-reset capabilities.
const ResetPurpose = "password-reset"

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultResetTokenTTL   = 5 * time.Minute
	minSecretLength        = 16
)

var (
	// ErrTokenExpired indicates a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// Claims is the payload of every token the service signs.
type Claims struct {
	UserID  string `json:"uid"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// JWTOptions configures a JWTManager.
type JWTOptions struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	// ResetSecret is optional; when empty a key is derived from AccessSecret.
	ResetSecret string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	ResetTTL    time.Duration
}

// JWTManager signs and verifies HS256 tokens with one key per token kind.
type JWTManager struct {
	issuer string
	keys   map[TokenKind][]byte
	ttls   map[TokenKind]time.Duration
	now    func() time.Time
}

// NewJWTManager validates the secrets and builds a manager.
func NewJWTManager(opts JWTOptions) (*JWTManager, error) {
	access := strings.TrimSpace(opts.AccessSecret)
	refresh := strings.TrimSpace(opts.RefreshSecret)
	if len(access) < minSecretLength {
		return nil, fmt.Errorf("jwt: access secret must be at least %d characters", minSecretLength)
	}
	if len(refresh) < minSecretLength {
		return nil, fmt.Errorf("jwt: refresh secret must be at least %d characters", minSecretLength)
	}
	if access == refresh {
		return nil, fmt.Errorf("jwt: access and refresh secrets must differ")
	}

	resetKey := []byte(strings.TrimSpace(opts.ResetSecret))
	if len(resetKey) == 0 {
		derived, err := DeriveKey([]byte(access), ResetPurpose)
		if err != nil {
			return nil, err
		}
		resetKey = derived
	}
	if hmac.Equal(resetKey, []byte(access)) || hmac.Equal(resetKey, []byte(refresh)) {
		return nil, fmt.Errorf("jwt: reset secret must differ from access and refresh secrets")
	}

	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = "wow-auth"
	}

	return &JWTManager{
		issuer: issuer,
		keys: map[TokenKind][]byte{
			TokenKindAccess:  []byte(access),
			TokenKindRefresh: []byte(refresh),
			TokenKindReset:   resetKey,
		},
		ttls: map[TokenKind]time.Duration{
			TokenKindAccess:  durationOr(opts.AccessTTL, defaultAccessTokenTTL),
			TokenKindRefresh: durationOr(opts.RefreshTTL, defaultRefreshTokenTTL),
			TokenKindReset:   durationOr(opts.ResetTTL, defaultResetTokenTTL),
		},
		now: time.Now,
	}, nil
}

// WithClock overrides the time source used for issuing and validating tokens.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	if now != nil {
		m.now = now
	}
	return m
}

// TTL returns the lifetime configured for kind.
func (m *JWTManager) TTL(kind TokenKind) time.Duration {
	return m.ttls[kind]
}

// Issue signs a token of the given kind for userID.
func (m *JWTManager) Issue(kind TokenKind, userID string) (string, time.Time, error) {
	key, ok := m.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("jwt: unknown token kind %q", kind)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("jwt: user id is required")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttls[kind])

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if kind == TokenKindReset {
		claims.Purpose = ResetPurpose
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer, expiry and, for reset tokens, the purpose claim.
func (m *JWTManager) Parse(kind TokenKind, token string) (*Claims, error) {
	key, ok := m.keys[kind]
	if !ok {
		return nil, fmt.Errorf("jwt: unknown token kind %q", kind)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if kind == TokenKindReset && claims.Purpose != ResetPurpose {
		return nil, ErrTokenInvalid
	}
	if kind != TokenKindReset && claims.Purpose != "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// DeriveKey expands secret into a 32 byte key bound to label using HKDF-SHA256.
func DeriveKey(secret []byte, label string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt: cannot derive key from empty secret")
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(label)), out); err != nil {
		return nil, fmt.Errorf("jwt: derive %s key: %w", label, err)
	}
	return out, nil
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
