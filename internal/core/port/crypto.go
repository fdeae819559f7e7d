package port

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string) error
}

// SecretHasher hashes and verifies low-entropy secrets (passwords, security answers, OTPs).
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
}
