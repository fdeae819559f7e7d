package security

import (
	"errors"
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const maxStrengthScore = 4

var errValidatorMissing = errors.New("password validator not configured")

// PasswordValidationError is one policy violation. Message is shown to the user as is.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func violation(code, message string) error {
	return &PasswordValidationError{Code: code, Message: message}
}

// PasswordRule checks one property of a password.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc lets a plain function act as a PasswordRule.
type PasswordRuleFunc func(password string) error

func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator runs rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: append([]PasswordRule(nil), rules...)}
}

func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return errValidatorMissing
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

func RequiredRule(message string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if password != "" {
			return nil
		}
		return violation("required", message)
	})
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	message := fmt.Sprintf("Password must be at least %d characters.", min)
	return PasswordRuleFunc(func(password string) error {
		if utf8.RuneCountInString(password) >= min {
			return nil
		}
		return violation("min_length", message)
	})
}

// MaxBytesRule bounds the UTF-8 encoded length. bcrypt refuses secrets longer than
// MaxSecretBytes.
func MaxBytesRule(max int) PasswordRule {
	message := fmt.Sprintf("Password must be at most %d bytes.", max)
	return PasswordRuleFunc(func(password string) error {
		if len(password) <= max {
			return nil
		}
		return violation("max_bytes", message)
	})
}

// charClass is a set of runes of which a password must contain at least one.
type charClass struct {
	code    string
	message string
	member  func(r rune) bool
}

func (c charClass) Validate(password string) error {
	for _, r := range password {
		if c.member(r) {
			return nil
		}
	}
	return violation(c.code, c.message)
}

var (
	upperClass = charClass{"uppercase", "Password must contain an uppercase letter.", func(r rune) bool {
		return 'A' <= r && r <= 'Z'
	}}
	lowerClass = charClass{"lowercase", "Password must contain a lowercase letter.", func(r rune) bool {
		return 'a' <= r && r <= 'z'
	}}
	digitClass = charClass{"digit", "Password must contain a number.", func(r rune) bool {
		return '0' <= r && r <= '9'
	}}
	// Anything outside [A-Za-z0-9] counts, including non-ASCII letters and spaces.
	specialClass = charClass{"special", "Password must contain a special character.", func(r rune) bool {
		return !upperClass.member(r) && !lowerClass.member(r) && !digitClass.member(r)
	}}
)

func RequireUpperRule() PasswordRule   { return upperClass }
func RequireLowerRule() PasswordRule   { return lowerClass }
func RequireDigitRule() PasswordRule   { return digitClass }
func RequireSpecialRule() PasswordRule { return specialClass }

// RequirePasswordStrengthRule rejects passwords zxcvbn scores below minScore (0..4).
// userInputs, such as the email or name, are penalised when they appear in the password.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	minScore = min(minScore, maxStrengthScore)
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score >= minScore {
			return nil
		}
		return violation("weak_password", "Password is too easy to guess; choose a less common one.")
	})
}
