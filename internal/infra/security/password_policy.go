package security

const defaultMinPasswordLength = 8

// MaxSecretBytes is the longest secret bcrypt will hash.
const MaxSecretBytes = 72

// DefaultPasswordValidator enforces the account password policy: eight characters to
// MaxSecretBytes bytes, with an uppercase letter, a lowercase letter, a digit and a special
// character. Every rule must hold; the first violation is reported.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(passwordRules(0)...)
}

// NewPasswordPolicy returns the default rules followed by a zxcvbn strength check
// when minStrengthScore is positive.
func NewPasswordPolicy(minStrengthScore int) *PasswordValidator {
	return NewPasswordValidator(passwordRules(minStrengthScore)...)
}

func passwordRules(minStrengthScore int) []PasswordRule {
	rules := []PasswordRule{
		RequiredRule("Password is required."),
		MinLengthRule(defaultMinPasswordLength),
		MaxBytesRule(MaxSecretBytes),
		RequireUpperRule(),
		RequireLowerRule(),
		RequireDigitRule(),
		RequireSpecialRule(),
	}
	if minStrengthScore > 0 {
		rules = append(rules, RequirePasswordStrengthRule(minStrengthScore))
	}
	return rules
}
