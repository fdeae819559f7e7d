package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/security"
)

var lettersAndSpaces = regexp.MustCompile(`^[A-Za-z\s]+$`)

// fieldMessages maps "<StructField>.<tag>" to the message shown to the client.
var fieldMessages = map[string]string{
	"FirstName.required":        "First name is required.",
	"FirstName.max":             "First name max 50 chars.",
	"FirstName.alphaspace":      "First name: letters only.",
	"LastName.required":         "Last name is required.",
	"LastName.max":              "Last name max 50 chars.",
	"LastName.alphaspace":       "Last name: letters only.",
	"DOB.required":              "Date of birth is required.",
	"DOB.isodate":               "Invalid date format.",
	"Gender.required":           "Gender is required.",
	"Gender.oneof":              "Invalid gender value.",
	"ContactNo.required":        "Contact number is required.",
	"ContactNo.len":             "Contact must be exactly 10 digits.",
	"ContactNo.digits":          "Contact must be exactly 10 digits.",
	"Email.required":            "Email is required.",
	"Email.email":               "Invalid email address.",
	"Password.required":         "Password is required.",
	"SecurityQuestion.required": "Security question is required.",
	"SecurityAnswer.required":   "Security answer is required.",
	"SecurityAnswer.max":        "Security answer max 100 chars.",
	"SecurityAnswer.answer":     "Security answer is too long.",
	"OTP.required":              "OTP is required.",
	"OTP.len":                   "OTP must be 6 digits.",
	"OTP.digits":                "OTP must contain only digits.",
	"NewPassword.required":      "New password is required.",
	"ResetToken.required":       "Reset token is required.",
	"RefreshToken.required":     "Refresh token required.",
}

// InputValidator applies struct tag rules and the password policy, reporting only the
// first violation in field order.
type InputValidator struct {
	validate *validator.Validate
	policy   port.PasswordPolicyValidator
}

// NewInputValidator registers the custom tags on a fresh validator. A nil policy selects
// the default five-rule password policy.
func NewInputValidator(policy port.PasswordPolicyValidator) *InputValidator {
	if policy == nil {
		policy = security.DefaultPasswordValidator()
	}

	v := validator.New()
	_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return lettersAndSpaces.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return isDigits(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return isISODate(fl.Field().String())
	})
	_ = v.RegisterValidation("answer", func(fl validator.FieldLevel) bool {
		return len(normalizeAnswer(fl.Field().String())) <= security.MaxSecretBytes
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return policy.Validate(fl.Field().String()) == nil
	})

	return &InputValidator{validate: v, policy: policy}
}

// Struct validates in and converts the first failure into a *ValidationError.
func (iv *InputValidator) Struct(in any) error {
	err := iv.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}

	fe := fieldErrs[0]
	if fe.Tag() == "password" {
		if perr := iv.policy.Validate(fmt.Sprint(fe.Value())); perr != nil {
			return &ValidationError{Field: fe.Field(), Message: perr.Error()}
		}
	}
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("%s is invalid.", fe.Field())}
}

// Password applies only the password policy.
func (iv *InputValidator) Password(field, password string) error {
	if err := iv.policy.Validate(password); err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isISODate accepts a calendar date or a full RFC 3339 timestamp.
func isISODate(s string) bool {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
