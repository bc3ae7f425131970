package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	minNameLength     = 2
	maxNameLength     = 100
	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128

	// Login accepts shorter passwords than registration on purpose:
	// accounts that predate the current password policy must still be able
	// to sign in. Do not unify the two thresholds.
	minLoginPasswordLength = 6
)

// ErrCredentials is the base error wrapped by every CredentialError.
var ErrCredentials = errors.New("auth: invalid credentials input")

// emailShape approximates local@domain.tld. Intentionally simple: the full
// RFC grammar buys nothing for a sign-up form.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CredentialError reports which credential field failed validation and why.
type CredentialError struct {
	Field  string
	Reason string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *CredentialError) Unwrap() error {
	return ErrCredentials
}

func newCredentialError(field, reason string) error {
	return &CredentialError{Field: field, Reason: reason}
}

// ValidateRegistration checks sign-up input. Pure, no I/O.
func ValidateRegistration(name, email, password string) error {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) < minNameLength || len(trimmedName) > maxNameLength {
		return newCredentialError("name", "must be 2-100 characters")
	}
	if err := validateEmailShape(email); err != nil {
		return err
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return newCredentialError("password", "must be 8-128 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return newCredentialError("password", "must contain an uppercase letter, a lowercase letter, and a digit")
	}
	return nil
}

// ValidateLogin checks sign-in input. Looser than registration, see the
// threshold constants above.
func ValidateLogin(email, password string) error {
	if err := validateEmailShape(email); err != nil {
		return err
	}
	if len(password) < minLoginPasswordLength {
		return newCredentialError("password", "must be at least 6 characters")
	}
	return nil
}

func validateEmailShape(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return newCredentialError("email", "must not be empty")
	}
	if len(trimmed) > maxEmailLength {
		return newCredentialError("email", "must be at most 254 characters")
	}
	if !emailShape.MatchString(trimmed) {
		return newCredentialError("email", "must look like local@domain.tld")
	}
	return nil
}
