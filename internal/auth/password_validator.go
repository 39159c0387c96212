package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum allowed password length
	MinPasswordLength = 6
	// MaxPasswordLength is the maximum allowed password length
	MaxPasswordLength = 16
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// PasswordValidationError represents a specific password validation failure
type PasswordValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// passwordRules is the policy in check form. Every failed rule is
// reported, so a caller sees the full list at once instead of fixing
// one problem per attempt.
var passwordRules = []struct {
	message string
	ok      func(string) bool
}{
	{
		message: "Password must be between 6 and 16 characters long",
		ok: func(p string) bool {
			return len(p) >= MinPasswordLength && len(p) <= MaxPasswordLength
		},
	},
	{
		message: "Password must contain at least one letter",
		ok:      func(p string) bool { return containsClass(p, unicode.IsLetter) },
	},
	{
		message: "Password must contain at least one number",
		ok:      func(p string) bool { return containsClass(p, unicode.IsDigit) },
	},
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}

// PasswordValidator handles password validation and hashing
type PasswordValidator struct{}

// NewPasswordValidator creates a new PasswordValidator instance
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{}
}

// ValidatePassword checks the password against every policy rule and
// returns one error per failed rule, empty when the password is valid.
func (v *PasswordValidator) ValidatePassword(password string) []PasswordValidationError {
	var errs []PasswordValidationError
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			errs = append(errs, PasswordValidationError{
				Field:   "password",
				Message: rule.message,
			})
		}
	}
	return errs
}

// IsValidPassword returns true if the password meets all requirements
func (v *PasswordValidator) IsValidPassword(password string) bool {
	return len(v.ValidatePassword(password)) == 0
}

// HashPassword creates a bcrypt hash of the password. bcrypt salts
// every hash, so equal passwords produce distinct hashes.
func (v *PasswordValidator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a password with its bcrypt hash.
// Returns nil if they match, error otherwise.
func (v *PasswordValidator) VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
