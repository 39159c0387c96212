package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/sanitizer"
)

// Auth service errors
var (
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrUserNotFound       = errors.New("user not found")
)

// Error codes for API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	CodeAuthTokenMissing   = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid   = "AUTH_TOKEN_INVALID"
)

// Lockout state machine constants. The lockout duration is fixed, not
// an exponential backoff; any successful login fully resets the streak.
const (
	MaxFailedAttempts = 5
	LockoutDuration   = 300 * time.Second
)

// usernameRegex enforces 5-10 characters of letters, digits, underscore
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{5,10}$`)

// AccountLockedError carries the seconds remaining until the lockout
// expires. errors.Is(err, ErrAccountLocked) matches it.
type AccountLockedError struct {
	RetryAfter int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", e.RetryAfter)
}

// Is makes the error match ErrAccountLocked
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// CredentialsError carries the number of attempts left before lockout.
// errors.Is(err, ErrInvalidCredentials) matches it.
type CredentialsError struct {
	AttemptsLeft int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid username or password, %d attempts left", e.AttemptsLeft)
}

// Is makes the error match ErrInvalidCredentials
func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuthService handles registration and the login lockout state machine
type AuthService struct {
	userRepo          repository.UserRepository
	passwordValidator *PasswordValidator
	logger            *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(userRepo repository.UserRepository, passwordValidator *PasswordValidator, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:          userRepo,
		passwordValidator: passwordValidator,
		logger:            logger,
	}
}

// Register creates a new user account. Usernames are 5-10 characters of
// letters, digits, and underscore, and must be globally unique.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*repository.User, []ValidationError, error) {
	username := sanitizer.Sanitize(req.Username)
	password := sanitizer.Sanitize(req.Password)

	var validationErrors []ValidationError

	if !usernameRegex.MatchString(username) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "username",
			Message: "Username must be 5-10 characters of letters, digits, and underscore",
		})
	}

	for _, err := range s.passwordValidator.ValidatePassword(password) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field,
			Message: err.Message,
		})
	}

	if len(validationErrors) > 0 {
		return nil, validationErrors, nil
	}

	exists, err := s.userRepo.UsernameExists(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrUsernameExists
	}

	passwordHash, err := s.passwordValidator.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &repository.User{
		Username:     username,
		PasswordHash: passwordHash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameAlreadyExists) {
			return nil, nil, ErrUsernameExists
		}
		return nil, nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil, nil
}

// Login runs the lockout state machine for one attempt:
//
//  1. Unknown username fails generically without touching any counter.
//  2. A locked account rejects with the remaining seconds; the password
//     is not checked while locked.
//  3. A password mismatch increments the counter; the fifth consecutive
//     failure locks the account for the lockout duration.
//  4. A match resets the counter and lockout, then suspension is
//     checked last: a suspended account never logs in.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*repository.User, error) {
	username := sanitizer.Sanitize(req.Username)
	password := sanitizer.Sanitize(req.Password)

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Generic failure; no counter exists to touch, and the
			// response must not reveal whether the username exists.
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()
	if user.LockoutUntil != nil && user.LockoutUntil.After(now) {
		remaining := int(user.LockoutUntil.Sub(now).Seconds())
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		return nil, &AccountLockedError{RetryAfter: remaining}
	}

	if err := s.passwordValidator.VerifyPassword(password, user.PasswordHash); err != nil {
		attempts := user.FailedAttempts + 1
		if err := s.userRepo.UpdateFailedAttempts(ctx, user.ID, attempts); err != nil {
			return nil, err
		}

		if attempts >= MaxFailedAttempts {
			lockoutUntil := now.Add(LockoutDuration)
			if err := s.userRepo.SetLockout(ctx, user.ID, lockoutUntil); err != nil {
				return nil, err
			}
			s.logger.Warn("account locked after repeated failures", "user_id", user.ID)
			metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
			metrics.AccountLockoutsTotal.Inc()
			return nil, &AccountLockedError{RetryAfter: int(LockoutDuration.Seconds())}
		}

		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, &CredentialsError{AttemptsLeft: MaxFailedAttempts - attempts}
	}

	if err := s.userRepo.ResetFailedAttempts(ctx, user.ID); err != nil {
		return nil, err
	}
	user.FailedAttempts = 0
	user.LockoutUntil = nil

	// Suspension overrides successful authentication
	if user.IsSuspended() {
		metrics.LoginAttemptsTotal.WithLabelValues("suspended").Inc()
		return nil, ErrAccountSuspended
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}
