// Package account implements user profile operations: public listings,
// profile detail, and self-service bio and password updates.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/auth"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/sanitizer"
)

// MaxBioLength bounds the profile bio
const MaxBioLength = 500

// Account service errors
var (
	ErrBioTooLong       = errors.New("bio is too long")
	ErrWrongPassword    = errors.New("current password is incorrect")
	ErrUserNotFound     = repository.ErrUserNotFound
	ErrAccountSuspended = auth.ErrAccountSuspended
)

// Service handles account profile business logic
type Service struct {
	repo      repository.UserRepository
	passwords *auth.PasswordValidator
	logger    *slog.Logger
}

// NewService creates a new account Service instance
func NewService(repo repository.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		passwords: auth.NewPasswordValidator(),
		logger:    logger,
	}
}

// ListActive returns all non-suspended users. Suspended accounts are
// hidden from public listings but remain visible to moderation.
func (s *Service) ListActive(ctx context.Context) ([]repository.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]repository.User, 0, len(users))
	for _, u := range users {
		if !u.IsSuspended() {
			active = append(active, u)
		}
	}
	return active, nil
}

// Get returns a user's profile. Suspended accounts resolve as not
// found for everyone except the account owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (*repository.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSuspended() && user.ID != requesterID {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateBio sanitizes and stores a user's bio
func (s *Service) UpdateBio(ctx context.Context, userID uuid.UUID, bio string) (*repository.User, error) {
	bio = strings.TrimSpace(sanitizer.Sanitize(bio))
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, ErrBioTooLong
	}

	if err := s.repo.UpdateBio(ctx, userID, bio); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID)
}

// UpdatePassword changes a user's password after verifying the current
// one. The new password must satisfy the registration password policy;
// policy failures are returned as field-level validation errors.
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) ([]auth.PasswordValidationError, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.passwords.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return nil, ErrWrongPassword
	}

	if verrs := s.passwords.ValidatePassword(newPassword); len(verrs) > 0 {
		return verrs, nil
	}

	hash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return nil, err
	}

	s.logger.Info("password updated", "user_id", userID)
	return nil, nil
}
