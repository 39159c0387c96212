package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// MockUserRepository implements repository.UserRepository in memory
type MockUserRepository struct {
	users      map[uuid.UUID]*repository.User
	byUsername map[string]*repository.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:      make(map[uuid.UUID]*repository.User),
		byUsername: make(map[string]*repository.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) error {
	if _, exists := m.byUsername[user.Username]; exists {
		return repository.ErrUsernameAlreadyExists
	}
	user.ID = uuid.New()
	user.Status = repository.StatusActive
	user.Wallet = repository.DefaultWallet
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	m.byUsername[user.Username] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	user, exists := m.byUsername[username]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]repository.User, error) {
	var result []repository.User
	for _, u := range m.users {
		result = append(result, *u)
	}
	return result, nil
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, exists := m.byUsername[username]
	return exists, nil
}

func (m *MockUserRepository) UpdateFailedAttempts(ctx context.Context, id uuid.UUID, count int) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.FailedAttempts = count
	return nil
}

func (m *MockUserRepository) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.LockoutUntil = &until
	return nil
}

func (m *MockUserRepository) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.FailedAttempts = 0
	user.LockoutUntil = nil
	return nil
}

func (m *MockUserRepository) UpdateBio(ctx context.Context, id uuid.UUID, bio string) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.Bio = bio
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	user, exists := m.users[id]
	if !exists {
		return repository.ErrUserNotFound
	}
	user.Status = status
	return nil
}

func newTestAuthService() (*AuthService, *MockUserRepository) {
	repo := NewMockUserRepository()
	return NewAuthService(repo, NewPasswordValidator(), nil), repo
}

func registerTestUser(t *testing.T, svc *AuthService, username, password string) *repository.User {
	t.Helper()
	user, verrs, err := svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(verrs) > 0 {
		t.Fatalf("Register validation errors: %v", verrs)
	}
	return user
}

func TestRegister(t *testing.T) {
	svc, _ := newTestAuthService()

	user := registerTestUser(t, svc, "alice1", "secret123")
	if user.Username != "alice1" {
		t.Errorf("username = %q, want %q", user.Username, "alice1")
	}
	if user.Wallet != repository.DefaultWallet {
		t.Errorf("wallet = %d, want %d", user.Wallet, repository.DefaultWallet)
	}
	if user.PasswordHash == "secret123" {
		t.Error("password stored in plaintext")
	}
	if user.IsSuspended() {
		t.Error("new account must start active")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "abcd", "secret123"},
		{"username too long", "abcdefghijk", "secret123"},
		{"username bad characters", "al ce!", "secret123"},
		{"password too short", "alice1", "a1"},
		{"password without digit", "alice1", "secretsecret"},
		{"password without letter", "alice1", "123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, verrs, err := svc.Register(context.Background(), RegisterRequest{
				Username: tt.username,
				Password: tt.password,
			})
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if user != nil {
				t.Error("invalid registration must not create a user")
			}
			if len(verrs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestRegisterSanitizesUsername(t *testing.T) {
	svc, repo := newTestAuthService()

	registerTestUser(t, svc, "<b>alice1</b>", "secret123")
	if _, err := repo.GetByUsername(context.Background(), "alice1"); err != nil {
		t.Errorf("sanitized username not stored: %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService()

	registerTestUser(t, svc, "alice1", "secret123")
	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice1",
		Password: "other5678",
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("err = %v, want ErrUsernameExists", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestAuthService()
	registered := registerTestUser(t, svc, "alice1", "secret123")

	user, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("logged in as %s, want %s", user.ID, registered.ID)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Login(context.Background(), LoginRequest{Username: "nobody1", Password: "secret123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	// The generic rejection must not leak attempt counts the way a
	// wrong password on a real account does.
	var credErr *CredentialsError
	if errors.As(err, &credErr) {
		t.Error("unknown-user rejection must not carry an attempts counter")
	}
}

func TestLoginLockoutSequence(t *testing.T) {
	svc, repo := newTestAuthService()
	user := registerTestUser(t, svc, "alice1", "secret123")

	// Four wrong passwords count down the remaining attempts.
	for want := MaxFailedAttempts - 1; want >= 1; want-- {
		_, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "wrong9999"})
		var credErr *CredentialsError
		if !errors.As(err, &credErr) {
			t.Fatalf("attempt err = %v, want CredentialsError", err)
		}
		if credErr.AttemptsLeft != want {
			t.Fatalf("AttemptsLeft = %d, want %d", credErr.AttemptsLeft, want)
		}
	}

	// The fifth failure locks the account for the full duration.
	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "wrong9999"})
	var lockErr *AccountLockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("fifth failure err = %v, want AccountLockedError", err)
	}
	if lockErr.RetryAfter != int(LockoutDuration.Seconds()) {
		t.Errorf("RetryAfter = %d, want %d", lockErr.RetryAfter, int(LockoutDuration.Seconds()))
	}

	// The correct password is rejected while the lockout holds.
	_, err = svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "secret123"})
	if !errors.As(err, &lockErr) {
		t.Fatalf("locked login err = %v, want AccountLockedError", err)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Error("AccountLockedError must match ErrAccountLocked")
	}

	// Once the window passes, the correct password logs in and the
	// failure streak resets.
	expired := time.Now().UTC().Add(-time.Second)
	if err := repo.SetLockout(context.Background(), user.ID, expired); err != nil {
		t.Fatalf("SetLockout: %v", err)
	}
	loggedIn, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "secret123"})
	if err != nil {
		t.Fatalf("post-lockout login: %v", err)
	}
	if loggedIn.FailedAttempts != 0 || loggedIn.LockoutUntil != nil {
		t.Error("successful login must clear the failure streak and lockout")
	}
}

func TestLoginSuccessResetsFailureStreak(t *testing.T) {
	svc, repo := newTestAuthService()
	user := registerTestUser(t, svc, "alice1", "secret123")

	for i := 0; i < 2; i++ {
		_, _ = svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "wrong9999"})
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "secret123"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	stored, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0 after success", stored.FailedAttempts)
	}

	// A fresh streak starts over at full attempts.
	_, err = svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "wrong9999"})
	var credErr *CredentialsError
	if !errors.As(err, &credErr) {
		t.Fatalf("err = %v, want CredentialsError", err)
	}
	if credErr.AttemptsLeft != MaxFailedAttempts-1 {
		t.Errorf("AttemptsLeft = %d, want %d", credErr.AttemptsLeft, MaxFailedAttempts-1)
	}
}

func TestLoginSuspendedAccount(t *testing.T) {
	svc, repo := newTestAuthService()
	user := registerTestUser(t, svc, "alice1", "secret123")

	if err := repo.UpdateStatus(context.Background(), user.ID, repository.StatusSuspended); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "secret123"})
	if !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("err = %v, want ErrAccountSuspended", err)
	}

	// Suspension is checked after the password: a wrong password on a
	// suspended account still reads as bad credentials.
	_, err = svc.Login(context.Background(), LoginRequest{Username: "alice1", Password: "wrong9999"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}
