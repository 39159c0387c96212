// Package admin implements the administrator trust domain: a separate
// login against configured credentials, and moderation over users,
// products, reports, and chat. Admin sessions never satisfy user
// endpoints and vice versa.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// Admin service errors
var (
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrProductNotFound    = repository.ErrProductNotFound
	ErrReportNotFound     = repository.ErrReportNotFound
	ErrChatNotFound       = repository.ErrChatNotFound
)

// Target classification for enriched report listings
const (
	TargetTypeUser    = "user"
	TargetTypeProduct = "product"
	TargetTypeUnknown = "unknown"
)

// Service handles admin authentication and moderation
type Service struct {
	username    string
	password    string
	userRepo    repository.UserRepository
	productRepo repository.ProductRepositoryInterface
	reportRepo  repository.ReportRepository
	chatRepo    repository.ChatRepositoryInterface
	logger      *slog.Logger
}

// NewService creates a new admin Service instance. Credentials come
// from deployment configuration, not the users table.
func NewService(
	username, password string,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepositoryInterface,
	reportRepo repository.ReportRepository,
	chatRepo repository.ChatRepositoryInterface,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		username:    username,
		password:    password,
		userRepo:    userRepo,
		productRepo: productRepo,
		reportRepo:  reportRepo,
		chatRepo:    chatRepo,
		logger:      logger,
	}
}

// Authenticate checks the supplied credentials against configuration.
// Comparison is constant time for both fields regardless of which one
// mismatches.
func (s *Service) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// Username returns the configured admin username, used as the token
// subject.
func (s *Service) Username() string {
	return s.username
}

// ListUsers returns every account, including suspended ones
func (s *Service) ListUsers(ctx context.Context) ([]repository.User, error) {
	return s.userRepo.List(ctx)
}

// SuspendUser marks an account suspended. Suspended accounts cannot
// log in and their existing sessions stop working.
func (s *Service) SuspendUser(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.UpdateStatus(ctx, id, repository.StatusSuspended); err != nil {
		return err
	}
	s.logger.Info("user suspended", "user_id", id)
	return nil
}

// RestoreUser reactivates a suspended account
func (s *Service) RestoreUser(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.UpdateStatus(ctx, id, repository.StatusActive); err != nil {
		return err
	}
	s.logger.Info("user restored", "user_id", id)
	return nil
}

// ListProducts returns every listing
func (s *Service) ListProducts(ctx context.Context) ([]repository.Product, error) {
	return s.productRepo.List(ctx)
}

// DeleteProduct removes a listing regardless of owner
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product removed by admin", "product_id", id)
	return nil
}

// EnrichedReport is a report joined with what could be resolved about
// its target. Targets may reference deleted rows, so resolution is
// best effort.
type EnrichedReport struct {
	Report       repository.Report
	TargetType   string
	TargetName   string
	TargetStatus string
}

// ListReports returns all reports with their targets resolved
func (s *Service) ListReports(ctx context.Context) ([]EnrichedReport, error) {
	reports, err := s.reportRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedReport, 0, len(reports))
	for _, report := range reports {
		enriched = append(enriched, EnrichedReport{
			Report: report,
		})
		s.resolveTarget(ctx, &enriched[len(enriched)-1])
	}
	return enriched, nil
}

func (s *Service) resolveTarget(ctx context.Context, er *EnrichedReport) {
	er.TargetType = TargetTypeUnknown

	targetID, err := uuid.Parse(er.Report.TargetID)
	if err != nil {
		return
	}

	if user, err := s.userRepo.GetByID(ctx, targetID); err == nil {
		er.TargetType = TargetTypeUser
		er.TargetName = user.Username
		er.TargetStatus = user.Status
		return
	}
	if product, err := s.productRepo.GetByID(ctx, targetID); err == nil {
		er.TargetType = TargetTypeProduct
		er.TargetName = product.Title
		return
	}
}

// DeleteReport removes a filed report
func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	if err := s.reportRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("report removed by admin", "report_id", id)
	return nil
}

// ListGlobalChats returns the global channel history for moderation
func (s *Service) ListGlobalChats(ctx context.Context, limit int) ([]repository.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.chatRepo.GlobalHistory(ctx, limit)
}

// DeleteChat removes a chat message
func (s *Service) DeleteChat(ctx context.Context, id uuid.UUID) error {
	if err := s.chatRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("chat message removed by admin", "message_id", id)
	return nil
}
