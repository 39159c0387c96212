// Package report implements abuse-report filing. Filing is not a plain
// insert: four gates run in a fixed order so callers always see
// deterministic error messages.
package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/sanitizer"
)

// Report filing limits
const (
	MaxTargetIDLength     = 36
	MaxReasonLength       = 500
	DailyReportLimit      = 5
	SameTargetWindow      = 24 * time.Hour
	TargetReportThreshold = 10
)

// Report service errors
var (
	ErrTargetRequired    = errors.New("report target is required")
	ErrTargetTooLong     = errors.New("report target is too long")
	ErrReasonRequired    = errors.New("report reason is required")
	ErrReasonTooLong     = errors.New("report reason is too long")
	ErrDuplicateReport   = errors.New("target already reported recently by this reporter")
	ErrDailyLimitReached = errors.New("daily report limit reached")
	ErrTargetUnderReview = errors.New("target already has enough reports and is under review")
)

// Service handles report filing and listing
type Service struct {
	reportRepo repository.ReportRepository
	logger     *slog.Logger
}

// NewService creates a new report Service instance
func NewService(reportRepo repository.ReportRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reportRepo: reportRepo,
		logger:     logger,
	}
}

// File validates a report against four gates, in order, then creates it:
//
//  1. Shape: target non-empty and at most 36 characters, reason
//     non-empty and at most 500 characters.
//  2. Duplicate suppression: the same reporter may not report the same
//     target twice within 24 hours.
//  3. Daily cap: at most 5 reports per reporter since UTC midnight.
//  4. Target saturation: a target with 10 or more reports in the
//     trailing 24 hours is already under review; further reports
//     against it are suppressed.
//
// The window checks are check-then-act: concurrent filings from the
// same reporter can race past the caps. The caps are advisory, so this
// race is tolerated rather than serialized.
func (s *Service) File(ctx context.Context, reporterID uuid.UUID, targetID, reason string) (*repository.Report, error) {
	targetID = strings.TrimSpace(sanitizer.Sanitize(targetID))
	reason = strings.TrimSpace(sanitizer.Sanitize(reason))

	if targetID == "" {
		metrics.ReportsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ErrTargetRequired
	}
	if utf8.RuneCountInString(targetID) > MaxTargetIDLength {
		metrics.ReportsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ErrTargetTooLong
	}
	if reason == "" {
		metrics.ReportsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ErrReasonRequired
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		metrics.ReportsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ErrReasonTooLong
	}

	now := time.Now().UTC()
	windowStart := now.Add(-SameTargetWindow)

	duplicates, err := s.reportRepo.CountByReporterAndTarget(ctx, reporterID, targetID, windowStart)
	if err != nil {
		return nil, err
	}
	if duplicates > 0 {
		metrics.ReportsRejectedTotal.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateReport
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dailyCount, err := s.reportRepo.CountByReporter(ctx, reporterID, startOfDay)
	if err != nil {
		return nil, err
	}
	if dailyCount >= DailyReportLimit {
		metrics.ReportsRejectedTotal.WithLabelValues("daily_limit").Inc()
		return nil, ErrDailyLimitReached
	}

	targetCount, err := s.reportRepo.CountForTarget(ctx, targetID, windowStart)
	if err != nil {
		return nil, err
	}
	if targetCount >= TargetReportThreshold {
		metrics.ReportsRejectedTotal.WithLabelValues("under_review").Inc()
		return nil, ErrTargetUnderReview
	}

	report := &repository.Report{
		ReporterID: reporterID,
		TargetID:   targetID,
		Reason:     reason,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info("report filed", "report_id", report.ID, "reporter_id", reporterID)
	metrics.ReportsFiledTotal.Inc()
	return report, nil
}

// List returns all reports, newest first (admin use)
func (s *Service) List(ctx context.Context) ([]repository.Report, error) {
	return s.reportRepo.List(ctx)
}

// Delete removes a report (admin use)
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.reportRepo.Delete(ctx, id)
}
