package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Report repository errors
var (
	ErrReportNotFound = errors.New("report not found")
)

// ReportRepository defines the interface for report data access.
// The count operations back the abuse-gate window checks.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	List(ctx context.Context) ([]Report, error)
	CountByReporterAndTarget(ctx context.Context, reporterID uuid.UUID, targetID string, since time.Time) (int, error)
	CountByReporter(ctx context.Context, reporterID uuid.UUID, since time.Time) (int, error)
	CountForTarget(ctx context.Context, targetID string, since time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// reportRepository implements ReportRepository using PostgreSQL
type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository instance
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

// Create inserts a report. Reports are never updated.
func (r *reportRepository) Create(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO reports (reporter_id, target_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query,
		report.ReporterID,
		report.TargetID,
		report.Reason,
	).Scan(&report.ID, &report.CreatedAt)
}

// List retrieves all reports, newest first
func (r *reportRepository) List(ctx context.Context) ([]Report, error) {
	query := `
		SELECT id, reporter_id, target_id, reason, created_at
		FROM reports
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var report Report
		if err := rows.Scan(
			&report.ID,
			&report.ReporterID,
			&report.TargetID,
			&report.Reason,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// CountByReporterAndTarget counts reports one reporter filed against one
// target since the given time. Backs duplicate-target suppression.
func (r *reportRepository) CountByReporterAndTarget(ctx context.Context, reporterID uuid.UUID, targetID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reports
		WHERE reporter_id = $1 AND target_id = $2 AND created_at >= $3
	`
	return r.count(ctx, query, reporterID, targetID, since)
}

// CountByReporter counts reports one reporter filed since the given time.
// Backs the per-reporter daily cap.
func (r *reportRepository) CountByReporter(ctx context.Context, reporterID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reports
		WHERE reporter_id = $1 AND created_at >= $2
	`
	return r.count(ctx, query, reporterID, since)
}

// CountForTarget counts reports filed against one target since the given
// time, across all reporters. Backs the target-saturation gate.
func (r *reportRepository) CountForTarget(ctx context.Context, targetID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reports
		WHERE target_id = $1 AND created_at >= $2
	`
	return r.count(ctx, query, targetID, since)
}

func (r *reportRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a report (admin moderation only)
func (r *reportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}
