package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopmart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrImportJobNotFound = errors.New("import job not found")
	ErrImportJobComplete = errors.New("import job is already complete")
)

// ImportJobRepository defines the interface for import job data access
type ImportJobRepository interface {
	Create(ctx context.Context, job *domain.ImportJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
	List(ctx context.Context) ([]*domain.ImportJob, error)
	// Complete writes the run summary exactly once. The status guard
	// makes the in_progress -> complete transition one-way.
	Complete(ctx context.Context, id uuid.UUID, errCount, warnCount int, log string) error
}

type importJobRepository struct {
	db *sql.DB
}

// NewImportJobRepository creates a new instance of ImportJobRepository
func NewImportJobRepository(db *sql.DB) ImportJobRepository {
	return &importJobRepository{db: db}
}

// Create inserts a new import job in the in_progress state
func (r *importJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, file_name, errors, warnings, log, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.FileName,
		job.Errors,
		job.Warnings,
		job.Log,
		job.Status,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// FindByID retrieves an import job by ID
func (r *importJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	query := `
		SELECT id, file_name, errors, warnings, log, status, created_at, completed_at
		FROM import_jobs
		WHERE id = $1
	`

	job := &domain.ImportJob{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.FileName,
		&job.Errors,
		&job.Warnings,
		&job.Log,
		&job.Status,
		&job.CreatedAt,
		&job.CompletedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImportJobNotFound
		}
		return nil, fmt.Errorf("failed to find import job by ID: %w", err)
	}

	return job, nil
}

// List retrieves all import jobs, newest first
func (r *importJobRepository) List(ctx context.Context) ([]*domain.ImportJob, error) {
	query := `
		SELECT id, file_name, errors, warnings, log, status, created_at, completed_at
		FROM import_jobs
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*domain.ImportJob{}
	for rows.Next() {
		job := &domain.ImportJob{}
		err := rows.Scan(
			&job.ID,
			&job.FileName,
			&job.Errors,
			&job.Warnings,
			&job.Log,
			&job.Status,
			&job.CreatedAt,
			&job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import jobs: %w", err)
	}

	return jobs, nil
}

// Complete finalizes an in-progress job with its run summary
func (r *importJobRepository) Complete(ctx context.Context, id uuid.UUID, errCount, warnCount int, log string) error {
	query := `
		UPDATE import_jobs
		SET errors = $2, warnings = $3, log = $4, status = $5, completed_at = $6
		WHERE id = $1 AND status = $7
	`

	result, err := r.db.ExecContext(ctx, query, id, errCount, warnCount, log,
		domain.ImportStatusComplete, time.Now(), domain.ImportStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to complete import job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either unknown or already completed; disambiguate for the caller
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return ErrImportJobComplete
	}

	return nil
}
