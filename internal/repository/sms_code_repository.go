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
	ErrSMSCodeNotFound = errors.New("verification code not found")
)

// SMSCodeRepository defines the interface for SMS verification code
// data access. A user has at most one active code: creating a new one
// replaces whatever was pending.
type SMSCodeRepository interface {
	Replace(ctx context.Context, code *domain.SMSCode) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.SMSCode, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

type smsCodeRepository struct {
	db *sql.DB
}

// NewSMSCodeRepository creates a new instance of SMSCodeRepository
func NewSMSCodeRepository(db *sql.DB) SMSCodeRepository {
	return &smsCodeRepository{db: db}
}

// Replace deletes any pending code of the user and inserts the new one
func (r *smsCodeRepository) Replace(ctx context.Context, code *domain.SMSCode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := `DELETE FROM sms_codes WHERE user_id = $1 AND verified_at IS NULL`
	if _, err := tx.ExecContext(ctx, deleteQuery, code.UserID); err != nil {
		return fmt.Errorf("failed to delete pending codes: %w", err)
	}

	insertQuery := `
		INSERT INTO sms_codes (id, user_id, phone, code, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(
		ctx,
		insertQuery,
		code.ID,
		code.UserID,
		code.Phone,
		code.Code,
		code.ExpiresAt,
		code.Attempts,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verification code: %w", err)
	}

	return nil
}

// FindActiveByUser retrieves the pending (unverified) code of a user
func (r *smsCodeRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.SMSCode, error) {
	query := `
		SELECT id, user_id, phone, code, expires_at, attempts, verified_at, created_at
		FROM sms_codes
		WHERE user_id = $1 AND verified_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	code := &domain.SMSCode{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&code.ID,
		&code.UserID,
		&code.Phone,
		&code.Code,
		&code.ExpiresAt,
		&code.Attempts,
		&code.VerifiedAt,
		&code.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSMSCodeNotFound
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}

	return code, nil
}

// IncrementAttempts bumps the failed-attempt counter and returns the
// new value
func (r *smsCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE sms_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSMSCodeNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	return attempts, nil
}

// MarkVerified spends the code so it cannot be redeemed again
func (r *smsCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE sms_codes
		SET verified_at = $2
		WHERE id = $1 AND verified_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark code verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSMSCodeNotFound
	}

	return nil
}
