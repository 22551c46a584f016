package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainguard/api/internal/domain"
)

// OTPRepository stores otp_verifications rows.
type OTPRepository interface {
	// Issue invalidates the user's active records and inserts rec in one transaction.
	Issue(ctx context.Context, rec *domain.OTPRecord) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error)
	// MarkVerified flips the record and its user to verified. It returns false
	// when the record was already verified by someone else.
	MarkVerified(ctx context.Context, id, userID uuid.UUID) (bool, error)
	InvalidateAllActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

const (
	otpColumns = `id, user_id, email, phone, email_otp, phone_otp, created_at, expires_at, is_verified`

	invalidateActiveSQL = `UPDATE otp_verifications SET is_verified = TRUE WHERE user_id = $1 AND is_verified = FALSE`

	// Serializes issuance per user until the transaction ends.
	lockUserSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`
)

func scanOTP(row pgx.Row) (*domain.OTPRecord, error) {
	var rec domain.OTPRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Email, &rec.Phone, &rec.EmailCode, &rec.PhoneCode,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.Verified)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *otpRepository) Issue(ctx context.Context, rec *domain.OTPRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin issue: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockUserSQL, rec.UserID.String()); err != nil {
		return fmt.Errorf("lock user %s: %w", rec.UserID, err)
	}
	if _, err := tx.Exec(ctx, invalidateActiveSQL, rec.UserID); err != nil {
		return fmt.Errorf("invalidate active otp: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO otp_verifications (`+otpColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.UserID, rec.Email, rec.Phone, rec.EmailCode, rec.PhoneCode,
		rec.CreatedAt, rec.ExpiresAt, rec.Verified)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active otp for user %s: %w", rec.UserID, ErrConflict)
		}
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit issue: %w", err)
	}
	return nil
}

func (r *otpRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	return r.findOne(ctx, `
		SELECT `+otpColumns+` FROM otp_verifications
		WHERE user_id = $1 AND is_verified = FALSE
		ORDER BY created_at DESC
		LIMIT 1`, userID)
}

func (r *otpRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	return r.findOne(ctx, `
		SELECT `+otpColumns+` FROM otp_verifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, userID)
}

func (r *otpRepository) findOne(ctx context.Context, query string, userID uuid.UUID) (*domain.OTPRecord, error) {
	rec, err := scanOTP(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("otp for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	return rec, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin verify: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE otp_verifications SET is_verified = TRUE WHERE id = $1 AND is_verified = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit verify: %w", err)
	}
	return true, nil
}

func (r *otpRepository) InvalidateAllActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, invalidateActiveSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate active otp: %w", err)
	}
	return tag.RowsAffected(), nil
}
