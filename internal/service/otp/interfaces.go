package otp

import (
	"context"

	"github.com/google/uuid"

	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/repository"
)

// UserRepository defines user lookups needed by the OTP service
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// OTPRepository defines otp_verifications operations
type OTPRepository interface {
	Issue(ctx context.Context, rec *domain.OTPRecord) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error)
	MarkVerified(ctx context.Context, id, userID uuid.UUID) (bool, error)
	InvalidateAllActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// AuditRepository defines audit logging operations
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}

// EmailSender delivers the email half of a code pair and the confirmation mail.
type EmailSender interface {
	SendOTP(ctx context.Context, to, code string) error
	SendVerificationSuccess(ctx context.Context, to string) error
}

// SMSSender delivers the phone half of a code pair.
type SMSSender interface {
	SendOTP(ctx context.Context, phoneNumber, code string) error
}

// CodeGenerator produces zero-padded numeric codes.
type CodeGenerator interface {
	Generate(digits int) (string, error)
}
