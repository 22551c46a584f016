package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/repository"
)

// UserRepository defines the account operations used by the auth service
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, phoneNumber, walletAddress *string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// AuditRepository defines audit logging operations
type AuditRepository interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}

// PasswordHasher hashes and checks account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenRevoker denylists a token ID until it would have expired anyway.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
}
