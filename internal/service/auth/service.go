package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/validation"
	"github.com/chainguard/api/internal/repository"
)

type Service struct {
	users   UserRepository
	audit   AuditRepository
	hasher  PasswordHasher
	tokens  *TokenIssuer
	revoker TokenRevoker
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(users UserRepository, audit AuditRepository, hasher PasswordHasher, tokens *TokenIssuer, revoker TokenRevoker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:   users,
		audit:   audit,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		logger:  logger.Named("auth"),
		now:     time.Now,
	}
}

type SignupRequest struct {
	Email         string  `json:"email" binding:"required,email"`
	Password      string  `json:"password" binding:"required,min=6"`
	PhoneNumber   string  `json:"phoneNumber" binding:"required,e164"`
	WalletAddress *string `json:"walletAddress" binding:"omitempty,eth_addr"`
}

type SignupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

type ProfileResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user"`
}

// UpdateProfileRequest changes only the fields that are present
type UpdateProfileRequest struct {
	PhoneNumber   *string `json:"phoneNumber" binding:"omitempty,e164"`
	WalletAddress *string `json:"walletAddress" binding:"omitempty,eth_addr"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func invalidRequest(fields map[string]string) *apperror.AppError {
	return apperror.ValidationError("Request validation failed", "Correct the highlighted fields and try again").
		WithErrors(fields)
}

func invalidCredentials() *apperror.AppError {
	return apperror.AuthenticationError("Invalid email or password", "Check your credentials and try again")
}

func unavailable(err error) *apperror.AppError {
	return apperror.ServiceUnavailableError("Account storage is temporarily unavailable", "Try again later").
		WithError(err)
}

// Signup creates an unverified account. The user must complete OTP
// verification before Login succeeds.
func (s *Service) Signup(ctx context.Context, req SignupRequest, clientIP, userAgent string) (*SignupResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, invalidRequest(fields)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, apperror.InternalError("Could not create account", "Try again later").WithError(err)
	}

	user := &domain.User{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:  hash,
		PhoneNumber:   req.PhoneNumber,
		WalletAddress: req.WalletAddress,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logEvent(ctx, "signup", "", user.Email, clientIP, userAgent, false, "email_exists", nil)
			return nil, apperror.ConflictError("An account with this email already exists", "Log in or use a different email")
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, unavailable(err)
	}

	s.logEvent(ctx, "signup", user.ID.String(), user.Email, clientIP, userAgent, true, "", nil)
	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))

	return &SignupResponse{
		Success: true,
		Message: "User registered successfully. Please verify your email and phone.",
		UserID:  user.ID.String(),
		Email:   user.Email,
	}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest, clientIP, userAgent string) (*LoginResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, invalidRequest(fields)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			authLoginTotal.WithLabelValues("invalid_credentials").Inc()
			s.logEvent(ctx, "login_failed", "", email, clientIP, userAgent, false, "user_not_found", nil)
			return nil, invalidCredentials()
		}
		s.logger.Error("Failed to load user", zap.Error(err))
		return nil, unavailable(err)
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		authLoginTotal.WithLabelValues("invalid_credentials").Inc()
		s.logEvent(ctx, "login_failed", user.ID.String(), email, clientIP, userAgent, false, "invalid_password", nil)
		return nil, invalidCredentials()
	}

	if !user.CanLogin() {
		authLoginTotal.WithLabelValues("unverified").Inc()
		s.logEvent(ctx, "login_failed", user.ID.String(), email, clientIP, userAgent, false, "unverified", nil)
		return nil, apperror.AuthorizationError("Account not verified", "Complete email and phone verification first").
			WithExtension("requiresOTP", true).
			WithExtension("userId", user.ID.String())
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return nil, apperror.InternalError("Could not start session", "Try again later").WithError(err)
	}

	authLoginTotal.WithLabelValues("success").Inc()
	s.logEvent(ctx, "login_success", user.ID.String(), email, clientIP, userAgent, true, "", nil)
	s.logger.Info("Login successful", zap.String("user_id", user.ID.String()), zap.String("client_ip", clientIP))

	return &LoginResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    user,
	}, nil
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFoundError("user")
		}
		return nil, unavailable(err)
	}
	return &ProfileResponse{Success: true, User: user}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*ProfileResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, invalidRequest(fields)
	}
	if req.PhoneNumber == nil && req.WalletAddress == nil {
		return nil, apperror.ValidationError("No fields to update", "Provide phoneNumber or walletAddress")
	}

	user, err := s.users.UpdateProfile(ctx, userID, req.PhoneNumber, req.WalletAddress)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFoundError("user")
		}
		s.logger.Error("Failed to update profile", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, unavailable(err)
	}
	return &ProfileResponse{Success: true, User: user}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest, clientIP, userAgent string) (*MessageResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, invalidRequest(fields)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFoundError("user")
		}
		return nil, unavailable(err)
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		s.logEvent(ctx, "password_change", user.ID.String(), user.Email, clientIP, userAgent, false, "invalid_password", nil)
		return nil, apperror.AuthenticationError("Current password is incorrect", "Re-enter your current password")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, apperror.InternalError("Could not change password", "Try again later").WithError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("Failed to update password", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, unavailable(err)
	}

	s.logEvent(ctx, "password_change", user.ID.String(), user.Email, clientIP, userAgent, true, "", nil)
	return &MessageResponse{Success: true, Message: "Password changed successfully"}, nil
}

// Logout denylists the token's ID for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *Claims) (*MessageResponse, error) {
	if claims.ExpiresAt != nil {
		if ttl := claims.ExpiresAt.Sub(s.now()); ttl > 0 {
			if err := s.revoker.RevokeToken(ctx, claims.ID, ttl); err != nil {
				s.logger.Error("Failed to revoke token", zap.String("user_id", claims.UserID), zap.Error(err))
				return nil, apperror.ServiceUnavailableError("Could not end session", "Try again later").WithError(err)
			}
		}
	}
	return &MessageResponse{Success: true, Message: "Logged out successfully"}, nil
}

func (s *Service) logEvent(ctx context.Context, eventType, userID, email, clientIP, userAgent string, success bool, failureReason string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogEvent(ctx, repository.AuditEvent{
		EventType:     eventType,
		ActorID:       userID,
		ActorEmail:    email,
		ClientIP:      clientIP,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: failureReason,
		Metadata:      metadata,
	})
	if err != nil {
		s.logger.Warn("Failed to write audit event", zap.String("event_type", eventType), zap.Error(err))
	}
}
