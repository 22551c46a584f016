package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainguard/api/internal/config"
	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/infrastructure/otpcode"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/validation"
	"github.com/chainguard/api/internal/repository"
)

const defaultConfirmationTimeout = 30 * time.Second

// Service issues and verifies split email/SMS one-time codes.
type Service struct {
	cfg    config.OTPConfig
	users  UserRepository
	otps   OTPRepository
	audit  AuditRepository
	email  EmailSender
	sms    SMSSender
	codes  CodeGenerator
	logger *zap.Logger
	now    func() time.Time

	background sync.WaitGroup
}

// NewService creates an OTP service backed by crypto/rand codes.
func NewService(
	cfg config.OTPConfig,
	users UserRepository,
	otps OTPRepository,
	audit AuditRepository,
	email EmailSender,
	sms SMSSender,
	logger *zap.Logger,
) *Service {
	return NewServiceWithDeps(cfg, users, otps, audit, email, sms, otpcode.Generator{}, logger)
}

// NewServiceWithDeps creates an OTP service with an explicit code generator (for testing)
func NewServiceWithDeps(
	cfg config.OTPConfig,
	users UserRepository,
	otps OTPRepository,
	audit AuditRepository,
	email EmailSender,
	sms SMSSender,
	codes CodeGenerator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaultConfirmationTimeout
	}
	return &Service{
		cfg:    cfg,
		users:  users,
		otps:   otps,
		audit:  audit,
		email:  email,
		sms:    sms,
		codes:  codes,
		logger: logger.Named("otp"),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuance and expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Wait blocks until every pending confirmation email has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// SendRequest starts verification for a registered user
type SendRequest struct {
	UserID      string `json:"userId" binding:"required,uuid"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required,e164"`
}

// ResendRequest carries the same fields as SendRequest
type ResendRequest = SendRequest

// SendResponse reports per-channel delivery
type SendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	EmailSent bool   `json:"emailSent"`
	SMSSent   bool   `json:"smsSent"`
	ExpiresIn string `json:"expiresIn,omitempty"`
}

// VerifyRequest submits both halves of a code pair
type VerifyRequest struct {
	UserID   string `json:"userId" binding:"required,uuid"`
	EmailOTP string `json:"emailOTP" binding:"required,numeric"`
	PhoneOTP string `json:"phoneOTP" binding:"required,numeric"`
}

// VerifyResponse for a successful verification
type VerifyResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

// StatusResponse projects the user's most recent record
type StatusResponse struct {
	Success    bool      `json:"success"`
	IsVerified bool      `json:"isVerified"`
	IsExpired  bool      `json:"isExpired"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Send issues a fresh code pair and delivers it over email and SMS.
// On a delivery failure both the response and a DeliveryFailure error are returned.
func (s *Service) Send(ctx context.Context, req SendRequest, clientIP, userAgent string) (*SendResponse, error) {
	return s.issue(ctx, req, opSend, clientIP, userAgent)
}

// Resend invalidates every active record for the user before issuing a new pair.
func (s *Service) Resend(ctx context.Context, req ResendRequest, clientIP, userAgent string) (*SendResponse, error) {
	return s.issue(ctx, req, opResend, clientIP, userAgent)
}

func (s *Service) issue(ctx context.Context, req SendRequest, operation, clientIP, userAgent string) (*SendResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, validationError("userId, email and phoneNumber are required", fields)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, validationError("userId is not a valid UUID", map[string]string{"userId": "must be a valid UUID"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, userNotFoundError()
		}
		s.logger.Error("Failed to load user", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, persistenceError(err)
	}
	// Codes only go to the channels registered on the account.
	if fields := channelMismatch(user, email, req.PhoneNumber); fields != nil {
		return nil, validationError("email and phoneNumber must match the account", fields)
	}

	if operation == opResend {
		n, err := s.otps.InvalidateAllActiveForUser(ctx, userID)
		if err != nil {
			s.logger.Error("Failed to invalidate active OTPs", zap.String("user_id", userID.String()), zap.Error(err))
			return nil, persistenceError(err)
		}
		s.logger.Debug("Invalidated active OTPs", zap.String("user_id", userID.String()), zap.Int64("count", n))
	}

	emailCode, err := s.codes.Generate(s.cfg.Digits)
	if err != nil {
		s.logger.Error("Failed to generate email code", zap.Error(err))
		return nil, apperror.InternalError("Could not generate verification codes", "Try again later").WithError(err)
	}
	phoneCode, err := s.codes.Generate(s.cfg.Digits)
	if err != nil {
		s.logger.Error("Failed to generate phone code", zap.Error(err))
		return nil, apperror.InternalError("Could not generate verification codes", "Try again later").WithError(err)
	}

	rec := domain.NewOTPRecord(userID, email, req.PhoneNumber, emailCode, phoneCode, s.now(), s.cfg.TTL)
	if err := s.otps.Issue(ctx, rec); err != nil {
		s.logger.Error("Failed to store OTP", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, persistenceError(err)
	}
	otpIssuedTotal.WithLabelValues(operation).Inc()

	emailErr, smsErr := s.dispatch(ctx, rec)

	resp := &SendResponse{
		EmailSent: emailErr == nil,
		SMSSent:   smsErr == nil,
		ExpiresIn: fmt.Sprintf("%d minutes", int(s.cfg.TTL.Minutes())),
	}
	metadata := map[string]interface{}{
		"operation":  operation,
		"otp_id":     rec.ID.String(),
		"email_sent": resp.EmailSent,
		"sms_sent":   resp.SMSSent,
	}

	if emailErr != nil || smsErr != nil {
		resp.Message = "Failed to send OTP"
		s.logEvent(ctx, "otp_issued", userID.String(), email, clientIP, userAgent, false, "delivery_failed", metadata)
		return resp, deliveryError(emailErr, smsErr)
	}

	resp.Success = true
	if operation == opResend {
		resp.Message = "New OTP sent successfully"
	} else {
		resp.Message = "OTP sent successfully to email and phone"
	}
	s.logEvent(ctx, "otp_issued", userID.String(), email, clientIP, userAgent, true, "", metadata)
	s.logger.Info("OTP issued",
		zap.String("user_id", userID.String()),
		zap.String("otp_id", rec.ID.String()),
		zap.String("operation", operation),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return resp, nil
}

// dispatch sends both codes concurrently. A failure on one channel does not
// cancel the other, and a client disconnect does not abort delivery of a
// record that is already stored.
func (s *Service) dispatch(ctx context.Context, rec *domain.OTPRecord) (emailErr, smsErr error) {
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.Go(func() error {
		emailErr = s.email.SendOTP(ctx, rec.Email, rec.EmailCode)
		return emailErr
	})
	g.Go(func() error {
		smsErr = s.sms.SendOTP(ctx, rec.Phone, rec.PhoneCode)
		return smsErr
	})
	_ = g.Wait()

	if emailErr != nil {
		otpDeliveryFailedTotal.WithLabelValues("email").Inc()
		s.logger.Warn("Email OTP delivery failed", zap.String("user_id", rec.UserID.String()), zap.Error(emailErr))
	}
	if smsErr != nil {
		otpDeliveryFailedTotal.WithLabelValues("sms").Inc()
		s.logger.Warn("SMS OTP delivery failed", zap.String("user_id", rec.UserID.String()), zap.Error(smsErr))
	}
	return emailErr, smsErr
}

// Verify checks both codes against the user's active record and, on a full
// match, marks the record and the user verified.
func (s *Service) Verify(ctx context.Context, req VerifyRequest, clientIP, userAgent string) (*VerifyResponse, error) {
	if fields := validation.Struct(req); fields != nil {
		return nil, validationError("userId, emailOTP and phoneOTP are required", fields)
	}
	if !otpcode.Valid(req.EmailOTP, s.cfg.Digits) || !otpcode.Valid(req.PhoneOTP, s.cfg.Digits) {
		msg := fmt.Sprintf("must be exactly %d digits", s.cfg.Digits)
		return nil, validationError(fmt.Sprintf("Each OTP must be exactly %d digits", s.cfg.Digits),
			map[string]string{"emailOTP": msg, "phoneOTP": msg})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, validationError("userId is not a valid UUID", map[string]string{"userId": "must be a valid UUID"})
	}

	rec, err := s.otps.FindActiveByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to load active OTP", zap.String("user_id", userID.String()), zap.Error(err))
			return nil, persistenceError(err)
		}
		return nil, s.noActiveRecord(ctx, userID, clientIP, userAgent)
	}

	if rec.Verified {
		otpVerifyTotal.WithLabelValues(resultAlreadyVerified).Inc()
		return nil, alreadyVerifiedError()
	}

	if rec.IsExpired(s.now()) {
		otpVerifyTotal.WithLabelValues(resultExpired).Inc()
		s.logEvent(ctx, "otp_verify_failed", userID.String(), rec.Email, clientIP, userAgent, false, "expired",
			map[string]interface{}{"otp_id": rec.ID.String()})
		return nil, expiredError()
	}

	emailMatch, phoneMatch := rec.Matches(req.EmailOTP, req.PhoneOTP)
	if !emailMatch || !phoneMatch {
		otpVerifyTotal.WithLabelValues(resultInvalidCode).Inc()
		s.logEvent(ctx, "otp_verify_failed", userID.String(), rec.Email, clientIP, userAgent, false, "invalid_code",
			map[string]interface{}{"otp_id": rec.ID.String(), "email_match": emailMatch, "phone_match": phoneMatch})
		return nil, invalidCodeError(emailMatch, phoneMatch)
	}

	won, err := s.otps.MarkVerified(ctx, rec.ID, rec.UserID)
	if err != nil {
		s.logger.Error("Failed to mark OTP verified", zap.String("otp_id", rec.ID.String()), zap.Error(err))
		return nil, persistenceError(err)
	}
	if !won {
		otpVerifyTotal.WithLabelValues(resultAlreadyVerified).Inc()
		return nil, alreadyVerifiedError()
	}

	otpVerifyTotal.WithLabelValues(resultVerified).Inc()
	s.logEvent(ctx, "otp_verified", userID.String(), rec.Email, clientIP, userAgent, true, "",
		map[string]interface{}{"otp_id": rec.ID.String()})
	s.logger.Info("OTP verified", zap.String("user_id", userID.String()), zap.String("otp_id", rec.ID.String()))

	s.sendConfirmation(rec.UserID, rec.Email)

	return &VerifyResponse{
		Success:  true,
		Message:  "OTP verified successfully. Your account is now active!",
		Verified: true,
	}, nil
}

// noActiveRecord distinguishes a finished verification from one never started.
func (s *Service) noActiveRecord(ctx context.Context, userID uuid.UUID, clientIP, userAgent string) error {
	latest, err := s.otps.FindLatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to load latest OTP", zap.String("user_id", userID.String()), zap.Error(err))
		return persistenceError(err)
	}
	// Invalidated records are also flagged verified, so the account decides.
	if err == nil && latest.Verified {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to load user", zap.String("user_id", userID.String()), zap.Error(err))
			return persistenceError(err)
		}
		if err == nil && user.IsVerified {
			otpVerifyTotal.WithLabelValues(resultAlreadyVerified).Inc()
			return alreadyVerifiedError()
		}
	}

	otpVerifyTotal.WithLabelValues(resultNotFound).Inc()
	s.logEvent(ctx, "otp_verify_failed", userID.String(), "", clientIP, userAgent, false, "not_found", nil)
	return recordNotFoundError()
}

func channelMismatch(user *domain.User, email, phone string) map[string]string {
	fields := make(map[string]string, 2)
	if !strings.EqualFold(user.Email, email) {
		fields["email"] = "does not match the account"
	}
	if user.PhoneNumber != phone {
		fields["phoneNumber"] = "does not match the account"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *Service) sendConfirmation(userID uuid.UUID, to string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConfirmationTimeout)
		defer cancel()

		if err := s.email.SendVerificationSuccess(ctx, to); err != nil {
			s.logger.Warn("Confirmation email failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}()
}

// Status reports on the user's most recent record without mutating it.
func (s *Service) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, validationError("userId is not a valid UUID", map[string]string{"userId": "must be a valid UUID"})
	}

	rec, err := s.otps.FindLatestByUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, recordNotFoundError()
		}
		s.logger.Error("Failed to load OTP status", zap.String("user_id", userID), zap.Error(err))
		return nil, persistenceError(err)
	}

	return &StatusResponse{
		Success:    true,
		IsVerified: rec.Verified,
		IsExpired:  rec.IsExpired(s.now()),
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

func (s *Service) logEvent(ctx context.Context, eventType, userID, email, clientIP, userAgent string, success bool, failureReason string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
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
