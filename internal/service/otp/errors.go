package otp

import (
	"errors"
	"fmt"

	"github.com/chainguard/api/internal/pkg/apperror"
)

// Sentinels carried by the *apperror.AppError values returned from the service.
var (
	ErrValidation      = errors.New("otp: invalid request")
	ErrNotFound        = errors.New("otp: not found")
	ErrAlreadyVerified = errors.New("otp: already verified")
	ErrExpired         = errors.New("otp: expired")
	ErrInvalidCode     = errors.New("otp: invalid code")
	ErrDelivery        = errors.New("otp: delivery failed")
	ErrPersistence     = errors.New("otp: persistence failure")
)

func validationError(detail string, fields map[string]string) *apperror.AppError {
	return apperror.ValidationError(detail, "Correct the highlighted fields and try again").
		WithErrors(fields).
		WithError(ErrValidation)
}

func userNotFoundError() *apperror.AppError {
	return apperror.NotFoundError("user with this ID").WithError(ErrNotFound)
}

func recordNotFoundError() *apperror.AppError {
	err := apperror.NotFoundError("OTP record for this user")
	err.Action = "Request a new OTP"
	return err.WithError(ErrNotFound)
}

func alreadyVerifiedError() *apperror.AppError {
	return apperror.ConflictError("This account has already been verified", "Log in with your email and password").
		WithError(ErrAlreadyVerified)
}

func expiredError() *apperror.AppError {
	return apperror.GoneError("OTP has expired", "Request a new OTP").WithError(ErrExpired)
}

func invalidCodeError(emailMatch, phoneMatch bool) *apperror.AppError {
	return apperror.AuthenticationError("Invalid OTP", "Check both codes and try again").
		WithExtension("emailMatch", emailMatch).
		WithExtension("phoneMatch", phoneMatch).
		WithError(ErrInvalidCode)
}

func deliveryError(emailErr, smsErr error) *apperror.AppError {
	fields := make(map[string]string, 2)
	if emailErr != nil {
		fields["email"] = "delivery failed"
	}
	if smsErr != nil {
		fields["phoneNumber"] = "delivery failed"
	}
	return apperror.BadGatewayError("Failed to send OTP", "Use resend to request new codes").
		WithErrors(fields).
		WithExtension("success", false).
		WithExtension("emailSent", emailErr == nil).
		WithExtension("smsSent", smsErr == nil).
		WithError(fmt.Errorf("%w: %w", ErrDelivery, errors.Join(emailErr, smsErr)))
}

func persistenceError(err error) *apperror.AppError {
	return apperror.ServiceUnavailableError("OTP storage is temporarily unavailable", "Try again later").
		WithError(fmt.Errorf("%w: %w", ErrPersistence, err))
}
