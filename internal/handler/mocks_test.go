package handler_test

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chainguard/api/internal/service/auth"
	"github.com/chainguard/api/internal/service/otp"
)

// MockOTPService mocks handler.OTPService
type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Send(ctx context.Context, req otp.SendRequest, clientIP, userAgent string) (*otp.SendResponse, error) {
	args := m.Called(ctx, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*otp.SendResponse)
	return resp, args.Error(1)
}

func (m *MockOTPService) Verify(ctx context.Context, req otp.VerifyRequest, clientIP, userAgent string) (*otp.VerifyResponse, error) {
	args := m.Called(ctx, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*otp.VerifyResponse)
	return resp, args.Error(1)
}

func (m *MockOTPService) Resend(ctx context.Context, req otp.ResendRequest, clientIP, userAgent string) (*otp.SendResponse, error) {
	args := m.Called(ctx, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*otp.SendResponse)
	return resp, args.Error(1)
}

func (m *MockOTPService) Status(ctx context.Context, userID string) (*otp.StatusResponse, error) {
	args := m.Called(ctx, userID)
	resp, _ := args.Get(0).(*otp.StatusResponse)
	return resp, args.Error(1)
}

// MockAuthService mocks handler.AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, req auth.SignupRequest, clientIP, userAgent string) (*auth.SignupResponse, error) {
	args := m.Called(ctx, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*auth.SignupResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req auth.LoginRequest, clientIP, userAgent string) (*auth.LoginResponse, error) {
	args := m.Called(ctx, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*auth.LoginResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) Profile(ctx context.Context, userID uuid.UUID) (*auth.ProfileResponse, error) {
	args := m.Called(ctx, userID)
	resp, _ := args.Get(0).(*auth.ProfileResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req auth.UpdateProfileRequest) (*auth.ProfileResponse, error) {
	args := m.Called(ctx, userID, req)
	resp, _ := args.Get(0).(*auth.ProfileResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req auth.ChangePasswordRequest, clientIP, userAgent string) (*auth.MessageResponse, error) {
	args := m.Called(ctx, userID, req, clientIP, userAgent)
	resp, _ := args.Get(0).(*auth.MessageResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, claims *auth.Claims) (*auth.MessageResponse, error) {
	args := m.Called(ctx, claims)
	resp, _ := args.Get(0).(*auth.MessageResponse)
	return resp, args.Error(1)
}

// MockDB implements HealthChecker interface for testing
type MockDB struct {
	shouldFail bool
}

func (m *MockDB) HealthCheck(ctx context.Context) error {
	if m.shouldFail {
		return errors.New("database connection failed")
	}
	return nil
}

// MockRedis implements Pinger interface for testing
type MockRedis struct {
	shouldFail bool
}

func (m *MockRedis) Ping(ctx context.Context) error {
	if m.shouldFail {
		return errors.New("redis connection refused")
	}
	return nil
}
