package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/infrastructure/crypto"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/repository"
	"github.com/chainguard/api/internal/service/auth"
)

type testMocks struct {
	users   *MockUserRepository
	audit   *MockAuditRepository
	revoker *MockTokenRevoker
	hasher  *crypto.PasswordHasher
	tokens  *auth.TokenIssuer
}

func createTestService(t *testing.T) (*auth.Service, *testMocks) {
	m := &testMocks{
		users:   new(MockUserRepository),
		audit:   new(MockAuditRepository),
		revoker: new(MockTokenRevoker),
		hasher:  crypto.NewPasswordHasher(bcrypt.MinCost),
		tokens:  auth.NewTokenIssuer(testJWTConfig()),
	}
	m.audit.On("LogEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	svc := auth.NewService(m.users, m.audit, m.hasher, m.tokens, m.revoker, zaptest.NewLogger(t))
	return svc, m
}

func newUser(t *testing.T, m *testMocks, password string, verified bool) *domain.User {
	hash, err := m.hasher.Hash(password)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: hash,
		PhoneNumber:  "+14155552671",
		IsVerified:   verified,
	}
}

func asAppError(t *testing.T, err error, status int) *apperror.AppError {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	return appErr
}

// === Signup ===

func TestSignup_Success(t *testing.T) {
	svc, m := createTestService(t)
	m.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@example.com" && u.PasswordHash != "" && u.PasswordHash != "secret1" && !u.IsVerified
	})).Return(nil)

	resp, err := svc.Signup(context.Background(), auth.SignupRequest{
		Email:       "New@Example.com",
		Password:    "secret1",
		PhoneNumber: "+14155552671",
	}, "127.0.0.1", "test-ua")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "new@example.com", resp.Email)
	_, parseErr := uuid.Parse(resp.UserID)
	assert.NoError(t, parseErr)
	m.users.AssertExpectations(t)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, m := createTestService(t)
	m.users.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("user new@example.com: %w", repository.ErrConflict))

	_, err := svc.Signup(context.Background(), auth.SignupRequest{
		Email: "new@example.com", Password: "secret1", PhoneNumber: "+14155552671",
	}, "", "")

	asAppError(t, err, http.StatusConflict)
}

func TestSignup_Validation(t *testing.T) {
	badWallet := "0x123"
	tests := []struct {
		name  string
		req   auth.SignupRequest
		field string
	}{
		{"short password", auth.SignupRequest{Email: "a@example.com", Password: "12345", PhoneNumber: "+14155552671"}, "password"},
		{"bad email", auth.SignupRequest{Email: "nope", Password: "secret1", PhoneNumber: "+14155552671"}, "email"},
		{"bad phone", auth.SignupRequest{Email: "a@example.com", Password: "secret1", PhoneNumber: "0123"}, "phoneNumber"},
		{"bad wallet", auth.SignupRequest{Email: "a@example.com", Password: "secret1", PhoneNumber: "+14155552671", WalletAddress: &badWallet}, "walletAddress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createTestService(t)

			_, err := svc.Signup(context.Background(), tt.req, "", "")

			appErr := asAppError(t, err, http.StatusBadRequest)
			assert.Contains(t, appErr.Errors, tt.field)
			m.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

// === Login ===

func TestLogin_Success(t *testing.T) {
	svc, m := createTestService(t)
	user := newUser(t, m, "secret1", true)
	m.users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	resp, err := svc.Login(context.Background(), auth.LoginRequest{Email: "USER@example.com", Password: "secret1"}, "", "")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := m.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, m := createTestService(t)
	m.users.On("GetByEmail", mock.Anything, "user@example.com").Return(newUser(t, m, "secret1", true), nil)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "user@example.com", Password: "wrong"}, "", "")

	asAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, m := createTestService(t)
	m.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "ghost@example.com", Password: "secret1"}, "", "")

	asAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_UnverifiedRequiresOTP(t *testing.T) {
	svc, m := createTestService(t)
	user := newUser(t, m, "secret1", false)
	m.users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "user@example.com", Password: "secret1"}, "", "")

	appErr := asAppError(t, err, http.StatusForbidden)
	assert.Equal(t, true, appErr.Extensions["requiresOTP"])
	assert.Equal(t, user.ID.String(), appErr.Extensions["userId"])
}

func TestLogin_StoreUnavailable(t *testing.T) {
	svc, m := createTestService(t)
	m.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("pool closed"))

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "user@example.com", Password: "secret1"}, "", "")

	asAppError(t, err, http.StatusServiceUnavailable)
}

// === Profile ===

func TestProfile(t *testing.T) {
	svc, m := createTestService(t)
	user := newUser(t, m, "secret1", true)
	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	missing := uuid.New()
	m.users.On("GetByID", mock.Anything, missing).Return(nil, repository.ErrNotFound)

	resp, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, resp.User.Email)

	_, err = svc.Profile(context.Background(), missing)
	asAppError(t, err, http.StatusNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc, m := createTestService(t)
	user := newUser(t, m, "secret1", true)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"
	updated := *user
	updated.WalletAddress = &wallet
	m.users.On("UpdateProfile", mock.Anything, user.ID, (*string)(nil), &wallet).Return(&updated, nil)

	resp, err := svc.UpdateProfile(context.Background(), user.ID, auth.UpdateProfileRequest{WalletAddress: &wallet})

	require.NoError(t, err)
	assert.Equal(t, wallet, *resp.User.WalletAddress)
	m.users.AssertExpectations(t)
}

func TestUpdateProfile_NoFields(t *testing.T) {
	svc, m := createTestService(t)

	_, err := svc.UpdateProfile(context.Background(), uuid.New(), auth.UpdateProfileRequest{})

	asAppError(t, err, http.StatusBadRequest)
	m.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// === ChangePassword ===

func TestChangePassword(t *testing.T) {
	svc, m := createTestService(t)
	user := newUser(t, m, "secret1", true)
	m.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	var stored string
	m.users.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(nil)

	_, err := svc.ChangePassword(context.Background(), user.ID,
		auth.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "secret2"}, "", "")
	asAppError(t, err, http.StatusUnauthorized)

	resp, err := svc.ChangePassword(context.Background(), user.ID,
		auth.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}, "", "")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	ok, err := m.hasher.Verify("secret2", stored)
	require.NoError(t, err)
	assert.True(t, ok)
	m.users.AssertNumberOfCalls(t, "UpdatePassword", 1)
}

// === Logout ===

func TestLogout_RevokesForRemainingLifetime(t *testing.T) {
	svc, m := createTestService(t)
	_, claims, err := m.tokens.Issue(newUser(t, m, "secret1", true))
	require.NoError(t, err)

	m.revoker.On("RevokeToken", mock.Anything, claims.ID, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 59*time.Minute && ttl <= time.Hour
	})).Return(nil)

	resp, err := svc.Logout(context.Background(), claims)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	m.revoker.AssertExpectations(t)
}

func TestLogout_RevokerFailure(t *testing.T) {
	svc, m := createTestService(t)
	_, claims, err := m.tokens.Issue(newUser(t, m, "secret1", true))
	require.NoError(t, err)
	m.revoker.On("RevokeToken", mock.Anything, claims.ID, mock.Anything).Return(errors.New("redis down"))

	_, err = svc.Logout(context.Background(), claims)

	asAppError(t, err, http.StatusServiceUnavailable)
}
