package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chainguard/api/internal/config"
	"github.com/chainguard/api/internal/domain"
	"github.com/chainguard/api/internal/repository"
)

type stubSender struct {
	err error
}

func (s stubSender) SendOTP(ctx context.Context, to, code string) error { return s.err }

func (s stubSender) SendVerificationSuccess(ctx context.Context, to string) error { return nil }

type stubStore struct {
	rec          *domain.OTPRecord
	userVerified bool
}

func (s *stubStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return &domain.User{ID: id, Email: "m@example.com", PhoneNumber: "+14155552671", IsVerified: s.userVerified}, nil
}

func (s *stubStore) Issue(ctx context.Context, rec *domain.OTPRecord) error {
	s.rec = rec
	return nil
}

func (s *stubStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	if s.rec == nil || s.rec.Verified {
		return nil, repository.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubStore) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	if s.rec == nil {
		return nil, repository.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubStore) MarkVerified(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	s.rec.Verified = true
	s.userVerified = true
	return true, nil
}

func (s *stubStore) InvalidateAllActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type fixedCodes string

func (c fixedCodes) Generate(digits int) (string, error) { return string(c), nil }

func newMetricsService(t *testing.T, store *stubStore, email, sms stubSender) *Service {
	cfg := config.OTPConfig{Digits: 3, TTL: time.Minute}
	return NewServiceWithDeps(cfg, store, store, nil, email, sms, fixedCodes("123"), zaptest.NewLogger(t))
}

func TestMetrics_IssuedAndDeliveryFailures(t *testing.T) {
	store := &stubStore{}
	svc := newMetricsService(t, store, stubSender{}, stubSender{err: errors.New("sms down")})

	issued := testutil.ToFloat64(otpIssuedTotal.WithLabelValues(opSend))
	smsFailed := testutil.ToFloat64(otpDeliveryFailedTotal.WithLabelValues("sms"))
	emailFailed := testutil.ToFloat64(otpDeliveryFailedTotal.WithLabelValues("email"))

	_, err := svc.Send(context.Background(), SendRequest{
		UserID: uuid.NewString(), Email: "m@example.com", PhoneNumber: "+14155552671",
	}, "", "")
	require.ErrorIs(t, err, ErrDelivery)

	assert.Equal(t, issued+1, testutil.ToFloat64(otpIssuedTotal.WithLabelValues(opSend)))
	assert.Equal(t, smsFailed+1, testutil.ToFloat64(otpDeliveryFailedTotal.WithLabelValues("sms")))
	assert.Equal(t, emailFailed, testutil.ToFloat64(otpDeliveryFailedTotal.WithLabelValues("email")))
}

func TestMetrics_VerifyResults(t *testing.T) {
	store := &stubStore{}
	svc := newMetricsService(t, store, stubSender{}, stubSender{})
	t.Cleanup(svc.Wait)
	userID := uuid.NewString()
	ctx := context.Background()

	_, err := svc.Send(ctx, SendRequest{UserID: userID, Email: "m@example.com", PhoneNumber: "+14155552671"}, "", "")
	require.NoError(t, err)

	invalid := testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultInvalidCode))
	verified := testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultVerified))
	already := testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultAlreadyVerified))

	_, err = svc.Verify(ctx, VerifyRequest{UserID: userID, EmailOTP: "999", PhoneOTP: "123"}, "", "")
	require.ErrorIs(t, err, ErrInvalidCode)
	_, err = svc.Verify(ctx, VerifyRequest{UserID: userID, EmailOTP: "123", PhoneOTP: "123"}, "", "")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, VerifyRequest{UserID: userID, EmailOTP: "123", PhoneOTP: "123"}, "", "")
	require.ErrorIs(t, err, ErrAlreadyVerified)

	assert.Equal(t, invalid+1, testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultInvalidCode)))
	assert.Equal(t, verified+1, testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultVerified)))
	assert.Equal(t, already+1, testutil.ToFloat64(otpVerifyTotal.WithLabelValues(resultAlreadyVerified)))
}
