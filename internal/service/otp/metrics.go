package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "Total OTP pairs persisted",
		},
		[]string{"operation"},
	)

	otpDeliveryFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_delivery_failed_total",
			Help: "Total failed OTP deliveries per channel",
		},
		[]string{"channel"},
	)

	otpVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verify_total",
			Help: "Total OTP verification attempts by outcome",
		},
		[]string{"result"},
	)
)

const (
	opSend   = "send"
	opResend = "resend"

	resultVerified        = "verified"
	resultInvalidCode     = "invalid_code"
	resultExpired         = "expired"
	resultNotFound        = "not_found"
	resultAlreadyVerified = "already_verified"
)
