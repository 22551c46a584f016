package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/chainguard/api/internal/pkg/response"
	"github.com/chainguard/api/internal/service/otp"
)

type OTPService interface {
	Send(ctx context.Context, req otp.SendRequest, clientIP, userAgent string) (*otp.SendResponse, error)
	Verify(ctx context.Context, req otp.VerifyRequest, clientIP, userAgent string) (*otp.VerifyResponse, error)
	Resend(ctx context.Context, req otp.ResendRequest, clientIP, userAgent string) (*otp.SendResponse, error)
	Status(ctx context.Context, userID string) (*otp.StatusResponse, error)
}

// OTPHandler handles the email/SMS verification endpoints
type OTPHandler struct {
	service OTPService
}

func NewOTPHandler(service OTPService) *OTPHandler {
	return &OTPHandler{service: service}
}

// Send handles POST /api/otp/send
func (h *OTPHandler) Send(c *gin.Context) {
	var req otp.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.service.Send(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// Verify handles POST /api/otp/verify
func (h *OTPHandler) Verify(c *gin.Context) {
	var req otp.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.service.Verify(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// Resend handles POST /api/otp/resend
func (h *OTPHandler) Resend(c *gin.Context) {
	var req otp.ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.service.Resend(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// Status handles GET /api/otp/status/:userId
func (h *OTPHandler) Status(c *gin.Context) {
	resp, err := h.service.Status(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}
