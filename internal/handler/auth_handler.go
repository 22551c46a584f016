package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chainguard/api/internal/middleware"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/response"
	"github.com/chainguard/api/internal/service/auth"
)

type AuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest, clientIP, userAgent string) (*auth.SignupResponse, error)
	Login(ctx context.Context, req auth.LoginRequest, clientIP, userAgent string) (*auth.LoginResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*auth.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req auth.UpdateProfileRequest) (*auth.ProfileResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req auth.ChangePasswordRequest, clientIP, userAgent string) (*auth.MessageResponse, error)
	Logout(ctx context.Context, claims *auth.Claims) (*auth.MessageResponse, error)
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req auth.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.authService.Signup(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Created(c, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	_, userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	resp, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	_, userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req auth.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.authService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	_, userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	resp, err := h.authService.ChangePassword(c.Request.Context(), userID, req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	resp, err := h.authService.Logout(c.Request.Context(), claims)
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// currentUser reads the claims set by middleware.RequireAuth and writes a 401
// when they are missing.
func (h *AuthHandler) currentUser(c *gin.Context) (*auth.Claims, uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, apperror.AuthenticationError("Access token required", "Log in first"))
		return nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		response.Error(c, apperror.AuthorizationError("Invalid token", "Log in again"))
		return nil, uuid.Nil, false
	}
	return claims, userID, true
}
