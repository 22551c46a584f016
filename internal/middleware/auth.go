package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/response"
	"github.com/chainguard/api/internal/service/auth"
)

const ClaimsKey = "auth_claims"

// Error codes reported in the "code" member of auth failures.
const (
	CodeNoToken      = "NO_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenRevoked = "TOKEN_REVOKED"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireAuth accepts "Authorization: Bearer <jwt>" and stores the claims
// under ClaimsKey. A failed denylist lookup rejects the request.
func RequireAuth(tokens TokenParser, denylist RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			abortAuth(c, apperror.AuthenticationError("Access token required", "Log in and send the token as a Bearer credential"), CodeNoToken)
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortAuth(c, apperror.AuthenticationError("Token expired", "Log in again"), CodeTokenExpired)
				return
			}
			abortAuth(c, apperror.AuthorizationError("Invalid token", "Log in again"), CodeInvalidToken)
			return
		}

		revoked, err := denylist.IsTokenRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logger.Error("Token denylist lookup failed", zap.String("request_id", c.GetString(RequestIDKey)), zap.Error(err))
			response.Error(c, apperror.ServiceUnavailableError("Session store unavailable", "Try again later"))
			c.Abort()
			return
		}
		if revoked {
			abortAuth(c, apperror.AuthenticationError("Token has been revoked", "Log in again"), CodeTokenRevoked)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func abortAuth(c *gin.Context, err *apperror.AppError, code string) {
	response.Error(c, err.WithExtension("code", code))
	c.Abort()
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
