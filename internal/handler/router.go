package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainguard/api/internal/config"
	"github.com/chainguard/api/internal/middleware"
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/response"
	"github.com/chainguard/api/internal/pkg/validation"
)

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	healthHandler *HealthHandler,
	authHandler *AuthHandler,
	otpHandler *OTPHandler,
	requireAuth gin.HandlerFunc,
	rateLimit gin.HandlerFunc,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	validation.RegisterGin()
	r := gin.New()

	// Global middleware (order matters!)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.SecurityHeaders(cfg.Server.HTTPS))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))

	// Health endpoints (no auth required)
	r.GET("/health", healthHandler.Shallow)
	r.GET("/health/ready", healthHandler.Ready)

	// Prometheus metrics endpoint (restrict to internal IPs in production)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimit)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)

			protected := auth.Group("")
			protected.Use(requireAuth)
			{
				protected.GET("/profile", authHandler.Profile)
				protected.PUT("/profile", authHandler.UpdateProfile)
				protected.POST("/change-password", authHandler.ChangePassword)
				protected.POST("/logout", authHandler.Logout)
			}
		}

		otp := api.Group("/otp")
		{
			otp.POST("/send", otpHandler.Send)
			otp.POST("/verify", otpHandler.Verify)
			otp.POST("/resend", otpHandler.Resend)
			otp.GET("/status/:userId", otpHandler.Status)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.NotFoundError("route matching "+c.Request.Method+" "+c.Request.URL.Path))
	})

	return r
}
