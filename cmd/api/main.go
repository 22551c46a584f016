package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainguard/api/internal/config"
	"github.com/chainguard/api/internal/handler"
	"github.com/chainguard/api/internal/infrastructure/crypto"
	"github.com/chainguard/api/internal/infrastructure/mailer"
	infraRedis "github.com/chainguard/api/internal/infrastructure/redis"
	"github.com/chainguard/api/internal/infrastructure/twilio"
	"github.com/chainguard/api/internal/middleware"
	"github.com/chainguard/api/internal/repository"
	"github.com/chainguard/api/internal/service/auth"
	"github.com/chainguard/api/internal/service/otp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ChainGuard API...")

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(cfg.Database.MigrationURL(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	redisClient, err := infraRedis.NewClient(infraRedis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	userRepo := repository.NewUserRepository(db.Pool)
	otpRepo := repository.NewOTPRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)

	otpService := otp.NewService(
		cfg.OTP,
		userRepo,
		otpRepo,
		auditRepo,
		mailer.New(cfg.SMTP, cfg.OTP.TTL, logger),
		twilio.NewClient(cfg.Twilio, cfg.OTP.TTL, logger),
		logger,
	)
	defer otpService.Wait()

	tokens := auth.NewTokenIssuer(cfg.JWT)
	authService := auth.NewService(
		userRepo,
		auditRepo,
		crypto.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokens,
		redisClient,
		logger,
	)

	router := handler.NewRouter(
		cfg,
		logger,
		handler.NewHealthHandler(db, redisClient),
		handler.NewAuthHandler(authService),
		handler.NewOTPHandler(otpService),
		middleware.RequireAuth(tokens, redisClient, logger),
		middleware.RateLimit(redisClient, cfg.RateLimit, logger),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Deferred Wait drains confirmation emails before the pool and redis close.
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
