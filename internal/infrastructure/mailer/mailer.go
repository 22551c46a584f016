package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/chainguard/api/internal/config"
)

const (
	otpSubject          = "ChainGuard - Email Verification Code"
	verificationSubject = "Account Verified Successfully"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer delivers ChainGuard notification emails over SMTP.
type Mailer struct {
	from     string
	fromName string
	otpTTL   time.Duration
	sender   Sender
	logger   *zap.Logger
}

// New creates a Mailer dialing the configured SMTP server (STARTTLS on 587).
func New(cfg config.SMTPConfig, otpTTL time.Duration, logger *zap.Logger) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return NewWithSender(cfg, otpTTL, dialer, logger)
}

// NewWithSender creates a Mailer with an injected sender (for testing)
func NewWithSender(cfg config.SMTPConfig, otpTTL time.Duration, sender Sender, logger *zap.Logger) *Mailer {
	return &Mailer{
		from:     cfg.Username,
		fromName: cfg.FromName,
		otpTTL:   otpTTL,
		sender:   sender,
		logger:   logger,
	}
}

// SendOTP emails the email half of a verification code.
func (m *Mailer) SendOTP(ctx context.Context, to, code string) error {
	minutes := int(m.otpTTL.Minutes())
	html, err := renderOTP(code, minutes)
	if err != nil {
		return err
	}
	return m.Send(ctx, Email{
		To:       []string{to},
		Subject:  otpSubject,
		HTMLBody: html,
		Body:     fmt.Sprintf("Your ChainGuard email verification code is: %s. This code will expire in %d minutes.", code, minutes),
	})
}

// SendVerificationSuccess confirms a completed OTP verification.
func (m *Mailer) SendVerificationSuccess(ctx context.Context, to string) error {
	html, err := renderVerificationSuccess()
	if err != nil {
		return err
	}
	return m.Send(ctx, Email{
		To:       []string{to},
		Subject:  verificationSubject,
		HTMLBody: html,
		Body:     "Your ChainGuard account has been verified successfully!",
	})
}

// Send delivers one email. The SMTP exchange itself is not interruptible,
// so a cancelled ctx only stops the caller from waiting for it.
func (m *Mailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	done := make(chan error, 1)
	go func() {
		done <- m.sender.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Error("Failed to send email",
				zap.Strings("to", email.To),
				zap.String("subject", email.Subject),
				zap.Error(err))
			return fmt.Errorf("send email: %w", err)
		}
		m.logger.Info("Email sent", zap.Strings("to", email.To), zap.String("subject", email.Subject))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}
