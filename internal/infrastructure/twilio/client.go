package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainguard/api/internal/config"
)

const otpMessageFormat = "Your ChainGuard verification code is: %s. Valid for %d minutes. Do not share this code with anyone."

// Client sends SMS through the Twilio Messages REST API.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	otpTTL     time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Message is the subset of Twilio's message resource we read back.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

// APIError is Twilio's error body for non-2xx responses.
type APIError struct {
	Status   int    `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

func NewClient(cfg config.TwilioConfig, otpTTL time.Duration, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		otpTTL:     otpTTL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SendOTP texts the phone half of a verification code.
func (c *Client) SendOTP(ctx context.Context, phoneNumber, code string) error {
	_, err := c.SendSMS(ctx, phoneNumber, fmt.Sprintf(otpMessageFormat, code, int(c.otpTTL.Minutes())))
	return err
}

// SendSMS posts one message and returns Twilio's message resource.
func (c *Client) SendSMS(ctx context.Context, to, body string) (*Message, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Twilio request failed", zap.String("to", to), zap.Error(err))
		return nil, fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read twilio response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		c.logger.Error("Twilio rejected SMS",
			zap.String("to", to),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", apiErr.Code))
		return nil, apiErr
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode twilio response: %w", err)
	}

	c.logger.Info("SMS sent", zap.String("to", to), zap.String("sid", msg.SID), zap.String("status", msg.Status))
	return &msg, nil
}
