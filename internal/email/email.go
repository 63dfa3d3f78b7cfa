// Package email delivers verification codes to residents.
package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

// DefaultEndpoint is the Elastic Email v2 send endpoint.
const DefaultEndpoint = "https://api.elasticemail.com/v2/email/send"

const subject = "RC4 Gym Email Verification"

// Sender delivers a verification code to an address.
type Sender interface {
	SendVerification(ctx context.Context, to, code string) error
}

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// ElasticEmail sends transactional mail through the Elastic Email HTTP API.
type ElasticEmail struct {
	apiKey   string
	from     string
	endpoint string
	client   httpDoer
	logger   *logrus.Entry
}

// NewElasticEmail constructs a sender authenticating with apiKey.
func NewElasticEmail(apiKey, from string, logger *logrus.Entry) *ElasticEmail {
	if logger == nil {
		logger = logging.Logger()
	}

	return &ElasticEmail{
		apiKey:   apiKey,
		from:     from,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SendVerification mails code to the given address.
func (e *ElasticEmail) SendVerification(ctx context.Context, to, code string) error {
	if e == nil || e.client == nil {
		return errors.New("email sender is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}

	form := url.Values{}
	form.Set("apikey", e.apiKey)
	form.Set("subject", subject)
	form.Set("from", e.from)
	form.Set("to", to)
	form.Set("bodyHtml", verificationBody(code))
	form.Set("isTransactional", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read email response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send email: unexpected status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode email response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("send email: %s", parsed.Error)
	}

	e.logger.WithFields(logging.Fields{
		"event": "verification_email_sent",
		"to":    to,
	}).Info("sent verification email")
	return nil
}

func verificationBody(code string) string {
	return "<p>Dear User,</p>" +
		"<p>Your verification code is: <strong>" + code + "</strong></p>" +
		"<p>Please enter this code to verify your email.</p>"
}

// LogSender writes codes to the log instead of mailing them. It is meant for
// development setups without an email API key.
type LogSender struct {
	logger *logrus.Entry
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *logrus.Entry) *LogSender {
	if logger == nil {
		logger = logging.Logger()
	}
	return &LogSender{logger: logger}
}

// SendVerification logs the code at warn level.
func (s *LogSender) SendVerification(_ context.Context, to, code string) error {
	s.logger.WithFields(logging.Fields{
		"event": "verification_code_logged",
		"to":    to,
		"code":  code,
	}).Warn("email delivery disabled, logging verification code")
	return nil
}
