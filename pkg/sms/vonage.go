package sms

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/dont-forgetter-api/pkg/config"
)

// DefaultGatewayURL is the Vonage (formerly Nexmo) SMS REST endpoint.
const DefaultGatewayURL = "https://rest.nexmo.com/sms/json"

// ErrMissingCredentials is returned when the API key or secret is empty.
var ErrMissingCredentials = errors.New("sms gateway credentials missing")

// Client posts messages to the Vonage SMS API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	apiSecret  string
	sender     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type gatewayResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// NewClient builds a Client. A non-positive RatePerSec disables pacing.
func NewClient(cfg config.SMSConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	endpoint := cfg.GatewayURL
	if endpoint == "" {
		endpoint = DefaultGatewayURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sender:     cfg.SenderName,
		limiter:    limiter,
		logger:     logger,
	}
}

// DefaultSender is the configured "from" name.
func (c *Client) DefaultSender() string {
	return c.sender
}

// Send submits one SMS. It reports false without error when the gateway answers with a
// non-zero status; missing credentials, network failures and 5xx answers are errors.
func (c *Client) Send(ctx context.Context, from, to, text string) (bool, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return false, ErrMissingCredentials
	}
	if from == "" {
		from = c.sender
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("sms rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("api_secret", c.apiSecret)
	form.Set("from", from)
	form.Set("to", to)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("post sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return false, fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("read sms response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("sms gateway refused request", zap.Int("status", resp.StatusCode), zap.String("to", to))
		return false, nil
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("sms gateway response not understood", zap.Error(err))
		return false, nil
	}
	if len(parsed.Messages) == 0 {
		return false, nil
	}
	for _, msg := range parsed.Messages {
		if msg.Status != "0" {
			c.logger.Warn("sms rejected", zap.String("to", to), zap.String("status", msg.Status), zap.String("error", msg.ErrorText))
			return false, nil
		}
	}
	return true, nil
}
