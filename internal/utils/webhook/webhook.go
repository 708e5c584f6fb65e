package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

// Options tunes the underlying resty client. Zero values fall back to defaults.
type Options struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	MaxWait    time.Duration
}

// Client posts JSON payloads and pings uptime monitors.
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

// StatusError is returned when the sink answers with a non-2xx status after retries.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "webhook responded " + http.StatusText(e.StatusCode) + ": " + e.Body
}

// New creates a webhook client with a 10s timeout and no retries unless opts say otherwise.
func New(logger *logger.Logger, opts ...Options) *Client {
	o := Options{Timeout: 10 * time.Second}
	if len(opts) > 0 {
		o = opts[0]
		if o.Timeout <= 0 {
			o.Timeout = 10 * time.Second
		}
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 500 * time.Millisecond
	}
	if o.MaxWait < o.RetryWait {
		o.MaxWait = o.RetryWait * 8
	}

	client := resty.New().
		SetTimeout(o.Timeout).
		SetRetryCount(o.RetryCount).
		SetRetryWaitTime(o.RetryWait).
		SetRetryMaxWaitTime(o.MaxWait).
		AddRetryCondition(shouldRetry)

	return &Client{
		http:   client,
		logger: logger,
	}
}

// shouldRetry retries transport errors, rate limiting and server errors.
// A cancelled or expired request context is final.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// PostJSON sends body as JSON to url, retrying per the client options.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers).
		SetBody(body).
		Post(url)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}
	return nil
}

// CallUptimeWebhook makes a GET request to webhookURL. Failures are logged only.
func (c *Client) CallUptimeWebhook(ctx context.Context, webhookURL string) {
	if webhookURL == "" {
		return
	}

	resp, err := c.http.R().SetContext(ctx).Get(webhookURL)
	if err != nil {
		c.logger.Error("[CallUptimeWebhook] failed to call uptime webhook", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}

	c.logger.Info("[CallUptimeWebhook] uptime webhook called", map[string]string{
		"url":         webhookURL,
		"status_code": resp.Status(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
