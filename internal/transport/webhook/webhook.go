// Package webhook posts notifications as JSON envelopes to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Option configures a webhook Transport.
type Option func(*Transport)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(t *Transport) { t.headers = h }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithBackoff sets the base delay between retries. Default: 1s, doubling.
func WithBackoff(d time.Duration) Option {
	return func(t *Transport) { t.backoff = d }
}

// Transport POSTs one envelope per message. It retries on 5xx with
// exponential backoff and gives up immediately on 4xx.
type Transport struct {
	client  *http.Client
	url     string
	headers map[string]string
	backoff time.Duration
}

func New(url string, opts ...Option) *Transport {
	t := &Transport{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	body, err := transport.NewEnvelope(msg).Marshal()
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return t.postWithRetry(ctx, body)
}

func (t *Transport) postWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := t.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: HTTP %d", resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
