package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoffBase    = 200 * time.Millisecond
	defaultBackoffCap     = 2000 * time.Millisecond
	defaultRequestTimeout = 30 * time.Second
)

// RetryConfig controls the retry wrapper. The backoff after a failed attempt
// is min(Base * 4^attempt, Cap), deterministic, no jitter.
type RetryConfig struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration

	// Sleep is injectable for tests; defaults to a context-aware time.After wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Base <= 0 {
		c.Base = defaultBackoffBase
	}
	if c.Cap <= 0 {
		c.Cap = defaultBackoffCap
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// backoffDelay computes the wait after a failed attempt (0-based index).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.Base
	for i := 0; i < attempt; i++ {
		d *= 4
		if d >= cfg.Cap {
			return cfg.Cap
		}
	}
	if d > cfg.Cap {
		return cfg.Cap
	}
	return d
}

// Retry executes op up to cfg.MaxAttempts times, backing off between
// attempts. All failures are treated identically; the wrapper never inspects
// the error kind. When attempts are exhausted the last error from op is what
// propagates, not a wrapper error.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := cfg.Sleep(ctx, backoffDelay(cfg, attempt-1)); err != nil {
				return err
			}
		}
		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// RetryClient wraps an http.Client with the retry policy above. Every source
// adapter fetches through one of these; a timed-out attempt counts as a
// normal failure for retry purposes.
type RetryClient struct {
	Client  *http.Client
	Retry   RetryConfig
	Timeout time.Duration // per-request timeout, independent of backoff
}

func NewRetryClient(cfg RetryConfig) *RetryClient {
	return &RetryClient{
		Client: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		Retry:   cfg.withDefaults(),
		Timeout: defaultRequestTimeout,
	}
}

// GetJSON fetches url and decodes the JSON response into out, retrying on
// any failure (network, non-2xx, malformed payload).
func (c *RetryClient) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

// PostJSON posts body as JSON to url and decodes the response into out.
func (c *RetryClient) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, payload, out)
}

// GetHTML fetches url and returns the raw body, retrying like GetJSON.
func (c *RetryClient) GetHTML(ctx context.Context, url string) (string, error) {
	var html string
	err := Retry(ctx, c.Retry, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := c.Client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		html = string(raw)
		return nil
	})
	return html, err
}

func (c *RetryClient) doJSON(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	return Retry(ctx, c.Retry, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, url, body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.Client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}
