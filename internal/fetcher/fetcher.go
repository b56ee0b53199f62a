// Package fetcher implements the single-URL fetch contract using gocolly.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Client fetches one URL per call, retrying with backoff before surfacing a
// pipeline.FetchError. It keeps no shared mutable state between calls.
type Client struct {
	cfg    Config
	base   *colly.Collector
	policy *RetryPolicy
	logger *zap.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	return &Client{
		cfg:    cfg,
		base:   base,
		policy: NewRetryPolicy(cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffMax),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Fetch performs an HTTP GET with retry. It never returns an empty body with
// a nil error; exhausted retries surface a *pipeline.FetchError carrying the
// last cause.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt < c.policy.MaxAttempts(); attempt++ {
		if attempt > 0 {
			wait := c.policy.Backoff(attempt - 1)
			c.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
			)
			if err := c.sleep(ctx, wait); err != nil {
				lastErr = err
				attempts = attempt
				break
			}
		}
		attempts = attempt + 1
		body, err := c.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !c.policy.ShouldRetry(err, attempts) {
			break
		}
	}
	return nil, &pipeline.FetchError{URL: url, Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("response %s: %w", url, fetchErr)
		}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body from %s", url)
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
