// Package ocr talks to the vision extraction service. The service is a black
// box that receives one image plus a task instruction and answers with raw
// text expected to contain a JSON payload.
package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// Transport sends a single extraction request. Two implementations exist,
// the vendor SDK and a raw HTTP client; callers never depend on which one is
// wired in.
type Transport interface {
	Extract(ctx context.Context, imagePath, prompt string) (string, error)
}

// Observer receives a callback per attempt, for instrumentation.
type Observer interface {
	OCRAttempt(err error)
}

// Client wraps a Transport with the retry/backoff policy. It holds no session
// state: it returns data and the caller records it.
type Client struct {
	transport   Transport
	maxAttempts int
	useBackoff  bool
	baseDelay   time.Duration
	observer    Observer
	logger      *zap.Logger
}

// NewClient builds a Client. maxAttempts defaults to 3, baseDelay to 1s.
func NewClient(transport Transport, maxAttempts int, useBackoff bool, baseDelay time.Duration, observer Observer, logger *zap.Logger) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport:   transport,
		maxAttempts: maxAttempts,
		useBackoff:  useBackoff,
		baseDelay:   baseDelay,
		observer:    observer,
		logger:      logger,
	}
}

// Extract runs the extraction with up to maxAttempts tries. Exponential
// backoff applies between attempts when enabled. Terminal failures (quota,
// authorization) abandon the cycle immediately; the last error is returned on
// exhaustion and recovery is the caller's decision.
func (c *Client) Extract(ctx context.Context, imagePath, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.transport.Extract(ctx, imagePath, prompt)
		if c.observer != nil {
			c.observer.OCRAttempt(err)
		}
		if err == nil {
			if attempt > 1 {
				c.logger.Info("extraction recovered", zap.Int("attempt", attempt))
			}
			return text, nil
		}
		lastErr = err

		classified := appErrors.FromError(err)
		if !classified.Retriable() {
			c.logger.Warn("extraction failed terminally",
				zap.Int("attempt", attempt),
				zap.String("code", classified.Code),
				zap.Error(err),
			)
			return "", err
		}
		c.logger.Warn("extraction attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(err),
		)

		if attempt < c.maxAttempts && c.useBackoff {
			if err := sleep(ctx, c.baseDelay<<uint(attempt-1)); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
