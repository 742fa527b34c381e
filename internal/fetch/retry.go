package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smart-cookbook/internal/metrics"
)

// ErrNoData is returned once every attempt has failed.
var ErrNoData = errors.New("no data from recipe source")

// ErrInvalidJSON marks a body that failed the JSON check.
var ErrInvalidJSON = errors.New("response is not valid JSON")

// RetryConfig controls the retry decorator.
type RetryConfig struct {
	// MaxAttempts includes the first try.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to get the wait before the
	// next attempt.
	BaseDelay time.Duration

	// Check, when set, validates a fetched body. A failing check counts as a
	// failed attempt.
	Check func([]byte) error
}

// DefaultRetryConfig returns three attempts with 1s and 2s waits between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// CheckJSON rejects bodies that are not valid JSON.
func CheckJSON(body []byte) error {
	if !json.Valid(body) {
		return ErrInvalidJSON
	}
	return nil
}

// RetryingFetcher retries a Fetcher with linearly growing waits.
type RetryingFetcher struct {
	next   Fetcher
	cfg    RetryConfig
	logger *slog.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewRetryingFetcher wraps next.
func NewRetryingFetcher(next Fetcher, cfg RetryConfig, logger *slog.Logger) *RetryingFetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingFetcher{
		next:   next,
		cfg:    cfg,
		logger: logger,
		wait:   sleep,
	}
}

// Fetch tries up to MaxAttempts times, waiting attempt×BaseDelay after each
// failed attempt but the last. Waits end early when ctx is cancelled.
func (r *RetryingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	attempt := 1
	for ; attempt <= r.cfg.MaxAttempts; attempt++ {
		body, err := r.next.Fetch(ctx, url)
		if err == nil && r.cfg.Check != nil {
			err = r.cfg.Check(body)
		}
		if err == nil {
			metrics.RecordFetch(metrics.ResultOK)
			return body, nil
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}
		metrics.RecordFetch(metrics.ResultRetry)
		r.logger.Debug("retrying recipe source request",
			slog.String("url", url), slog.Int("attempt", attempt), slog.String("error", err.Error()))

		if werr := r.wait(ctx, time.Duration(attempt)*r.cfg.BaseDelay); werr != nil {
			lastErr = werr
			break
		}
	}

	metrics.RecordFetch(metrics.ResultExhausted)
	r.logger.Error("recipe source request failed",
		slog.String("url", url), slog.Int("attempts", attempt), slog.String("error", lastErr.Error()))
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrNoData, attempt, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
