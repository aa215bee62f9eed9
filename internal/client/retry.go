package client

import (
	"context"
	"fmt"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
)

// RetryPolicy applies a bounded exponential backoff to an external call.
// Every outbound client shares this one abstraction instead of growing its
// own ad-hoc retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// NoRetry performs exactly one attempt. Status queries use it: a failed
// query is retried by the next poll cycle, not inline.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// PolicyFromConfig builds a RetryPolicy from the retry config section.
func PolicyFromConfig(cfg *config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Multiplier:  cfg.Multiplier,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The delay between attempts grows by Multiplier each round.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
