// ABOUTME: Exponential backoff with jitter for calls to the generation service and the datastore.
// ABOUTME: Retry runs an operation until it succeeds, the policy is exhausted, or the error is not retryable.
package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// Jitter randomizes each delay between 0 and the computed backoff.
	Jitter bool

	// OnRetry is invoked before sleeping ahead of each retry.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy is used for generation-service calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            true,
	}
}

// CalculateDelay computes the backoff for a 0-indexed attempt, capped at MaxDelay.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// Retry calls fn until it returns nil, retryable reports false, the policy
// runs out, or ctx is done. A nil retryable retries every error. The last
// error from fn is returned.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}

		delay := p.CalculateDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(err, attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// IsRateLimit detects 429 responses from the provider SDKs, which only
// surface the status in their error text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

// IsTransient reports rate limits and upstream overload or gateway failures.
func IsTransient(err error) bool {
	if IsRateLimit(err) {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"overloaded", "529", "502", "503", "504", "connection reset", "timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
