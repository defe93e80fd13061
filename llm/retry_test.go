// ABOUTME: Tests for backoff calculation, retry termination, and transient error classification.
package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateDelay_ExponentialAndCapped(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, w := range want {
		if got := p.CalculateDelay(attempt); got != w {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
}

func TestCalculateDelay_JitterWithinBound(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		if d := p.CalculateDelay(1); d < 0 || d > 200*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
	calls := 0
	var retried []int
	p.OnRetry = func(_ error, attempt int, _ time.Duration) { retried = append(retried, attempt) }

	err := Retry(context.Background(), p, nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(retried))
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
	calls := 0
	err := Retry(context.Background(), p, IsTransient, func() error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want error after 1 call", err, calls)
	}
}

func TestRetry_ExhaustsPolicy(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
	calls := 0
	err := Retry(context.Background(), p, nil, func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiplier: 1}
	calls := 0
	err := Retry(ctx, p, nil, func() error {
		calls++
		return errors.New("rate limit")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want error after 1 call", err, calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("POST /v1/messages: 429 Too Many Requests"), true},
		{errors.New("anthropic: overloaded_error"), true},
		{errors.New("502 bad gateway"), true},
		{errors.New("400 invalid request"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
