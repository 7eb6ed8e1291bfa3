package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true within burst", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() = true, want false after burst is spent")
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	if got := rl.Tokens(); got < 9.9 || got > 10 {
		t.Errorf("Tokens() = %v, want 10", got)
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})

	ran := 0
	op := func(ctx context.Context) error {
		ran++
		return nil
	}
	if err := rl.Execute(context.Background(), op); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := rl.Execute(context.Background(), op); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Execute() error = %v, want ErrRateLimitExceeded", err)
	}
	if ran != 1 {
		t.Errorf("op ran %d times, want 1", ran)
	}
}

func TestRateLimiter_WaitExceedsDeadline(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	_ = rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Wait() error = %v, want ErrRateLimitExceeded", err)
	}
}

func TestRateLimiter_WaitRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1})
	_ = rl.Allow()

	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}
