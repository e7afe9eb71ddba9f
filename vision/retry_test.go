package vision

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fixedRand returns a constant value, making jitter deterministic.
type fixedRand struct{ v float64 }

func (r fixedRand) Float64() float64 { return r.v }

func testPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     maxRetries,
		BaseDelay:      time.Millisecond,
		MaxDelay:       4 * time.Millisecond,
		AttemptTimeout: time.Second,
		Rand:           fixedRand{0},
	}
}

func TestBackoff_ExponentialWithCap(t *testing.T) {
	p := RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  300 * time.Millisecond,
		Rand:      fixedRand{0},
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 300 * time.Millisecond}, // 400ms capped
		{10, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_JitterIsAdditiveOnly(t *testing.T) {
	base := RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  time.Second,
		Rand:      fixedRand{0},
	}
	maxJitter := RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  time.Second,
		Rand:      fixedRand{0.999},
	}

	lo := base.backoff(0)
	hi := maxJitter.backoff(0)

	if hi < lo {
		t.Errorf("jitter subtracted: %v < %v", hi, lo)
	}
	// Up to 30% on top of the capped delay.
	if hi > lo+lo*3/10+time.Millisecond {
		t.Errorf("jitter exceeds 30%%: %v vs base %v", hi, lo)
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	calls := 0
	err := testPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrNetwork
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := testPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		return ErrServer
	})
	if !errors.Is(err, ErrServer) {
		t.Fatalf("err = %v, want ErrServer", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", calls)
	}
}

func TestDo_AuthFailsFast(t *testing.T) {
	calls := 0
	err := testPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Code: 401, Body: "expired"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (auth is non-retriable)", calls)
	}
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := testPolicy(10).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return ErrNetwork
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_AttemptTimeoutIsRetriable(t *testing.T) {
	p := testPolicy(1)
	p.AttemptTimeout = 5 * time.Millisecond

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(classifyError(err), ErrTimeout) {
		t.Fatalf("err = %v, want a timeout classification", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (timeout retried once)", calls)
	}
}
