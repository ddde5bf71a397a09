package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryBackoff_SuccessImmediate(t *testing.T) {
	result, err := RetryBackoff(context.Background(), 3, 0, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestRetryBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := RetryBackoff(context.Background(), 3, 0, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 {
		t.Fatalf("expected 99, got %d", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryBackoff_PersistentFailure(t *testing.T) {
	calls := 0
	_, err := RetryBackoff(context.Background(), 4, 0, func(context.Context) (string, error) {
		calls++
		return "", errors.New("down")
	})
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestRetryBackoff_MaxTriesZeroOrNegative(t *testing.T) {
	for _, n := range []int{0, -1} {
		calls := 0
		_, _ = RetryBackoff(context.Background(), n, 0, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("maxTries=%d: expected 1 call, got %d", n, calls)
		}
	}
}

func TestRetryBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryBackoff(ctx, 3, 0, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
}

func TestRetryBackoff_FunctionReturnsContextError(t *testing.T) {
	calls := 0
	_, err := RetryBackoff(context.Background(), 5, 0, func(context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry after context error, got %d calls", calls)
	}
}

func TestRetryBackoff_DoublesWait(t *testing.T) {
	var stamps []time.Time
	_, err := RetryBackoff(context.Background(), 3, 10*time.Millisecond, func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errors.New("down")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(stamps) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(stamps))
	}
	if d := stamps[1].Sub(stamps[0]); d < 10*time.Millisecond {
		t.Fatalf("expected first wait of at least 10ms, got %v", d)
	}
	if d := stamps[2].Sub(stamps[1]); d < 20*time.Millisecond {
		t.Fatalf("expected second wait of at least 20ms, got %v", d)
	}
}

func TestRetryBackoff_WaitIsInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := RetryBackoff(ctx, 5, time.Second, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("expected backoff to stop with the context")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("FG_TEST_DURATION", "90s")
	if got := GetEnvDuration("FG_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	t.Setenv("FG_TEST_DURATION", "soon")
	if got := GetEnvDuration("FG_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
}
