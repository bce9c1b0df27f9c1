package confirmation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRunStopsOnDone(t *testing.T) {
	stats, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		return attempt == 3, 0, nil
	}, Options{Interval: time.Millisecond, MaxAttempts: 10})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", stats.Attempts)
	}
}

func TestRunNeverExceedsAttemptCeiling(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		calls++
		return false, 0, nil
	}, Options{Interval: time.Millisecond, MaxAttempts: 5})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if calls != 5 {
		t.Errorf("calls = %d, want exactly 5", calls)
	}
}

func TestRunElapsedCeiling(t *testing.T) {
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		return false, 0, nil
	}, Options{Interval: 5 * time.Millisecond, MaxElapsed: 20 * time.Millisecond})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
}

func TestRunStallDetection(t *testing.T) {
	stats, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		// 位置先前进两次，然后停滞
		if attempt <= 2 {
			return false, uint64(attempt), nil
		}
		return false, 2, nil
	}, Options{Interval: time.Millisecond, StallLimit: 4})

	if !errors.Is(err, ErrStalled) {
		t.Fatalf("error = %v, want ErrStalled", err)
	}
	// 2 次前进 + 4 次停滞
	if stats.Attempts != 6 {
		t.Errorf("attempts = %d, want 6", stats.Attempts)
	}
}

func TestRunRegressionCountsAsStall(t *testing.T) {
	positions := []uint64{10, 9, 8, 7}
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		return false, positions[(attempt-1)%len(positions)], nil
	}, Options{Interval: time.Millisecond, StallLimit: 3})

	if !errors.Is(err, ErrStalled) {
		t.Fatalf("error = %v, want ErrStalled", err)
	}
}

func TestRunProbeErrorsAreRetried(t *testing.T) {
	calls := 0
	stats, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		calls++
		if calls < 3 {
			return false, 0, fmt.Errorf("transient")
		}
		return true, 0, nil
	}, Options{Interval: time.Millisecond, MaxAttempts: 10})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", stats.Attempts)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, func(ctx context.Context, attempt int) (bool, uint64, error) {
		return false, 0, nil
	}, Options{Interval: 50 * time.Millisecond, MaxAttempts: 100})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRunRejectsUnboundedOptions(t *testing.T) {
	_, err := Run(context.Background(), func(ctx context.Context, attempt int) (bool, uint64, error) {
		return true, 0, nil
	}, Options{Interval: time.Millisecond})

	if err == nil {
		t.Fatal("expected error for unbounded poll")
	}
}
