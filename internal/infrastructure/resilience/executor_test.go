package resilience

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func testExecutor(cfg Config) *Executor {
	return NewExecutor(cfg, slog.New(slog.DiscardHandler))
}

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	exec := testExecutor(Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BreakerEnabled: false,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) Classification {
		return Classification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	exec := testExecutor(Config{MaxAttempts: 5, InitialBackoff: time.Millisecond, BreakerEnabled: false})

	attempts := 0
	wantErr := errors.New("bad request")
	err := exec.Execute(context.Background(), "extract", func(context.Context) error {
		attempts++
		return wantErr
	}, func(error) Classification {
		return Classification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := testExecutor(Config{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, BreakerEnabled: false})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := exec.Execute(ctx, "publish", func(context.Context) error {
		attempts++
		return errors.New("transient")
	}, func(error) Classification {
		return Classification{Retryable: true, RecordFailure: true}
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want cancellation or transient error")
	}
	if attempts > 2 {
		t.Fatalf("attempts = %d, want early stop after cancel", attempts)
	}
}

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	exec := testExecutor(Config{
		MaxAttempts:         1,
		InitialBackoff:      time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	classify := func(error) Classification { return Classification{RecordFailure: true} }
	failing := func(context.Context) error { return errors.New("down") }

	for i := 0; i < 3; i++ {
		if err := exec.Execute(context.Background(), "commit", failing, classify); err == nil {
			t.Fatal("Execute() error = nil, want failure")
		}
	}

	err := exec.Execute(context.Background(), "commit", failing, classify)
	if !IsCircuitOpen(err) {
		t.Fatalf("Execute() error = %v, want open-circuit error", err)
	}
}

func TestBreakerIgnoresNonRecordedFailures(t *testing.T) {
	exec := testExecutor(Config{
		MaxAttempts:         1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	classify := func(error) Classification { return Classification{RecordFailure: false} }
	failing := func(context.Context) error { return errors.New("caller mistake") }

	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "extract", failing, classify)
		if IsCircuitOpen(err) {
			t.Fatalf("breaker opened on non-recorded failure at attempt %d", i+1)
		}
	}
}
