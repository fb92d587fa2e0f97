package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), RetryPolicy{MaxAttempts: 3, InitialBackoff: 0, MaxBackoff: 0}, func(error) bool { return true }, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnNonTransientError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("fatal")
	err := Do(context.Background(), DefaultPolicy, func(error) bool { return false }, func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestDoReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	sentinel := errors.New("still failing")
	err := Do(context.Background(), RetryPolicy{MaxAttempts: 2, InitialBackoff: 0, MaxBackoff: 0}, func(error) bool { return true }, func() error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}
