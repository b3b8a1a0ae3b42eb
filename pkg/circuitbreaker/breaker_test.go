package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingCall() error { return errors.New("remote down") }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failingCall); err == nil {
			t.Fatal("expected call error")
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", cb.State())
	}

	err := cb.Execute(ctx, func() error {
		t.Fatal("call must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 2, Timeout: time.Hour})
	ctx := context.Background()

	cb.Execute(ctx, failingCall)
	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, failingCall)

	if cb.State() != StateClosed {
		t.Fatalf("expected closed after interleaved success, got %s", cb.State())
	}
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Millisecond,
	})
	ctx := context.Background()

	cb.Execute(ctx, failingCall)
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cool-down, got %s", cb.State())
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probes, got %s", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})
	ctx := context.Background()

	cb.Execute(ctx, failingCall)
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(ctx, failingCall); err == nil {
		t.Fatal("expected probe failure")
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected reopened, got %s", cb.State())
	}
}
