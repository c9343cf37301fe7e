package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itsneelabh/gomind/core"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test-provider")
	cfg.FailureThreshold = 3
	cb := NewCircuitBreaker(cfg)

	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after %d failures, got %s", cfg.FailureThreshold, cb.State())
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, core.ErrCircuitBreakerOpen) {
		t.Fatalf("expected ErrCircuitBreakerOpen while OPEN, got %v", err)
	}
}

func TestCircuitBreakerClosedPathResetsFailureCount(t *testing.T) {
	cfg := DefaultConfig("reset-test")
	cfg.FailureThreshold = 2
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func() error { return errors.New("one") })
	if cb.State() != StateClosed {
		t.Fatalf("expected still CLOSED after one failure, got %s", cb.State())
	}

	_ = cb.Execute(context.Background(), func() error { return nil })
	snap := cb.Snapshot()
	if snap.FailureCount != 0 {
		t.Fatalf("expected failure count reset to 0 after a success, got %d", snap.FailureCount)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cfg := DefaultConfig("half-open-test")
	cfg.FailureThreshold = 1
	cfg.ResetTimeout = 10 * time.Millisecond
	cfg.HalfOpenAttempts = 2
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after one success (need %d), got %s", cfg.HalfOpenAttempts, cb.State())
	}

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected second probe to succeed, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after %d successful half-open probes, got %s", cfg.HalfOpenAttempts, cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig("half-open-fail-test")
	cfg.FailureThreshold = 1
	cfg.ResetTimeout = 10 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(context.Background(), func() error { return errors.New("still broken") })
	if cb.State() != StateOpen {
		t.Fatalf("expected failing half-open probe to reopen, got %s", cb.State())
	}
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cfg := DefaultConfig("rejection-test")
	cfg.FailureThreshold = 1
	cfg.ResetTimeout = time.Hour
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })

	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected rejection error while OPEN")
	}
	if called {
		t.Fatal("fn should not be invoked while circuit is OPEN")
	}
}

func TestCircuitBreakerRecoversFromPanic(t *testing.T) {
	cb := NewCircuitBreaker(DefaultConfig("panic-test"))

	err := cb.Execute(context.Background(), func() error {
		panic("adapter exploded")
	})
	if err == nil {
		t.Fatal("expected panic to be converted into an error")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cfg := DefaultConfig("reset-admin-test")
	cfg.FailureThreshold = 1
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN before reset, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after Reset, got %s", cb.State())
	}
	snap := cb.Snapshot()
	if snap.FailureCount != 0 || snap.SuccessCount != 0 {
		t.Fatalf("expected zeroed counters after Reset, got %+v", snap)
	}
}

