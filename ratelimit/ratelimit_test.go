package ratelimit

import (
	"testing"
	"time"
)

func TestAllowNWithinBudget(t *testing.T) {
	l := New(100, nil)
	defer l.Close()

	if !l.AllowN("requester-a", 50) {
		t.Fatal("expected first 50 of a 100/min budget to be allowed")
	}
}

func TestAllowNRejectsOverBudget(t *testing.T) {
	l := New(10, nil)
	defer l.Close()

	if !l.AllowN("requester-b", 10) {
		t.Fatal("expected burst up to the full budget to be allowed")
	}
	if l.AllowN("requester-b", 1) {
		t.Fatal("expected the next request to be rejected once the budget is exhausted")
	}
}

func TestAllowNIsPerRequester(t *testing.T) {
	l := New(5, nil)
	defer l.Close()

	if !l.AllowN("a", 5) {
		t.Fatal("expected requester a to get its full budget")
	}
	if !l.AllowN("b", 5) {
		t.Fatal("expected requester b to have an independent budget")
	}
}

func TestRetryAfterIsPositive(t *testing.T) {
	l := New(60, nil)
	defer l.Close()

	if got := l.RetryAfter("anyone"); got <= 0 {
		t.Fatalf("expected a positive retry-after duration, got %v", got)
	}
}

func TestSweepRemovesStaleRequesters(t *testing.T) {
	l := New(10, nil)
	defer l.Close()

	l.AllowN("stale-requester", 1)
	l.sweep(time.Now().Add(3 * time.Minute))

	l.mu.Lock()
	_, ok := l.perRequester["stale-requester"]
	l.mu.Unlock()

	if ok {
		t.Fatal("expected stale requester to be swept")
	}
}

func TestSweepKeepsRecentRequesters(t *testing.T) {
	l := New(10, nil)
	defer l.Close()

	l.AllowN("fresh-requester", 1)
	l.sweep(time.Now())

	l.mu.Lock()
	_, ok := l.perRequester["fresh-requester"]
	l.mu.Unlock()

	if !ok {
		t.Fatal("expected recently-seen requester to survive a sweep")
	}
}
