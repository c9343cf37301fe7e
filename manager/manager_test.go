package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/gomind/providers"
)

type fakeProvider struct {
	name  string
	delay time.Duration
	err   bool
	panic bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Lookup(ctx context.Context, ip string) providers.Result {
	if f.panic {
		panic("adapter exploded")
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return providers.Result{Provider: f.name, Success: false, Error: ctx.Err().Error()}
	}
	if f.err {
		return providers.Result{Provider: f.name, Success: false, Error: "boom"}
	}
	return providers.Result{Provider: f.name, Success: true, ASN: "AS" + f.name}
}

func TestQueryAllReturnsInRegistrationOrder(t *testing.T) {
	providerList := []providers.Provider{
		&fakeProvider{name: "c", delay: 30 * time.Millisecond},
		&fakeProvider{name: "a", delay: 5 * time.Millisecond},
		&fakeProvider{name: "b", delay: 15 * time.Millisecond},
	}
	mgr := New(providerList, 4, 1000, nil)

	results := mgr.QueryAll(context.Background(), "1.2.3.4", nil)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Provider != "c" || results[1].Provider != "a" || results[2].Provider != "b" {
		t.Fatalf("expected registration order [c,a,b], got %v", []string{results[0].Provider, results[1].Provider, results[2].Provider})
	}
}

func TestQueryAllProgressInSettlementOrder(t *testing.T) {
	providerList := []providers.Provider{
		&fakeProvider{name: "slow", delay: 40 * time.Millisecond},
		&fakeProvider{name: "fast", delay: 5 * time.Millisecond},
	}
	mgr := New(providerList, 4, 1000, nil)

	var mu sync.Mutex
	var settleOrder []string

	mgr.QueryAll(context.Background(), "1.2.3.4", func(evt ProgressEvent) {
		mu.Lock()
		settleOrder = append(settleOrder, evt.Provider)
		mu.Unlock()
	})

	if len(settleOrder) != 2 || settleOrder[0] != "fast" || settleOrder[1] != "slow" {
		t.Fatalf("expected settlement order [fast,slow], got %v", settleOrder)
	}
}

func TestQueryAllRecoversFromPanic(t *testing.T) {
	providerList := []providers.Provider{
		&fakeProvider{name: "broken", panic: true},
		&fakeProvider{name: "fine"},
	}
	mgr := New(providerList, 4, 1000, nil)

	results := mgr.QueryAll(context.Background(), "1.2.3.4", nil)

	if results[0].Success {
		t.Fatal("expected panicking provider to settle as a failed result")
	}
	if results[0].Error == "" {
		t.Fatal("expected panic to be captured as the result's error")
	}
	if !results[1].Success {
		t.Fatal("expected the other provider to succeed independent of the panic")
	}
}

func TestQueryAllRespectsGlobalTimeout(t *testing.T) {
	providerList := []providers.Provider{
		&fakeProvider{name: "slow", delay: 200 * time.Millisecond},
	}
	mgr := New(providerList, 4, 20, nil)

	start := time.Now()
	results := mgr.QueryAll(context.Background(), "1.2.3.4", nil)
	elapsed := time.Since(start)

	if results[0].Success {
		t.Fatal("expected provider exceeding the global timeout to fail")
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("expected QueryAll to return near the global timeout, took %v", elapsed)
	}
}

func TestQueryAllBoundsConcurrency(t *testing.T) {
	const n = 6
	var mu sync.Mutex
	active, maxActive := 0, 0

	providerList := make([]providers.Provider, n)
	for i := 0; i < n; i++ {
		providerList[i] = &trackingProvider{
			name: "p",
			onStart: func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
			},
			onEnd: func() {
				mu.Lock()
				active--
				mu.Unlock()
			},
			delay: 30 * time.Millisecond,
		}
	}
	mgr := New(providerList, 2, 1000, nil)
	mgr.QueryAll(context.Background(), "1.2.3.4", nil)

	if maxActive > 2 {
		t.Fatalf("expected concurrency bounded at 2, observed %d simultaneous", maxActive)
	}
}

type trackingProvider struct {
	name    string
	delay   time.Duration
	onStart func()
	onEnd   func()
}

func (p *trackingProvider) Name() string { return p.name }

func (p *trackingProvider) Lookup(ctx context.Context, ip string) providers.Result {
	p.onStart()
	defer p.onEnd()
	time.Sleep(p.delay)
	return providers.Result{Provider: p.name, Success: true}
}

func TestProviderCount(t *testing.T) {
	providerList := []providers.Provider{&fakeProvider{name: "a"}, &fakeProvider{name: "b"}}
	mgr := New(providerList, 4, 1000, nil)
	if mgr.ProviderCount() != 2 {
		t.Fatalf("expected 2, got %d", mgr.ProviderCount())
	}
}
