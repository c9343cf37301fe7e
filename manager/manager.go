// Package manager implements the Provider Manager fan-out executor
// (spec.md §4.3): invoke every enabled provider under a global deadline and
// a bounded concurrency limit, collecting all settled results in
// registration order while streaming completion events in settlement
// order, through a semaphore with per-call panic recovery and completion
// callbacks.
package manager

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/providers"
	"golang.org/x/sync/semaphore"
)

// ProgressEvent is delivered to the optional progress callback exactly
// once per provider, in settlement order, per spec.md §4.3 point 3.
type ProgressEvent struct {
	Provider string
	Success  bool
	Index    int // monotonically increasing completion counter
	Total    int
	Result   providers.Result
}

// Manager fans out to a registered, ordered set of providers.
type Manager struct {
	providers      []providers.Provider
	concurrency    int64
	globalTimeout  time.Duration
	logger         core.Logger
}

// New builds a Manager over providerList (registration order is preserved
// for the QueryAll return value).
func New(providerList []providers.Provider, concurrency int, globalTimeoutMs int, logger core.Logger) *Manager {
	if concurrency < 1 {
		concurrency = 4
	}
	if globalTimeoutMs < 1 {
		globalTimeoutMs = 5000
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Manager{
		providers:     providerList,
		concurrency:   int64(concurrency),
		globalTimeout: time.Duration(globalTimeoutMs) * time.Millisecond,
		logger:        logger,
	}
}

// ProviderCount returns the number of registered providers, used by the
// streaming pipeline to report providersQueried before fan-out begins.
func (m *Manager) ProviderCount() int {
	return len(m.providers)
}

// QueryAll implements spec.md §4.3's algorithm. ctx is the caller's
// cancellation source (e.g. the lookup service's own context); a child
// deadline of globalTimeout is composed on top of it so either can abort
// in-flight calls. onProgress may be nil.
func (m *Manager) QueryAll(ctx context.Context, ip string, onProgress func(ProgressEvent)) []providers.Result {
	n := len(m.providers)
	results := make([]providers.Result, n)

	deadlineCtx, cancel := context.WithTimeout(ctx, m.globalTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(m.concurrency)

	var wg sync.WaitGroup
	var completed int
	var mu sync.Mutex

	for i, p := range m.providers {
		wg.Add(1)
		go func(index int, provider providers.Provider) {
			defer wg.Done()

			if err := sem.Acquire(deadlineCtx, 1); err != nil {
				// Global deadline fired before this provider even got a
				// slot; synthesize the failure the same way a panic does.
				result := providers.Result{Provider: provider.Name(), Success: false, Error: "deadline exceeded before dispatch"}
				m.recordSettlement(&mu, &completed, n, provider.Name(), result, onProgress)
				results[index] = result
				return
			}
			defer sem.Release(1)

			result := m.runProtected(deadlineCtx, provider, ip)
			results[index] = result
			m.recordSettlement(&mu, &completed, n, provider.Name(), result, onProgress)
		}(i, p)
	}

	wg.Wait()
	return results
}

// runProtected calls provider.Lookup and converts a panic into a synthetic
// failed Result, per spec.md §4.3 point 3's "task boundary converts any
// thrown error into a synthetic ProviderResult".
func (m *Manager) runProtected(ctx context.Context, provider providers.Provider, ip string) (result providers.Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("provider panicked", map[string]interface{}{
				"provider": provider.Name(),
				"panic":    fmt.Sprintf("%v", r),
				"stack":    string(debug.Stack()),
			})
			result = providers.Result{Provider: provider.Name(), Success: false, LatencyMs: 0, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return provider.Lookup(ctx, ip)
}

func (m *Manager) recordSettlement(mu *sync.Mutex, completed *int, total int, name string, result providers.Result, onProgress func(ProgressEvent)) {
	mu.Lock()
	*completed++
	index := *completed
	mu.Unlock()

	if onProgress != nil {
		onProgress(ProgressEvent{Provider: name, Success: result.Success, Index: index, Total: total, Result: result})
	}
}
