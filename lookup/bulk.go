package lookup

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

const (
	// MaxBulkIPs is the hard cap on a single bulk request, per spec.md §4.5.
	MaxBulkIPs = 100
	// bulkConcurrency bounds concurrent per-IP pipelines within one bulk
	// request, independent of the per-lookup provider fan-out concurrency.
	bulkConcurrency = 5
)

// BulkSummary accompanies a bulk lookup's per-IP results.
type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkResult is the full response shape for spec.md §6's
// POST /api/v1/lookup/bulk endpoint.
type BulkResult struct {
	Results []Result    `json:"results"`
	Summary BulkSummary `json:"summary"`
}

// Bulk validates every ip in ips upfront; if any fails validation, the
// whole batch is rejected with INVALID_IPS and a details list rather than
// being partially executed (spec.md §4.5: "Validates all upfront; on any
// validation error, fail the whole batch with INVALID_IPS and a details
// list"). Only once every IP is valid does it run Lookup for each, bounded
// to bulkConcurrency concurrent pipelines.
func (s *Service) Bulk(ctx context.Context, ips []string, forceRefresh, includeLLMAnalysis bool) (*BulkResult, error) {
	if len(ips) == 0 {
		return &BulkResult{Results: []Result{}, Summary: BulkSummary{}}, nil
	}
	if len(ips) > MaxBulkIPs {
		return nil, newValidationError("BULK_LIMIT_EXCEEDED", fmt.Sprintf("at most %d IPs are allowed per bulk request", MaxBulkIPs), fmt.Sprintf("split the request into batches of %d or fewer", MaxBulkIPs))
	}

	var details []string
	for _, ip := range ips {
		if _, err := normalizeIP(ip); err != nil {
			details = append(details, fmt.Sprintf("%s: %s", ip, err.Error()))
		}
	}
	if len(details) > 0 {
		return nil, newValidationErrorWithDetails("INVALID_IPS", "one or more IPs failed validation", "fix the listed IPs and resubmit the batch", details)
	}

	return s.runBatch(ctx, ips, forceRefresh, includeLLMAnalysis), nil
}

// runBatch executes Lookup for every ip in ips, bounded to bulkConcurrency
// concurrent pipelines, and never fails the whole batch for one bad IP
// (spec.md §4.5: "never throws for per-IP failures"). Unlike Bulk, it does
// not validate upfront or reject the batch - callers that need per-host
// validation failures embedded in the results (CIDR) validate themselves
// and pass only the IPs they want executed.
func (s *Service) runBatch(ctx context.Context, ips []string, forceRefresh, includeLLMAnalysis bool) *BulkResult {
	results := make([]Result, len(ips))
	sem := semaphore.NewWeighted(bulkConcurrency)

	done := make(chan struct{}, len(ips))
	for i, ip := range ips {
		go func(index int, input string) {
			defer func() { done <- struct{}{} }()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = Result{IP: input, Success: false, Error: "request cancelled before dispatch"}
				return
			}
			defer sem.Release(1)
			results[index] = s.safeLookup(ctx, input, forceRefresh, includeLLMAnalysis)
		}(i, ip)
	}
	for range ips {
		<-done
	}

	summary := BulkSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return &BulkResult{Results: results, Summary: summary}
}

// safeLookup adapts Lookup's (result, error) return into a per-entry
// Result that is always safe to include in a batch response.
func (s *Service) safeLookup(ctx context.Context, input string, forceRefresh, includeLLMAnalysis bool) Result {
	res, err := s.Lookup(ctx, input, forceRefresh, includeLLMAnalysis)
	if err != nil {
		return Result{IP: input, Success: false, Error: err.Error()}
	}
	return *res
}
