package providers

import (
	"context"
	"time"

	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/resilience"
)

// MetricsRecorder is the counter hook Shell drives: requests_total{provider,
// status}, per spec.md §4.1 point 4-5. instrumentation.OTelProvider
// implements this.
type MetricsRecorder interface {
	RecordRequest(provider, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(provider, status string) {}

// Shell wraps an Adapter with every piece of non-adapter behavior spec.md
// §4.1 requires: the disabled short-circuit, the circuit breaker, the
// retry-with-backoff layer, timing, and metrics. The breaker and retry are
// the dedicated resilience package rather than being folded into the HTTP
// client itself.
type Shell struct {
	adapter Adapter
	config  Config
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	logger  core.Logger
	metrics MetricsRecorder
}

// NewShell builds a Shell around adapter using cfg's timeout/retry/trust
// values and a freshly constructed per-provider circuit breaker.
func NewShell(adapter Adapter, cfg Config, breakerCfg *resilience.CircuitBreakerConfig, logger core.Logger, metrics MetricsRecorder) *Shell {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if breakerCfg == nil {
		breakerCfg = resilience.DefaultConfig(cfg.Name)
	}
	breakerCfg.Name = cfg.Name
	breakerCfg.Logger = logger

	return &Shell{
		adapter: adapter,
		config:  cfg,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		retry: &resilience.RetryConfig{
			MaxAttempts:   cfg.Retries + 1,
			RetryDelay:    time.Duration(cfg.RetryDelayMs) * time.Millisecond,
			MaxDelay:      30 * time.Second,
			JitterEnabled: true,
		},
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Shell) Name() string {
	return s.config.Name
}

// Enabled reports whether this provider is configured on, for the
// GET /api/v1/providers admin surface.
func (s *Shell) Enabled() bool {
	return s.config.Enabled
}

// TrustRank exposes the configured trust rank for the same admin surface.
func (s *Shell) TrustRank() int {
	return s.config.TrustRank
}

// Breaker exposes the underlying circuit breaker for admin/health reporting
// (GET /api/v1/providers).
func (s *Shell) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

// Lookup implements Provider. It never returns an error to its caller -
// every failure mode (disabled, breaker-open, retries-exhausted,
// cancellation) is absorbed into Result.Success=false, per spec.md §4.1
// point 5 and §7's "transport errors are absorbed inside the provider
// shell" rule.
func (s *Shell) Lookup(ctx context.Context, ip string) Result {
	if !s.config.Enabled {
		return Result{Provider: s.config.Name, Success: false, LatencyMs: 0, Error: "Provider is disabled"}
	}

	start := time.Now()

	timeout := time.Duration(s.config.TimeoutMs) * time.Millisecond
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var partial Partial
	execErr := s.breaker.Execute(callCtx, func() error {
		return resilience.Retry(callCtx, s.retry, func() error {
			p, err := s.adapter.PerformLookup(callCtx, ip)
			if err != nil {
				return err
			}
			partial = p
			return nil
		})
	})

	elapsed := time.Since(start).Milliseconds()

	if execErr != nil {
		s.metrics.RecordRequest(s.config.Name, "error")
		s.logger.Warn("provider lookup failed", map[string]interface{}{
			"provider": s.config.Name,
			"ip":       ip,
			"error":    execErr.Error(),
		})
		return Result{Provider: s.config.Name, Success: false, LatencyMs: elapsed, Error: execErr.Error()}
	}

	s.metrics.RecordRequest(s.config.Name, "success")
	return Result{
		Provider:    s.config.Name,
		Success:     true,
		LatencyMs:   elapsed,
		ASN:         partial.ASN,
		Org:         partial.Org,
		Country:     partial.Country,
		Region:      partial.Region,
		City:        partial.City,
		Latitude:    partial.Latitude,
		Longitude:   partial.Longitude,
		Timezone:    partial.Timezone,
		IsProxy:     partial.IsProxy,
		IsVpn:       partial.IsVpn,
		IsTor:       partial.IsTor,
		IsHosting:   partial.IsHosting,
		IsMobile:    partial.IsMobile,
		VpnProvider: partial.VpnProvider,
		AbuseScore:  partial.AbuseScore,
		LastSeen:    partial.LastSeen,
		Raw:         partial.Raw,
	}
}
