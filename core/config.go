// Package core provides the ambient stack shared by every other package in
// this service: structured logging, the framework error type, and the
// environment-driven configuration loader.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable named in the service's environment variable
// table. It is built in two layers:
//  1. DefaultConfig() - sane production defaults
//  2. LoadFromEnv() - environment overrides (the unprefixed tunable names
//     such as PROVIDER_CONCURRENCY, plus IPINTEL_*-prefixed service settings)
//
// The logging format auto-detects Kubernetes (JSON there, text locally).
type Config struct {
	ServiceName string
	Port        int

	Providers  ProvidersConfig
	Lookup     LookupConfig
	Breaker    CircuitBreakerConfig
	RateLimit  RateLimitConfig
	LLM        LLMConfig
	Logging    LoggingConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
}

// ProvidersConfig tunes the fan-out executor (spec.md §4.3, §6).
type ProvidersConfig struct {
	Concurrency    int
	TimeoutMs      int
	Retries        int
	RetryDelayMs   int
	GlobalTimeoutMs int
}

// LookupConfig tunes the cache/db/live pipeline (spec.md §4.5, §6).
type LookupConfig struct {
	CacheTTLSeconds              int
	CacheRefreshThresholdSeconds int
	BulkMaxIPs                   int
	BulkConcurrency              int
	CIDRMaxHosts                 int
}

// CircuitBreakerConfig tunes resilience.CircuitBreaker (spec.md §4.2, §6).
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeoutMs   int
	HalfOpenAttempts int
}

// RateLimitConfig tunes the bulk/CIDR per-requester limiter (spec.md §4.5).
type RateLimitConfig struct {
	IPsPerMinute int
}

// LLMConfig tunes the enrichment boundary (spec.md §4.7).
type LLMConfig struct {
	Enabled   bool
	TimeoutMs int
	APIKey    string
	Model     string
	BaseURL   string
}

// LoggingConfig controls ProductionLogger's output.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
	Output string // "stdout" or "stderr"
	Debug  bool
}

// RedisConfig configures the cache tier.
type RedisConfig struct {
	URL string
}

// PostgresConfig configures the durable tier.
type PostgresConfig struct {
	DSN string
}

// DefaultConfig returns spec.md §6's default values.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "ipintel",
		Port:        8080,
		Providers: ProvidersConfig{
			Concurrency:     4,
			TimeoutMs:       3000,
			Retries:         2,
			RetryDelayMs:    500,
			GlobalTimeoutMs: 5000,
		},
		Lookup: LookupConfig{
			CacheTTLSeconds:              2592000,
			CacheRefreshThresholdSeconds: 2160000,
			BulkMaxIPs:                   100,
			BulkConcurrency:              5,
			CIDRMaxHosts:                 256,
		},
		Breaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeoutMs:   60000,
			HalfOpenAttempts: 1,
		},
		RateLimit: RateLimitConfig{
			IPsPerMinute: 500,
		},
		LLM: LLMConfig{
			Enabled:   true,
			TimeoutMs: 30000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// DetectEnvironment flips logging to JSON when running inside Kubernetes.
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.Logging.Format = "json"
	}
}

// LoadFromEnv overlays environment variables onto the defaults: the
// unprefixed tunables (PROVIDER_*, CACHE_*, CIRCUIT_BREAKER_*, LLM_*, ...)
// and the IPINTEL_*-prefixed service settings. Unset variables leave the
// existing value untouched.
func (c *Config) LoadFromEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	intv := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q: %w", key, v, ErrInvalidConfiguration)
		}
		*dst = n
		return nil
	}
	boolv := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("IPINTEL_SERVICE_NAME", &c.ServiceName)
	if err := intv("IPINTEL_PORT", &c.Port); err != nil {
		return err
	}

	if err := intv("PROVIDER_CONCURRENCY", &c.Providers.Concurrency); err != nil {
		return err
	}
	if err := intv("PROVIDER_TIMEOUT_MS", &c.Providers.TimeoutMs); err != nil {
		return err
	}
	if err := intv("PROVIDER_RETRIES", &c.Providers.Retries); err != nil {
		return err
	}
	if err := intv("PROVIDER_RETRY_DELAY_MS", &c.Providers.RetryDelayMs); err != nil {
		return err
	}
	if err := intv("LOOKUP_GLOBAL_TIMEOUT_MS", &c.Providers.GlobalTimeoutMs); err != nil {
		return err
	}

	if err := intv("CACHE_TTL_SECONDS", &c.Lookup.CacheTTLSeconds); err != nil {
		return err
	}
	if err := intv("CACHE_REFRESH_THRESHOLD_SECONDS", &c.Lookup.CacheRefreshThresholdSeconds); err != nil {
		return err
	}

	if err := intv("CIRCUIT_BREAKER_FAILURE_THRESHOLD", &c.Breaker.FailureThreshold); err != nil {
		return err
	}
	if err := intv("CIRCUIT_BREAKER_RESET_TIMEOUT_MS", &c.Breaker.ResetTimeoutMs); err != nil {
		return err
	}
	if err := intv("CIRCUIT_BREAKER_HALF_OPEN_ATTEMPTS", &c.Breaker.HalfOpenAttempts); err != nil {
		return err
	}

	if err := intv("BULK_RATE_LIMIT_IPS_PER_MINUTE", &c.RateLimit.IPsPerMinute); err != nil {
		return err
	}

	boolv("LLM_ENABLED", &c.LLM.Enabled)
	if err := intv("LLM_TIMEOUT_MS", &c.LLM.TimeoutMs); err != nil {
		return err
	}
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_BASE_URL", &c.LLM.BaseURL)

	str("GOMIND_LOG_LEVEL", &c.Logging.Level)
	boolv("IPINTEL_DEBUG", &c.Logging.Debug)

	str("IPINTEL_REDIS_URL", &c.Redis.URL)
	if c.Redis.URL == "" {
		str("REDIS_URL", &c.Redis.URL)
	}

	str("IPINTEL_POSTGRES_DSN", &c.Postgres.DSN)
	if c.Postgres.DSN == "" {
		str("DATABASE_URL", &c.Postgres.DSN)
	}

	c.DetectEnvironment()
	return nil
}

// Validate rejects configurations that would make the core invariants
// (spec.md §8) impossible to satisfy.
func (c *Config) Validate() error {
	if c.Providers.Concurrency < 1 {
		return fmt.Errorf("%w: PROVIDER_CONCURRENCY must be >= 1", ErrInvalidConfiguration)
	}
	if c.Providers.GlobalTimeoutMs < 1 {
		return fmt.Errorf("%w: LOOKUP_GLOBAL_TIMEOUT_MS must be >= 1", ErrInvalidConfiguration)
	}
	if c.Lookup.BulkMaxIPs < 1 {
		return fmt.Errorf("%w: bulk max IPs must be >= 1", ErrInvalidConfiguration)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("%w: CIRCUIT_BREAKER_FAILURE_THRESHOLD must be >= 1", ErrInvalidConfiguration)
	}
	return nil
}

// NewConfig builds a validated Config from defaults + environment.
func NewConfig() (*Config, error) {
	c := DefaultConfig()
	if err := c.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ============================================================================
// ProductionLogger - structured logging with JSON/text output modes.
// ============================================================================

// MetricsRecorder is the minimal hook ProductionLogger uses to surface a
// counter per log event. instrumentation.OTelProvider implements this;
// NoOpLogger-style behavior when left nil.
type MetricsRecorder interface {
	RecordLogEvent(level, component string)
}

// ProductionLogger emits JSON in production (auto-detected via
// KUBERNETES_SERVICE_HOST) and human-readable text locally.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer
	metrics     MetricsRecorder
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}
	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       logging.Debug || strings.EqualFold(logging.Level, "debug"),
		serviceName: serviceName,
		component:   serviceName,
		format:      logging.Format,
		output:      output,
	}
}

// WithComponent returns a logger that tags every line with component,
// without touching the shared output/format configuration.
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

// WithMetrics attaches a MetricsRecorder, enabling the metrics layer.
func (p *ProductionLogger) WithMetrics(m MetricsRecorder) *ProductionLogger {
	clone := *p
	clone.metrics = m
	return &clone
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields)
}
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields)
}
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields)
}
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields)
	}
}

// The *WithContext variants exist to satisfy the Logger interface used
// across goroutine-heavy packages (resilience, manager, lookup); this
// logger doesn't thread trace baggage through context, so they just defer
// to the context-free form.
func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}
		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s\n", timestamp, level, p.component, msg, fieldStr.String())
	}

	if p.metrics != nil {
		p.metrics.RecordLogEvent(level, p.component)
	}
}
