// Package providers implements the provider shell (spec.md §4.1) and the
// mechanical HTTP adapters that sit behind it. Every adapter is a thin
// performLookup implementation; circuit breaking, retry, timeout
// composition, and metrics are all supplied once by Shell.
package providers

import (
	"context"
	"time"
)

// Config is spec.md §3's ProviderConfig value record. It is immutable for
// the lifetime of the process once built at startup.
type Config struct {
	Name         string
	Enabled      bool
	BaseURL      string
	APIKey       string
	TimeoutMs    int
	Retries      int
	RetryDelayMs int
	// TrustRank is in [0,10]; defaults to 5 when unset, per spec.md §3.
	TrustRank int
}

// Raw is the opaque per-provider response bag adapters attach to their
// Result. Correlation's VPN-provider extraction and the LLM enricher read
// from it through the typed accessors in vpn.go rather than by
// duck-typing a schemaless map, per the design note in spec.md §9.
type Raw map[string]interface{}

// Result is spec.md §3's ProviderResult (partial). success=false implies
// every data field below is the zero value; success=true implies
// LatencyMs >= 0.
type Result struct {
	Provider  string
	Success   bool
	LatencyMs int64
	Error     string

	ASN         string
	Org         string
	Country     string
	Region      string
	City        string
	Latitude    *float64
	Longitude   *float64
	Timezone    string
	IsProxy     *bool
	IsVpn       *bool
	IsTor       *bool
	IsHosting   *bool
	IsMobile    *bool
	VpnProvider string
	AbuseScore  *int
	LastSeen    *time.Time
	Raw         Raw
}

// Partial is what an Adapter returns: the data half of Result, with no
// transport metadata (Shell fills Provider/Success/LatencyMs/Error).
type Partial struct {
	ASN         string
	Org         string
	Country     string
	Region      string
	City        string
	Latitude    *float64
	Longitude   *float64
	Timezone    string
	IsProxy     *bool
	IsVpn       *bool
	IsTor       *bool
	IsHosting   *bool
	IsMobile    *bool
	VpnProvider string
	AbuseScore  *int
	LastSeen    *time.Time
	Raw         Raw
}

// Adapter is the only thing a concrete provider implements: one HTTP round
// trip parsed into a Partial. Shell supplies everything else.
type Adapter interface {
	// Name must match the Config.Name this adapter was registered under.
	Name() string
	// PerformLookup issues the outbound request. ctx already carries the
	// composed per-provider/global deadline (see Shell.Lookup).
	PerformLookup(ctx context.Context, ip string) (Partial, error)
}

// Provider is the uniform interface the Manager fans out to: one
// operation, lookup(ip, cancellation) -> ProviderResult, that never
// returns an error (spec.md §4.1 point 5).
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) Result
}
