package providers

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/resilience"
)

// catalogEntry pairs a provider's default base URL with its adapter
// constructor, used by BuildFleet to assemble the full set of ~10
// mechanical adapters in spec.md §2's "25+, mostly mechanical" category
// (this implementation wires a representative subset by name; additional
// adapters follow the identical newHTTPAdapter shape).
type catalogEntry struct {
	defaultBaseURL string
	build          func(baseURL, apiKey string) Adapter
}

var catalog = map[string]catalogEntry{
	"ipinfo":         {"https://ipinfo.io", NewIPInfoAdapter},
	"ipapi":          {"http://ip-api.com/json", NewIPAPIAdapter},
	"ipqualityscore": {"https://ipqualityscore.com/api/json/ip", NewIPQualityScoreAdapter},
	"abuseipdb":      {"https://api.abuseipdb.com/api/v2/check", NewAbuseIPDBAdapter},
	"maxmind":        {"https://geoip.maxmind.com/geoip/v2.1/city", NewMaxMindAdapter},
	"ipregistry":     {"https://api.ipregistry.co", NewIPRegistryAdapter},
	"shodan":         {"https://api.shodan.io/shodan/host", NewShodanAdapter},
	"virustotal":     {"https://www.virustotal.com/api/v3/ip_addresses", NewVirusTotalAdapter},
	"spur":           {"https://api.spur.us/v2/context", NewSpurAdapter},
	"proxycheck":     {"https://proxycheck.io/v2", NewProxyCheckAdapter},
}

// DefaultProviderNames is the registration order used when no explicit
// fleet list is configured. Registration order matters: Manager returns
// results aligned to it (spec.md §4.3 point 4).
var DefaultProviderNames = []string{
	"ipinfo", "ipapi", "ipqualityscore", "abuseipdb", "maxmind",
	"ipregistry", "shodan", "virustotal", "spur", "proxycheck",
}

// Fleet is the process-wide, ordered set of provider shells plus the
// trust-rank table correlation.Correlate consults.
type Fleet struct {
	Providers []Provider
	Shells    map[string]*Shell
	TrustRank map[string]int
}

// BuildFleet constructs one Config + Shell per name in DefaultProviderNames,
// reading `{NAME}_ENABLED`, `{NAME}_API_KEY`, `{NAME}_BASE_URL` overrides
// from the environment once at startup (spec.md §4.4's "trust rank table
// built once ... lookups must not hit the environment per call" applies to
// the whole fleet, not just trust ranks).
func BuildFleet(providersCfg core.ProvidersConfig, breakerCfg core.CircuitBreakerConfig, logger core.Logger, metrics MetricsRecorder, breakerMetrics resilience.MetricsCollector) *Fleet {
	names := DefaultProviderNames
	trustTable := BuildTrustTable(names)

	fleet := &Fleet{
		Shells:    make(map[string]*Shell, len(names)),
		TrustRank: trustTable,
	}

	for _, name := range names {
		entry, ok := catalog[name]
		if !ok {
			continue
		}

		cfg := Config{
			Name:         name,
			Enabled:      envBool(strings.ToUpper(name)+"_ENABLED", true),
			BaseURL:      envStr(strings.ToUpper(name)+"_BASE_URL", entry.defaultBaseURL),
			APIKey:       os.Getenv(strings.ToUpper(name) + "_API_KEY"),
			TimeoutMs:    providersCfg.TimeoutMs,
			Retries:      providersCfg.Retries,
			RetryDelayMs: providersCfg.RetryDelayMs,
			TrustRank:    trustTable[name],
		}

		adapter := entry.build(cfg.BaseURL, cfg.APIKey)

		shellBreakerCfg := resilience.DefaultConfig(name)
		shellBreakerCfg.FailureThreshold = breakerCfg.FailureThreshold
		shellBreakerCfg.HalfOpenAttempts = breakerCfg.HalfOpenAttempts
		shellBreakerCfg.ResetTimeout = msToDuration(breakerCfg.ResetTimeoutMs)
		if breakerMetrics != nil {
			shellBreakerCfg.Metrics = breakerMetrics
		}

		shell := NewShell(adapter, cfg, shellBreakerCfg, logger, metrics)
		fleet.Shells[name] = shell
		if cfg.Enabled {
			fleet.Providers = append(fleet.Providers, shell)
		}
	}

	return fleet
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
