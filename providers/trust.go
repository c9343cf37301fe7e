package providers

import (
	"os"
	"strconv"
	"strings"
)

// defaultTrustRanks are spec.md §4.4's "defaults (6-9 depending on
// provider)". ipqualityscore is the one adapter configured with elevated
// trust (10) for VPN identification per spec.md §4.4 point 3.
var defaultTrustRanks = map[string]int{
	"ipinfo":         8,
	"maxmind":        8,
	"ipapi":          6,
	"ipregistry":     7,
	"abuseipdb":      7,
	"ipqualityscore": 10,
	"shodan":         7,
	"virustotal":     6,
	"spur":           9,
	"proxycheck":     7,
}

// BuildTrustTable constructs the process-wide, read-only trust-rank table
// from defaults overridden by `{PROVIDER}_TRUST_RANK` environment
// variables, exactly once at startup. Per spec.md §4.4/§9, per-call reads
// must never touch the environment - callers hold the returned map and
// look values up directly.
func BuildTrustTable(names []string) map[string]int {
	table := make(map[string]int, len(names))
	for _, name := range names {
		rank, ok := defaultTrustRanks[strings.ToLower(name)]
		if !ok {
			rank = 5 // spec.md §3: trust rank defaults to 5 if not configured
		}
		envKey := strings.ToUpper(name) + "_TRUST_RANK"
		if v := os.Getenv(envKey); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 10 {
				rank = n
			}
		}
		table[name] = rank
	}
	return table
}
