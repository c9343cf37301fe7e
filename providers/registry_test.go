package providers

import (
	"os"
	"testing"

	"github.com/itsneelabh/gomind/core"
)

func TestBuildFleetOnlyQueuesEnabledProviders(t *testing.T) {
	os.Setenv("SHODAN_ENABLED", "false")
	defer os.Unsetenv("SHODAN_ENABLED")

	providersCfg := core.ProvidersConfig{TimeoutMs: 1000, Retries: 1, RetryDelayMs: 10, Concurrency: 4, GlobalTimeoutMs: 5000}
	breakerCfg := core.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeoutMs: 60000, HalfOpenAttempts: 1}

	fleet := BuildFleet(providersCfg, breakerCfg, nil, nil, nil)

	if len(fleet.Shells) != len(DefaultProviderNames) {
		t.Fatalf("expected every catalog entry to have a shell, got %d", len(fleet.Shells))
	}

	for _, p := range fleet.Providers {
		if p.Name() == "shodan" {
			t.Fatal("expected disabled provider to be excluded from the fan-out slice")
		}
	}
	if _, ok := fleet.Shells["shodan"]; !ok {
		t.Fatal("expected disabled provider to still be reported in Shells for the admin surface")
	}
	if len(fleet.Providers) != len(DefaultProviderNames)-1 {
		t.Fatalf("expected %d enabled providers, got %d", len(DefaultProviderNames)-1, len(fleet.Providers))
	}
}

func TestBuildFleetTrustRankPopulated(t *testing.T) {
	providersCfg := core.ProvidersConfig{TimeoutMs: 1000, Retries: 1, RetryDelayMs: 10}
	breakerCfg := core.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeoutMs: 60000, HalfOpenAttempts: 1}

	fleet := BuildFleet(providersCfg, breakerCfg, nil, nil, nil)

	if fleet.TrustRank["ipqualityscore"] != 10 {
		t.Fatalf("expected ipqualityscore trust rank 10, got %d", fleet.TrustRank["ipqualityscore"])
	}
}
