package providers

import (
	"os"
	"testing"
)

func TestBuildTrustTableDefaults(t *testing.T) {
	table := BuildTrustTable([]string{"ipinfo", "ipapi", "unknown-provider"})

	if table["ipinfo"] != 8 {
		t.Fatalf("expected ipinfo default 8, got %d", table["ipinfo"])
	}
	if table["ipapi"] != 6 {
		t.Fatalf("expected ipapi default 6, got %d", table["ipapi"])
	}
	if table["unknown-provider"] != 5 {
		t.Fatalf("expected unconfigured provider to default to 5, got %d", table["unknown-provider"])
	}
}

func TestBuildTrustTableEnvOverride(t *testing.T) {
	os.Setenv("IPINFO_TRUST_RANK", "3")
	defer os.Unsetenv("IPINFO_TRUST_RANK")

	table := BuildTrustTable([]string{"ipinfo"})
	if table["ipinfo"] != 3 {
		t.Fatalf("expected env override 3, got %d", table["ipinfo"])
	}
}

func TestBuildTrustTableIgnoresOutOfRangeOverride(t *testing.T) {
	os.Setenv("IPINFO_TRUST_RANK", "99")
	defer os.Unsetenv("IPINFO_TRUST_RANK")

	table := BuildTrustTable([]string{"ipinfo"})
	if table["ipinfo"] != 8 {
		t.Fatalf("expected out-of-range override to be ignored, got %d", table["ipinfo"])
	}
}
