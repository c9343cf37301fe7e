package lookup

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/itsneelabh/gomind/providers"
)

func TestExpandCIDRExcludesNetworkAndBroadcast(t *testing.T) {
	hosts, err := expandCIDR("203.0.113.0/30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// /30 has 4 addresses; .0 (network) and .3 (broadcast) excluded.
	if len(hosts) != 2 {
		t.Fatalf("expected 2 usable hosts, got %d (%v)", len(hosts), hosts)
	}
	if hosts[0] != "203.0.113.1" || hosts[1] != "203.0.113.2" {
		t.Fatalf("expected [203.0.113.1 203.0.113.2], got %v", hosts)
	}
}

func TestExpandCIDRPointToPointUnaffected(t *testing.T) {
	hosts, err := expandCIDR("203.0.113.0/31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected both /31 addresses kept, got %d (%v)", len(hosts), hosts)
	}
}

func TestExpandCIDRSingleHost(t *testing.T) {
	hosts, err := expandCIDR("203.0.113.5/32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 1 || hosts[0] != "203.0.113.5" {
		t.Fatalf("expected [203.0.113.5], got %v", hosts)
	}
}

func TestExpandCIDRInvalidBlock(t *testing.T) {
	_, err := expandCIDR("not-a-cidr")
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Code != "INVALID_CIDR" {
		t.Fatalf("expected INVALID_CIDR, got %s", verr.Code)
	}
}

func TestCountCIDRHostsMatchesExpansion(t *testing.T) {
	count, err := CountCIDRHosts("203.0.113.0/29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hosts, _ := expandCIDR("203.0.113.0/29")
	if count != len(hosts) {
		t.Fatalf("expected CountCIDRHosts to match expandCIDR length, got %d vs %d", count, len(hosts))
	}
}

func TestCIDREmbedsPerHostValidationFailuresWithoutRejectingBatch(t *testing.T) {
	providerList := []providers.Provider{&fakeProvider{name: "ipinfo", success: true, asn: "AS1"}}
	svc, mr := newTestService(t, providerList, nil)
	defer mr.Close()

	// 10.0.0.0/30 expands to two private hosts (10.0.0.1, 10.0.0.2); per
	// spec.md §4.5, CIDR embeds these as failed results instead of
	// rejecting the whole request the way Bulk's upfront validation does.
	result, err := svc.CIDR(context.Background(), "10.0.0.0/30", false, false)
	if err != nil {
		t.Fatalf("CIDR must embed per-host validation failures, not reject the batch: %v", err)
	}
	if result.Summary.Total != 2 || result.Summary.Failed != 2 {
		t.Fatalf("expected both hosts embedded as failures, got %+v", result.Summary)
	}
	for _, r := range result.Results {
		if r.Success || r.Error == "" {
			t.Fatalf("expected a non-empty validation error per host, got %+v", r)
		}
	}
}

func TestCIDRRunsBulkLookupOnValidHosts(t *testing.T) {
	providerList := []providers.Provider{&fakeProvider{name: "ipinfo", success: true, asn: "AS1"}}
	svc, mr := newTestService(t, providerList, nil)
	defer mr.Close()

	// 203.0.113.0/30 expands to two non-private hosts.
	result, err := svc.CIDR(context.Background(), "203.0.113.0/30", false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Total != 2 || result.Summary.Successful != 2 {
		t.Fatalf("expected both hosts looked up successfully, got %+v", result.Summary)
	}
}

func TestExpandCIDRAscendingOrder(t *testing.T) {
	hosts, err := expandCIDR("10.0.0.0/28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(hosts); i++ {
		// compare the parsed addresses byte-wise: the dotted strings change
		// width inside a /28 (.9 -> .10), so a string compare would not do.
		if bytes.Compare(net.ParseIP(hosts[i-1]).To16(), net.ParseIP(hosts[i]).To16()) >= 0 {
			t.Fatalf("expected ascending order, %s came before %s", hosts[i-1], hosts[i])
		}
	}
}
