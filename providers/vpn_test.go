package providers

import "testing"

func TestResolveVPNByOrgOrASN(t *testing.T) {
	name, ok := ResolveVPNByOrgOrASN("NordVPN S.A.", "")
	if !ok || name != "NordVPN" {
		t.Fatalf("expected NordVPN match, got %q, %v", name, ok)
	}

	name, ok = ResolveVPNByOrgOrASN("Some Residential ISP", "AS64500")
	if ok {
		t.Fatalf("expected no match for unrelated org, got %q", name)
	}
}

func TestExtractVPNFromRawIPQualityScore(t *testing.T) {
	raw := Raw{"vpn_name": "Private Internet Access"}
	name, ok := ExtractVPNFromRaw("ipqualityscore", raw)
	if !ok || name != "Private Internet Access" {
		t.Fatalf("expected extraction from vpn_name, got %q, %v", name, ok)
	}
}

func TestExtractVPNFromRawIPRegistry(t *testing.T) {
	raw := Raw{"security": map[string]interface{}{"vpn_service": "Mullvad"}}
	name, ok := ExtractVPNFromRaw("ipregistry", raw)
	if !ok || name != "Mullvad" {
		t.Fatalf("expected extraction from nested security.vpn_service, got %q, %v", name, ok)
	}
}

func TestExtractVPNFromRawShodanTagPrefix(t *testing.T) {
	raw := Raw{"tags": []string{"cloud", "vpn:ExpressVPN"}}
	name, ok := ExtractVPNFromRaw("shodan", raw)
	if !ok || name != "ExpressVPN" {
		t.Fatalf("expected extraction from vpn: tag, got %q, %v", name, ok)
	}
}

func TestExtractVPNFromRawUnknownProvider(t *testing.T) {
	_, ok := ExtractVPNFromRaw("maxmind", Raw{"vpn_name": "whatever"})
	if ok {
		t.Fatal("expected no extractor registered for maxmind")
	}
}

func TestExtractVPNFromRawNilRaw(t *testing.T) {
	_, ok := ExtractVPNFromRaw("ipqualityscore", nil)
	if ok {
		t.Fatal("expected false for nil raw")
	}
}
