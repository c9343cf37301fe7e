package providers

import "strings"

// vpnOrgTable is the built-in "~12 known commercial VPN operators" static
// ASN/organization -> provider map spec.md §4.4 point 2 calls for. It is
// consulted only when isVpn=true and no structured/raw vpnProvider
// candidate was found.
var vpnOrgTable = map[string]string{
	"nordvpn":       "NordVPN",
	"tefincom":      "NordVPN",
	"expressvpn":    "ExpressVPN",
	"surfshark":     "Surfshark",
	"protonvpn":     "ProtonVPN",
	"proton ag":     "ProtonVPN",
	"mullvad":       "Mullvad",
	"private internet access": "Private Internet Access",
	"pia":           "Private Internet Access",
	"cyberghost":    "CyberGhost",
	"ipvanish":      "IPVanish",
	"windscribe":    "Windscribe",
	"hide.me":       "Hide.me",
	"tunnelbear":    "TunnelBear",
	"m247":          "M247 (generic VPN infra)",
	"datacamp":      "DataCamp Limited (generic VPN infra)",
}

// ResolveVPNByOrgOrASN implements the fallback step of spec.md §4.4's
// vpnProvider rule: match the fused org/ASN text against the static table.
func ResolveVPNByOrgOrASN(org, asn string) (string, bool) {
	needle := strings.ToLower(org + " " + asn)
	for key, name := range vpnOrgTable {
		if strings.Contains(needle, key) {
			return name, true
		}
	}
	return "", false
}

// ExtractVPNFromRaw dispatches by provider name to a small set of typed
// extractors, per spec.md §9's "dispatched by provider name ... rather
// than duck-typing" design note. Each extractor knows the specific raw
// field its provider uses to carry VPN-operator identification beyond the
// structured VpnProvider field.
func ExtractVPNFromRaw(providerName string, raw Raw) (string, bool) {
	if raw == nil {
		return "", false
	}
	switch strings.ToLower(providerName) {
	case "ipqualityscore":
		if v, ok := raw["vpn_name"].(string); ok && v != "" {
			return v, true
		}
	case "ipregistry":
		if sec, ok := raw["security"].(map[string]interface{}); ok {
			if v, ok := sec["vpn_service"].(string); ok && v != "" {
				return v, true
			}
		}
	case "shodan":
		// a JSON-decoded body carries tags as []interface{}.
		var tags []string
		switch v := raw["tags"].(type) {
		case []string:
			tags = v
		case []interface{}:
			for _, t := range v {
				if s, ok := t.(string); ok {
					tags = append(tags, s)
				}
			}
		}
		for _, t := range tags {
			if strings.HasPrefix(strings.ToLower(t), "vpn:") {
				return strings.TrimPrefix(t, "vpn:"), true
			}
		}
	}
	return "", false
}
