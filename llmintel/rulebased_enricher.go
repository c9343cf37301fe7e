package llmintel

import (
	"context"
	"fmt"

	"github.com/itsneelabh/gomind/correlation"
)

// RuleBasedEnricher is the deterministic, dependency-free fallback used
// when no LLM API key is configured: a swappable, always-available
// stand-in with the same call/health shape as a real provider, driven by
// correlation.Record's fused threat/flags fields instead of canned
// strings.
type RuleBasedEnricher struct{}

func NewRuleBasedEnricher() *RuleBasedEnricher {
	return &RuleBasedEnricher{}
}

// Analyze derives a verdict straight from the already-fused threat/flags
// fields - no network call, so it cannot time out; it returns nil only when
// ctx is already done.
func (e *RuleBasedEnricher) Analyze(ctx context.Context, record *correlation.Record) *Analysis {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	score := 0
	if record.Threat.AbuseScore != nil {
		score = *record.Threat.AbuseScore
	}

	verdict, severity := verdictFor(record)

	indicators := []string{}
	if record.Flags.IsTor != nil && *record.Flags.IsTor {
		indicators = append(indicators, "Tor exit node")
	}
	if record.Flags.IsVpn != nil && *record.Flags.IsVpn {
		indicators = append(indicators, fmt.Sprintf("VPN traffic (%s)", orUnknown(record.Flags.VpnProvider)))
	}
	if record.Flags.IsProxy != nil && *record.Flags.IsProxy {
		indicators = append(indicators, "Proxy traffic")
	}
	if record.Flags.IsHosting != nil && *record.Flags.IsHosting {
		indicators = append(indicators, "Hosting/datacenter origin")
	}

	recommendations := []string{}
	switch verdict {
	case "BLOCK":
		recommendations = append(recommendations, "Block requests from this address", "Flag associated accounts for manual review")
	case "INVESTIGATE":
		recommendations = append(recommendations, "Require additional verification (MFA/CAPTCHA)", "Monitor subsequent activity closely")
	case "MONITOR":
		recommendations = append(recommendations, "Log activity for trend analysis")
	default:
		recommendations = append(recommendations, "No action required")
	}

	return &Analysis{
		Summary:          fmt.Sprintf("Rule-based assessment for %s: risk level %s, abuse score %d.", record.IP, orDash(record.Threat.RiskLevel), score),
		RiskAssessment:   fmt.Sprintf("Derived from %d/%d successful providers with %d%% correlation confidence.", record.Metadata.ProvidersSucceeded, record.Metadata.ProvidersQueried, record.Flags.Confidence),
		Recommendations:  recommendations,
		ThreatIndicators: indicators,
		Confidence:       record.Flags.Confidence,
		Verdict:          verdict,
		SeverityLevel:    severity,
		ExecutiveSummary: fmt.Sprintf("%s traffic, verdict %s.", record.IP, verdict),
		TechnicalDetails: fmt.Sprintf("asn=%s org=%s country=%s riskLevel=%s abuseScore=%d", orDash(record.ASN), orDash(record.Org), orDash(record.Location.Country), orDash(record.Threat.RiskLevel), score),
	}
}

// HealthCheck is always available - there is no remote dependency.
func (e *RuleBasedEnricher) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{Available: true, Model: "rule-based", LatencyMs: 0}
}

func verdictFor(record *correlation.Record) (verdict, severity string) {
	score := 0
	if record.Threat.AbuseScore != nil {
		score = *record.Threat.AbuseScore
	}
	isTor := record.Flags.IsTor != nil && *record.Flags.IsTor

	switch {
	case isTor || score >= 70:
		return "BLOCK", "critical"
	case score >= 50:
		return "BLOCK", "high"
	case record.Threat.RiskLevel == "medium":
		return "INVESTIGATE", "medium"
	case record.Threat.RiskLevel == "low":
		return "MONITOR", "low"
	default:
		return "ALLOW", "safe"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown operator"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
