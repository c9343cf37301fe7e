// Package llmintel implements the LLM enrichment boundary of spec.md §4.7:
// analyze(record) -> LLMAnalysis | null, never throwing, always bounded by
// a timeout, with a swappable, test-friendly fallback implementation
// sharing the same call/health shape as the real provider. Built around
// github.com/sashabaranov/go-openai for request construction and
// structured responses.
package llmintel

import (
	"context"

	"github.com/itsneelabh/gomind/correlation"
)

// Analysis is spec.md §4.7's LLMAnalysis value record.
type Analysis struct {
	Summary          string   `json:"summary"`
	RiskAssessment   string   `json:"riskAssessment"`
	Recommendations  []string `json:"recommendations,omitempty"`
	ThreatIndicators []string `json:"threatIndicators,omitempty"`
	Confidence       int      `json:"confidence"` // [0,100]
	Verdict          string   `json:"verdict"`    // BLOCK, INVESTIGATE, MONITOR, ALLOW
	SeverityLevel    string   `json:"severityLevel"` // critical, high, medium, low, safe
	ExecutiveSummary string   `json:"executiveSummary"`
	TechnicalDetails string   `json:"technicalDetails"`
}

// HealthStatus is the {available, model, latencyMs} health-check contract
// spec.md §4.7 requires.
type HealthStatus struct {
	Available bool   `json:"available"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latencyMs"`
}

// Enricher is the boundary contract: never returns an error to the lookup
// service; failures manifest as a nil *Analysis (and are logged by the
// implementation itself).
type Enricher interface {
	Analyze(ctx context.Context, record *correlation.Record) *Analysis
	HealthCheck(ctx context.Context) HealthStatus
}
