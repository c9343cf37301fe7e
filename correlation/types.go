// Package correlation implements spec.md §4.4's trust-weighted
// majority-vote fusion of provider results into one canonical record.
package correlation

import "time"

// Location is the fused geo sub-record. Accuracy is the finest field
// present (city > region > country > none).
type Location struct {
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  string   `json:"timezone"`
	Accuracy  string   `json:"accuracy"` // "city", "region", "country", or "" (none)
}

// Flags is the fused boolean/VPN sub-record.
type Flags struct {
	IsProxy     *bool  `json:"isProxy,omitempty"`
	IsVpn       *bool  `json:"isVpn,omitempty"`
	IsTor       *bool  `json:"isTor,omitempty"`
	IsHosting   *bool  `json:"isHosting,omitempty"`
	IsMobile    *bool  `json:"isMobile,omitempty"`
	VpnProvider string `json:"vpnProvider,omitempty"`
	Confidence  int    `json:"confidence"` // round(100 * min(1, succeeded/10))
}

// Threat is the fused abuse/risk sub-record.
type Threat struct {
	AbuseScore *int   `json:"abuseScore,omitempty"`
	RiskLevel  string `json:"riskLevel"` // "low", "medium", "high", or "" (none)
}

// Metadata carries provenance and bookkeeping fields, spec.md §3.
type Metadata struct {
	Providers          []string         `json:"providers"`
	Conflicts          []ConflictReport `json:"conflicts,omitempty"`
	Source             string           `json:"source"` // "cache", "db", "live", "stale"
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	ExpiresAt          time.Time        `json:"expiresAt"`
	TTLSeconds         int              `json:"ttlSeconds"`
	Warnings           []string         `json:"warnings,omitempty"`
	PartialData        bool             `json:"partialData"`
	ProvidersQueried   int              `json:"providersQueried"`
	ProvidersSucceeded int              `json:"providersSucceeded"`
	LLMAnalysis        interface{}      `json:"llmAnalysis,omitempty"` // *llmintel.Analysis, set by the lookup service
}

// Record is spec.md §3's CorrelatedIpRecord, the canonical fused result.
type Record struct {
	IP       string   `json:"ip"`
	ASN      string   `json:"asn"`
	Org      string   `json:"org"`
	Location Location `json:"location"`
	Flags    Flags    `json:"flags"`
	Threat   Threat   `json:"threat"`
	Metadata Metadata `json:"metadata"`
}

// ConflictReport is spec.md §3's ConflictReport.
type ConflictReport struct {
	Field    string          `json:"field"`
	Values   []ConflictValue `json:"values"`
	Resolved string          `json:"resolved"`
	Reason   string          `json:"reason"` // "majority vote" or "highest trust"
}

// ConflictValue is one candidate in a ConflictReport.
type ConflictValue struct {
	Value      string   `json:"value"`
	Providers  []string `json:"providers"`
	TrustScore float64  `json:"trustScore"`
	Count      int      `json:"count"`
}
