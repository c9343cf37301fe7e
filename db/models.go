// Package db implements the durable tier (spec.md §3, §6): one row per
// canonical record keyed by normalized IP, plus daily per-provider stats.
// Grounded on the gorm + postgres driver stack carried from the retrieval
// pack's BaSui01-agentflow example, which uses the same ORM for its own
// durable storage layer.
package db

import "time"

// IPRecord mirrors correlation.Record plus a content hash for change
// detection and expiresAt for the spec.md §6 cleanup job. Flags/threat/
// metadata sub-objects are flattened for simple columns and stored as JSON
// for the list/conflict fields, the same "typed core + opaque bag"
// philosophy spec.md §9 applies to provider raw payloads.
type IPRecord struct {
	IP        string `gorm:"primaryKey;column:ip"`
	ASN       string
	Org       string
	Country   string
	Region    string
	City      string
	Latitude  *float64
	Longitude *float64
	Timezone  string
	Accuracy  string

	IsProxy     *bool
	IsVpn       *bool
	IsTor       *bool
	IsHosting   *bool
	IsMobile    *bool
	VpnProvider string
	Confidence  int

	AbuseScore *int
	RiskLevel  string

	ProvidersJSON   string `gorm:"column:providers_json;type:text"`
	ConflictsJSON   string `gorm:"column:conflicts_json;type:text"`
	WarningsJSON    string `gorm:"column:warnings_json;type:text"`
	LLMAnalysisJSON string `gorm:"column:llm_analysis_json;type:text"`

	PartialData        bool
	ProvidersQueried    int
	ProvidersSucceeded  int

	Hash string `gorm:"column:hash"`

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

func (IPRecord) TableName() string { return "ip_records" }

// ProviderDailyStat is spec.md §3's "Provider daily stats" entity, keyed by
// (provider, calendar-day).
type ProviderDailyStat struct {
	Provider     string    `gorm:"primaryKey;column:provider"`
	Date         time.Time `gorm:"primaryKey;column:date"`
	SuccessCount int
	FailureCount int
	TimeoutCount int
	AvgLatencyMs float64
	LastError    string
}

func (ProviderDailyStat) TableName() string { return "provider_daily_stats" }
