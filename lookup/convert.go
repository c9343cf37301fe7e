package lookup

import (
	"encoding/json"

	"github.com/itsneelabh/gomind/correlation"
	"github.com/itsneelabh/gomind/db"
)

// toDBRecord flattens a correlation.Record into the db.IPRecord row shape.
func toDBRecord(r *correlation.Record) *db.IPRecord {
	providersJSON, _ := json.Marshal(r.Metadata.Providers)
	conflictsJSON, _ := json.Marshal(r.Metadata.Conflicts)
	warningsJSON, _ := json.Marshal(r.Metadata.Warnings)
	llmJSON, _ := json.Marshal(r.Metadata.LLMAnalysis)

	return &db.IPRecord{
		IP:                 r.IP,
		ASN:                r.ASN,
		Org:                r.Org,
		Country:            r.Location.Country,
		Region:             r.Location.Region,
		City:               r.Location.City,
		Latitude:           r.Location.Latitude,
		Longitude:          r.Location.Longitude,
		Timezone:           r.Location.Timezone,
		Accuracy:           r.Location.Accuracy,
		IsProxy:            r.Flags.IsProxy,
		IsVpn:              r.Flags.IsVpn,
		IsTor:              r.Flags.IsTor,
		IsHosting:          r.Flags.IsHosting,
		IsMobile:           r.Flags.IsMobile,
		VpnProvider:        r.Flags.VpnProvider,
		Confidence:         r.Flags.Confidence,
		AbuseScore:         r.Threat.AbuseScore,
		RiskLevel:          r.Threat.RiskLevel,
		ProvidersJSON:      string(providersJSON),
		ConflictsJSON:      string(conflictsJSON),
		WarningsJSON:       string(warningsJSON),
		LLMAnalysisJSON:    string(llmJSON),
		PartialData:        r.Metadata.PartialData,
		ProvidersQueried:   r.Metadata.ProvidersQueried,
		ProvidersSucceeded: r.Metadata.ProvidersSucceeded,
		CreatedAt:          r.Metadata.CreatedAt,
		UpdatedAt:          r.Metadata.UpdatedAt,
		ExpiresAt:          r.Metadata.ExpiresAt,
	}
}

// fromDBRecord reconstructs a correlation.Record from a stored row, tagging
// its source ("db") per spec.md §4.5 point 3.
func fromDBRecord(row *db.IPRecord, ttlSeconds int) *correlation.Record {
	var providers []string
	_ = json.Unmarshal([]byte(row.ProvidersJSON), &providers)
	var conflicts []correlation.ConflictReport
	_ = json.Unmarshal([]byte(row.ConflictsJSON), &conflicts)
	var warnings []string
	_ = json.Unmarshal([]byte(row.WarningsJSON), &warnings)
	var llmAnalysis interface{}
	if row.LLMAnalysisJSON != "" && row.LLMAnalysisJSON != "null" {
		_ = json.Unmarshal([]byte(row.LLMAnalysisJSON), &llmAnalysis)
	}

	return &correlation.Record{
		IP:  row.IP,
		ASN: row.ASN,
		Org: row.Org,
		Location: correlation.Location{
			Country:   row.Country,
			Region:    row.Region,
			City:      row.City,
			Latitude:  row.Latitude,
			Longitude: row.Longitude,
			Timezone:  row.Timezone,
			Accuracy:  row.Accuracy,
		},
		Flags: correlation.Flags{
			IsProxy:     row.IsProxy,
			IsVpn:       row.IsVpn,
			IsTor:       row.IsTor,
			IsHosting:   row.IsHosting,
			IsMobile:    row.IsMobile,
			VpnProvider: row.VpnProvider,
			Confidence:  row.Confidence,
		},
		Threat: correlation.Threat{
			AbuseScore: row.AbuseScore,
			RiskLevel:  row.RiskLevel,
		},
		Metadata: correlation.Metadata{
			Providers:          providers,
			Conflicts:          conflicts,
			Source:             "db",
			CreatedAt:          row.CreatedAt,
			UpdatedAt:          row.UpdatedAt,
			ExpiresAt:          row.ExpiresAt,
			TTLSeconds:         ttlSeconds,
			Warnings:           warnings,
			PartialData:        row.PartialData,
			ProvidersQueried:   row.ProvidersQueried,
			ProvidersSucceeded: row.ProvidersSucceeded,
			LLMAnalysis:        llmAnalysis,
		},
	}
}
