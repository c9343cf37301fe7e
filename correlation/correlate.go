package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/itsneelabh/gomind/providers"
)

// stringFields enumerates the "single-valued string fields" spec.md §4.4
// names for majority/trust-vote fusion.
var stringFields = []string{"asn", "org", "country", "region", "city", "timezone"}

// Correlate fuses results into one Record. trustRank is the process-wide
// table from providers.BuildTrustTable; source and ttlSeconds set
// Metadata.Source/TTLSeconds/ExpiresAt directly (the caller picks these
// based on where the record came from: cache/db/live).
func Correlate(results []providers.Result, trustRank map[string]int, source string, ttlSeconds int) Record {
	now := time.Now()

	record := Record{
		Metadata: Metadata{
			Source:           source,
			CreatedAt:        now,
			UpdatedAt:        now,
			TTLSeconds:       ttlSeconds,
			ExpiresAt:        now.Add(time.Duration(ttlSeconds) * time.Second),
			ProvidersQueried: len(results),
		},
	}

	succeeded := 0
	for _, r := range results {
		record.Metadata.Providers = append(record.Metadata.Providers, r.Provider)
		if r.Success {
			succeeded++
		} else {
			record.Metadata.Warnings = append(record.Metadata.Warnings,
				fmt.Sprintf("Provider '%s' failed: %s", r.Provider, r.Error))
		}
	}
	record.Metadata.ProvidersSucceeded = succeeded
	record.Metadata.PartialData = len(record.Metadata.Warnings) > 0

	fused := map[string]string{}
	for _, field := range stringFields {
		value, conflict := fuseStringField(field, results, trustRank)
		fused[field] = value
		if conflict != nil {
			record.Metadata.Conflicts = append(record.Metadata.Conflicts, *conflict)
		}
	}

	record.ASN = fused["asn"]
	record.Org = fused["org"]
	record.Location.Country = fused["country"]
	record.Location.Region = fused["region"]
	record.Location.City = fused["city"]
	record.Location.Timezone = fused["timezone"]
	record.Location.Latitude, record.Location.Longitude = fuseCoordinates(results)
	record.Location.Accuracy = finestAccuracy(record.Location.City, record.Location.Region, record.Location.Country)

	record.Flags.IsProxy = fuseBoolOR(results, func(r providers.Result) *bool { return r.IsProxy })
	record.Flags.IsVpn = fuseBoolOR(results, func(r providers.Result) *bool { return r.IsVpn })
	record.Flags.IsTor = fuseBoolOR(results, func(r providers.Result) *bool { return r.IsTor })
	record.Flags.IsHosting = fuseBoolOR(results, func(r providers.Result) *bool { return r.IsHosting })
	record.Flags.IsMobile = fuseBoolOR(results, func(r providers.Result) *bool { return r.IsMobile })
	record.Flags.Confidence = int(math.Round(100 * math.Min(1, float64(succeeded)/10)))

	vpnProvider, vpnConflict := resolveVPNProvider(results, trustRank, record.Org, record.ASN, record.Flags.IsVpn)
	record.Flags.VpnProvider = vpnProvider
	if vpnConflict != nil {
		record.Metadata.Conflicts = append(record.Metadata.Conflicts, *vpnConflict)
	}

	record.Threat.AbuseScore = fuseAbuseScoreMax(results)
	record.Threat.RiskLevel = deriveRiskLevel(record.Flags, record.Threat.AbuseScore)

	return record
}

// fuseStringField implements spec.md §4.4's single-valued string field
// rule: absent if no contributor, the value if all agree, and a
// count+trust majority vote with a ConflictReport otherwise.
func fuseStringField(field string, results []providers.Result, trustRank map[string]int) (string, *ConflictReport) {
	type group struct {
		value     string
		providers []string
		trustSum  float64
	}
	groups := map[string]*group{}
	var order []string

	for _, r := range results {
		if !r.Success {
			continue
		}
		v := fieldValue(r, field)
		if v == "" {
			continue
		}
		g, ok := groups[v]
		if !ok {
			g = &group{value: v}
			groups[v] = g
			order = append(order, v)
		}
		g.providers = append(g.providers, r.Provider)
		g.trustSum += float64(trustRank[r.Provider])
	}

	if len(groups) == 0 {
		return "", nil
	}
	if len(groups) == 1 {
		return order[0], nil
	}

	// Deterministic ordering: sort by value name so equal-count/equal-trust
	// ties always resolve to the same "first-encountered" candidate
	// regardless of input order, per spec.md §9's open question on ties.
	sort.Strings(order)

	// The winning group is picked by (count, avg trust): highest count wins,
	// ties broken by higher trust. The reason reported is independent of
	// that tiebreak - it asks only whether the top count belongs to a
	// single group (spec.md §4.4: "majority vote" if unique max count,
	// else "highest trust", even when trust is what actually picked the
	// winner among equally-sized groups).
	maxCount := 0
	for _, v := range order {
		if n := len(groups[v].providers); n > maxCount {
			maxCount = n
		}
	}
	groupsAtMax := 0
	for _, v := range order {
		if len(groups[v].providers) == maxCount {
			groupsAtMax++
		}
	}

	best := groups[order[0]]
	bestScore := float64(len(best.providers))
	bestTrust := best.trustSum / float64(len(best.providers))

	for _, v := range order[1:] {
		g := groups[v]
		count := float64(len(g.providers))
		avgTrust := g.trustSum / float64(len(g.providers))

		if count > bestScore || (count == bestScore && avgTrust > bestTrust) {
			best = g
			bestScore = count
			bestTrust = avgTrust
		}
	}

	reason := "highest trust"
	if groupsAtMax == 1 {
		reason = "majority vote"
	}

	report := &ConflictReport{Field: field, Resolved: best.value, Reason: reason}
	for _, v := range order {
		g := groups[v]
		report.Values = append(report.Values, ConflictValue{
			Value:      g.value,
			Providers:  g.providers,
			TrustScore: g.trustSum / float64(len(g.providers)),
			Count:      len(g.providers),
		})
	}
	return best.value, report
}

func fieldValue(r providers.Result, field string) string {
	switch field {
	case "asn":
		return r.ASN
	case "org":
		return r.Org
	case "country":
		return r.Country
	case "region":
		return r.Region
	case "city":
		return r.City
	case "timezone":
		return r.Timezone
	}
	return ""
}

// fuseCoordinates averages all contributing (lat, lon) pairs; no conflict
// report is produced for coordinates per spec.md §4.4.
func fuseCoordinates(results []providers.Result) (*float64, *float64) {
	var sumLat, sumLon float64
	var n int
	for _, r := range results {
		if !r.Success || r.Latitude == nil || r.Longitude == nil {
			continue
		}
		sumLat += *r.Latitude
		sumLon += *r.Longitude
		n++
	}
	if n == 0 {
		return nil, nil
	}
	lat := sumLat / float64(n)
	lon := sumLon / float64(n)
	return &lat, &lon
}

// fuseBoolOR implements spec.md §4.4's "any true wins; otherwise false if
// any contributor; absent if none" rule.
func fuseBoolOR(results []providers.Result, get func(providers.Result) *bool) *bool {
	var seen bool
	var anyTrue bool
	for _, r := range results {
		if !r.Success {
			continue
		}
		v := get(r)
		if v == nil {
			continue
		}
		seen = true
		if *v {
			anyTrue = true
		}
	}
	if !seen {
		return nil
	}
	return &anyTrue
}

// fuseAbuseScoreMax is spec.md §4.4's "maximum across contributors".
func fuseAbuseScoreMax(results []providers.Result) *int {
	var max *int
	for _, r := range results {
		if !r.Success || r.AbuseScore == nil {
			continue
		}
		if max == nil || *r.AbuseScore > *max {
			v := *r.AbuseScore
			max = &v
		}
	}
	return max
}

// resolveVPNProvider implements spec.md §4.4's three-step vpnProvider
// rule: structured fields + raw extractors, then the static ASN/org table
// fallback, then highest-trust tiebreak among distinct candidates.
func resolveVPNProvider(results []providers.Result, trustRank map[string]int, org, asn string, isVpn *bool) (string, *ConflictReport) {
	type candidate struct {
		value string
		trust int
	}
	seen := map[string]*candidate{}
	var order []string
	var providersFor = map[string][]string{}

	for _, r := range results {
		if !r.Success {
			continue
		}
		v := r.VpnProvider
		if v == "" {
			if extracted, ok := providers.ExtractVPNFromRaw(r.Provider, r.Raw); ok {
				v = extracted
			}
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = &candidate{value: v, trust: trustRank[r.Provider]}
			order = append(order, v)
		} else if trustRank[r.Provider] > seen[v].trust {
			seen[v].trust = trustRank[r.Provider]
		}
		providersFor[v] = append(providersFor[v], r.Provider)
	}

	if len(order) == 0 {
		if isVpn != nil && *isVpn {
			if name, ok := providers.ResolveVPNByOrgOrASN(org, asn); ok {
				return name, nil
			}
		}
		return "", nil
	}
	if len(order) == 1 {
		return order[0], nil
	}

	sort.Strings(order)
	best := order[0]
	for _, v := range order[1:] {
		if seen[v].trust > seen[best].trust {
			best = v
		}
	}

	report := &ConflictReport{Field: "vpnProvider", Resolved: best, Reason: "highest trust"}
	for _, v := range order {
		report.Values = append(report.Values, ConflictValue{
			Value:      v,
			Providers:  providersFor[v],
			TrustScore: float64(seen[v].trust),
			Count:      len(providersFor[v]),
		})
	}
	return best, report
}

// deriveRiskLevel implements spec.md §4.4's threat.riskLevel cascade.
func deriveRiskLevel(flags Flags, abuseScore *int) string {
	score := 0
	if abuseScore != nil {
		score = *abuseScore
	}

	if (flags.IsTor != nil && *flags.IsTor) || score >= 70 {
		return "high"
	}
	if (flags.IsProxy != nil && *flags.IsProxy) || (flags.IsVpn != nil && *flags.IsVpn) || score >= 30 {
		return "medium"
	}
	if abuseScore != nil ||
		flags.IsProxy != nil || flags.IsVpn != nil || flags.IsTor != nil ||
		flags.IsHosting != nil || flags.IsMobile != nil {
		return "low"
	}
	return ""
}

// finestAccuracy implements spec.md §4.4's "finest field present" rule:
// city > region > country > none.
func finestAccuracy(city, region, country string) string {
	if city != "" {
		return "city"
	}
	if region != "" {
		return "region"
	}
	if country != "" {
		return "country"
	}
	return ""
}
