package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// httpAdapter is the common shape nearly every mechanical adapter below
// shares: issue one GET against baseURL+ip (optionally with an API key),
// decode JSON, and hand the raw body off to a provider-specific parse
// function. There is no retry loop here; that lives one layer up in Shell.
type httpAdapter struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
	parse   func(body map[string]interface{}) Partial
}

func newHTTPAdapter(name, baseURL, apiKey string, parse func(map[string]interface{}) Partial) *httpAdapter {
	return &httpAdapter{
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		parse:   parse,
	}
}

func (a *httpAdapter) Name() string { return a.name }

func (a *httpAdapter) PerformLookup(ctx context.Context, ip string) (Partial, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, ip)
	if a.apiKey != "" {
		url += "?key=" + a.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Partial{}, fmt.Errorf("%s: building request: %w", a.name, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Partial{}, fmt.Errorf("%s: request failed: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Partial{}, fmt.Errorf("%s: HTTP %d: %s", a.name, resp.StatusCode, string(body))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Partial{}, fmt.Errorf("%s: decoding response: %w", a.name, err)
	}

	partial := a.parse(decoded)
	partial.Raw = Raw(decoded)
	return partial, nil
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func f64(m map[string]interface{}, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return &n
		}
	}
	return nil
}

func boolp(m map[string]interface{}, key string) *bool {
	if v, ok := m[key].(bool); ok {
		return &v
	}
	return nil
}

func scoreInt(m map[string]interface{}, key string) *int {
	switch v := m[key].(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

// NewIPInfoAdapter adapts ipinfo.io's /json response shape.
func NewIPInfoAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("ipinfo", baseURL, apiKey, func(m map[string]interface{}) Partial {
		return Partial{
			ASN:     str(m, "asn"),
			Org:     str(m, "org"),
			Country: str(m, "country"),
			Region:  str(m, "region"),
			City:    str(m, "city"),
			Timezone: str(m, "timezone"),
		}
	})
}

// NewIPAPIAdapter adapts ip-api.com's flat JSON shape.
func NewIPAPIAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("ipapi", baseURL, apiKey, func(m map[string]interface{}) Partial {
		return Partial{
			Org:       str(m, "org"),
			Country:   str(m, "countryCode"),
			Region:    str(m, "regionName"),
			City:      str(m, "city"),
			Latitude:  f64(m, "lat"),
			Longitude: f64(m, "lon"),
			Timezone:  str(m, "timezone"),
			IsMobile:  boolp(m, "mobile"),
			IsProxy:   boolp(m, "proxy"),
			IsHosting: boolp(m, "hosting"),
		}
	})
}

// NewIPQualityScoreAdapter adapts ipqualityscore.com's fraud-and-risk
// response. This adapter is the one spec.md §4.4 point 3 calls out as
// configured with elevated trust for VPN identification (see trust.go).
func NewIPQualityScoreAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("ipqualityscore", baseURL, apiKey, func(m map[string]interface{}) Partial {
		return Partial{
			Country:     str(m, "country_code"),
			Region:      str(m, "region"),
			City:        str(m, "city"),
			Latitude:    f64(m, "latitude"),
			Longitude:   f64(m, "longitude"),
			Timezone:    str(m, "timezone"),
			IsProxy:     boolp(m, "proxy"),
			IsVpn:       boolp(m, "vpn"),
			IsTor:       boolp(m, "tor"),
			IsMobile:    boolp(m, "mobile"),
			VpnProvider: str(m, "vpn_name"),
			AbuseScore:  scoreInt(m, "fraud_score"),
		}
	})
}

// NewAbuseIPDBAdapter adapts abuseipdb.com's nested {"data": {...}} shape.
func NewAbuseIPDBAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("abuseipdb", baseURL, apiKey, func(m map[string]interface{}) Partial {
		data, _ := m["data"].(map[string]interface{})
		if data == nil {
			data = m
		}
		isTor, _ := data["isTor"].(bool)
		return Partial{
			Country:     str(data, "countryCode"),
			IsTor:       &isTor,
			IsHosting:   boolp(data, "isPublic"),
			AbuseScore:  scoreInt(data, "abuseConfidenceScore"),
		}
	})
}

// NewMaxMindAdapter adapts a MaxMind GeoIP2-web-service-style response.
func NewMaxMindAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("maxmind", baseURL, apiKey, func(m map[string]interface{}) Partial {
		country, _ := m["country"].(map[string]interface{})
		city, _ := m["city"].(map[string]interface{})
		location, _ := m["location"].(map[string]interface{})
		traits, _ := m["traits"].(map[string]interface{})

		var countryCode, cityName, tz string
		var lat, lon *float64
		if country != nil {
			countryCode = str(country, "iso_code")
		}
		if city != nil {
			if names, ok := city["names"].(map[string]interface{}); ok {
				cityName = str(names, "en")
			}
		}
		if location != nil {
			lat = f64(location, "latitude")
			lon = f64(location, "longitude")
			tz = str(location, "time_zone")
		}
		var isHosting *bool
		if traits != nil {
			isHosting = boolp(traits, "is_hosting_provider")
		}
		return Partial{
			Country:   countryCode,
			City:      cityName,
			Latitude:  lat,
			Longitude: lon,
			Timezone:  tz,
			IsHosting: isHosting,
		}
	})
}

// NewIPRegistryAdapter adapts ipregistry.co's {location, security} shape,
// and is one of the providers ExtractVPNFromRaw (vpn.go) knows how to mine
// for a VPN operator name beyond the structured field.
func NewIPRegistryAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("ipregistry", baseURL, apiKey, func(m map[string]interface{}) Partial {
		location, _ := m["location"].(map[string]interface{})
		security, _ := m["security"].(map[string]interface{})
		connection, _ := m["connection"].(map[string]interface{})

		var countryCode, region, city, tz string
		var lat, lon *float64
		if location != nil {
			if c, ok := location["country"].(map[string]interface{}); ok {
				countryCode = str(c, "code")
			}
			if r, ok := location["region"].(map[string]interface{}); ok {
				region = str(r, "name")
			}
			city = str(location, "city")
			tz = str(location, "time_zone")
			lat = f64(location, "latitude")
			lon = f64(location, "longitude")
		}
		var isProxy, isVpn, isTor, isHosting *bool
		if security != nil {
			isProxy = boolp(security, "is_proxy")
			isVpn = boolp(security, "is_vpn")
			isTor = boolp(security, "is_tor")
			isHosting = boolp(security, "is_cloud_provider")
		}
		var asn, org string
		if connection != nil {
			asn = str(connection, "asn")
			org = str(connection, "organization")
		}
		return Partial{
			ASN: asn, Org: org, Country: countryCode, Region: region, City: city,
			Latitude: lat, Longitude: lon, Timezone: tz,
			IsProxy: isProxy, IsVpn: isVpn, IsTor: isTor, IsHosting: isHosting,
		}
	})
}

// NewShodanAdapter adapts shodan.io's host lookup response, used primarily
// for ASN/org/hosting signal and raw tag-based VPN hints.
func NewShodanAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("shodan", baseURL, apiKey, func(m map[string]interface{}) Partial {
		return Partial{
			ASN:       str(m, "asn"),
			Org:       str(m, "org"),
			Country:   str(m, "country_code"),
			City:      str(m, "city"),
			Latitude:  f64(m, "latitude"),
			Longitude: f64(m, "longitude"),
		}
	})
}

// NewVirusTotalAdapter adapts virustotal.com's IP report, used for
// abuse/reputation signal.
func NewVirusTotalAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("virustotal", baseURL, apiKey, func(m map[string]interface{}) Partial {
		data, _ := m["data"].(map[string]interface{})
		attrs, _ := data["attributes"].(map[string]interface{})
		if attrs == nil {
			attrs = m
		}
		reputation := scoreInt(attrs, "reputation")
		var abuseScore *int
		if reputation != nil && *reputation < 0 {
			n := -*reputation
			if n > 100 {
				n = 100
			}
			abuseScore = &n
		}
		return Partial{
			Country:    str(attrs, "country"),
			AbuseScore: abuseScore,
		}
	})
}

// NewSpurAdapter adapts spur.us's context API, a specialist VPN/proxy
// attribution feed configured with high trust by default (trust.go).
func NewSpurAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("spur", baseURL, apiKey, func(m map[string]interface{}) Partial {
		client, _ := m["client"].(map[string]interface{})
		var vpnProvider string
		var isVpn, isProxy *bool
		if client != nil {
			types, _ := client["types"].([]interface{})
			for _, t := range types {
				if ts, ok := t.(string); ok {
					switch ts {
					case "VPN":
						v := true
						isVpn = &v
					case "PROXY":
						v := true
						isProxy = &v
					}
				}
			}
			if concentration, ok := client["concentration"].(map[string]interface{}); ok {
				vpnProvider = str(concentration, "country")
			}
			vpnProvider = str(client, "proxy_name")
		}
		return Partial{IsVpn: isVpn, IsProxy: isProxy, VpnProvider: vpnProvider}
	})
}

// NewProxyCheckAdapter adapts proxycheck.io's keyed-by-IP response shape:
// {"<ip>": {...}, "status": "ok"}.
func NewProxyCheckAdapter(baseURL, apiKey string) Adapter {
	return newHTTPAdapter("proxycheck", baseURL, apiKey, func(m map[string]interface{}) Partial {
		for key, v := range m {
			if key == "status" {
				continue
			}
			entry, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			proxyStr := str(entry, "proxy")
			isProxy := proxyStr == "yes"
			isVpn := str(entry, "type") == "VPN"
			return Partial{
				Country:     str(entry, "isocode"),
				Region:      str(entry, "region"),
				City:        str(entry, "city"),
				IsProxy:     &isProxy,
				IsVpn:       &isVpn,
				VpnProvider: str(entry, "provider"),
			}
		}
		return Partial{}
	})
}
