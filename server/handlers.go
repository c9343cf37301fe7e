package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/itsneelabh/gomind/lookup"
)

type lookupRequest struct {
	IP                 string `json:"ip"`
	ForceRefresh       bool   `json:"forceRefresh"`
	IncludeLLMAnalysis *bool  `json:"includeLLMAnalysis"`
}

func (req lookupRequest) includeLLM(defaultValue bool) bool {
	if req.IncludeLLMAnalysis == nil {
		return defaultValue
	}
	return *req.IncludeLLMAnalysis
}

// handleLookupPost implements POST /api/v1/lookup.
func (s *Server) handleLookupPost(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "request body is not valid JSON", "send a JSON object with an \"ip\" field")
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "\"ip\" is required", "")
		return
	}
	s.doLookup(w, r, req.IP, req.ForceRefresh, req.includeLLM(true))
}

// handleLookupGet implements GET /api/v1/lookup/:ip.
func (s *Server) handleLookupGet(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	forceRefresh, _ := strconv.ParseBool(r.URL.Query().Get("forceRefresh"))
	includeLLM := true
	if v := r.URL.Query().Get("includeLLMAnalysis"); v != "" {
		includeLLM, _ = strconv.ParseBool(v)
	}
	s.doLookup(w, r, ip, forceRefresh, includeLLM)
}

func (s *Server) doLookup(w http.ResponseWriter, r *http.Request, ip string, forceRefresh, includeLLM bool) {
	res, err := s.lookupSvc.Lookup(r.Context(), ip, forceRefresh, includeLLM)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLookupResponse(res))
}

type bulkRequest struct {
	IPs                []string `json:"ips"`
	ForceRefresh       bool     `json:"forceRefresh"`
	IncludeLLMAnalysis *bool    `json:"includeLLMAnalysis"`
}

func (req bulkRequest) includeLLM() bool {
	return req.IncludeLLMAnalysis != nil && *req.IncludeLLMAnalysis
}

// handleBulk implements POST /api/v1/lookup/bulk.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "request body is not valid JSON", "")
		return
	}
	if len(req.IPs) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_IPS", "\"ips\" must contain at least one address", "")
		return
	}
	if len(req.IPs) > lookup.MaxBulkIPs {
		writeError(w, http.StatusBadRequest, "TOO_MANY_IPS", "too many IPs in one bulk request", "split the request into smaller batches")
		return
	}
	if !s.checkRateLimit(w, r, len(req.IPs)) {
		return
	}

	result, err := s.lookupSvc.Bulk(r.Context(), req.IPs, req.ForceRefresh, req.includeLLM())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cidrRequest struct {
	CIDR               string `json:"cidr"`
	ForceRefresh       bool   `json:"forceRefresh"`
	IncludeLLMAnalysis *bool  `json:"includeLLMAnalysis"`
}

func (req cidrRequest) includeLLM() bool {
	return req.IncludeLLMAnalysis != nil && *req.IncludeLLMAnalysis
}

// handleCIDR implements POST /api/v1/lookup/cidr.
func (s *Server) handleCIDR(w http.ResponseWriter, r *http.Request) {
	var req cidrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "request body is not valid JSON", "")
		return
	}
	if req.CIDR == "" {
		writeError(w, http.StatusBadRequest, "INVALID_CIDR", "\"cidr\" is required", "")
		return
	}

	hostCount, err := lookup.CountCIDRHosts(req.CIDR)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if !s.checkRateLimit(w, r, hostCount) {
		return
	}

	result, err := s.lookupSvc.CIDR(r.Context(), req.CIDR, req.ForceRefresh, req.includeLLM())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// checkRateLimit enforces the per-requester bulk/CIDR budget (spec.md §4.5),
// writing a 429 response and returning false on rejection.
func (s *Server) checkRateLimit(w http.ResponseWriter, r *http.Request, n int) bool {
	if s.rateLimiter == nil {
		return true
	}
	requester := clientIP(r)
	if s.rateLimiter.AllowN(requester, n) {
		return true
	}
	retryAfter := s.rateLimiter.RetryAfter(requester)
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many IPs requested from this client recently", "retry after the indicated delay")
	return false
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// handleProviders implements GET /api/v1/providers.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	type providerStatus struct {
		Name      string `json:"name"`
		Enabled   bool   `json:"enabled"`
		TrustRank int    `json:"trustRank"`
		Breaker   struct {
			State        string `json:"state"`
			FailureCount int    `json:"failureCount"`
			SuccessCount int    `json:"successCount"`
		} `json:"breaker"`
	}

	statuses := make([]providerStatus, 0, len(s.fleet.Shells))
	for name, shell := range s.fleet.Shells {
		snap := shell.Breaker().Snapshot()
		ps := providerStatus{Name: name, Enabled: shell.Enabled(), TrustRank: s.fleet.TrustRank[name]}
		ps.Breaker.State = snap.State
		ps.Breaker.FailureCount = snap.FailureCount
		ps.Breaker.SuccessCount = snap.SuccessCount
		statuses = append(statuses, ps)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": statuses})
}
