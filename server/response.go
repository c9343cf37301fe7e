package server

import (
	"encoding/json"
	"net/http"

	"github.com/itsneelabh/gomind/correlation"
	"github.com/itsneelabh/gomind/lookup"
)

// errorBody is the `{error: {code, message, suggestion?}}` envelope spec.md
// §6/§7 specifies for every 4xx/5xx response.
type errorBody struct {
	Error struct {
		Code       string   `json:"code"`
		Message    string   `json:"message"`
		Suggestion string   `json:"suggestion,omitempty"`
		Details    []string `json:"details,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message, suggestion string) {
	writeErrorWithDetails(w, status, code, message, suggestion, nil)
}

func writeErrorWithDetails(w http.ResponseWriter, status int, code, message, suggestion string, details []string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Suggestion = suggestion
	body.Error.Details = details
	writeJSON(w, status, body)
}

// writeLookupError maps a lookup-pipeline error to its spec.md §6 status
// code and error code.
func writeLookupError(w http.ResponseWriter, err error) {
	if ve, ok := err.(*lookup.ValidationError); ok {
		writeErrorWithDetails(w, http.StatusBadRequest, ve.Code, ve.Message, ve.Suggestion, ve.Details)
		return
	}
	writeError(w, http.StatusServiceUnavailable, "PROVIDERS_UNAVAILABLE", err.Error(), "retry shortly; all upstream providers failed or timed out")
}

// lookupRecordResponse is the CorrelatedIpRecord response shape, with the
// optional resolvedFrom field spec.md §6 calls out for hostname inputs.
type lookupRecordResponse struct {
	correlation.Record
	ResolvedFrom *resolvedFromBody `json:"resolvedFrom,omitempty"`
}

type resolvedFromBody struct {
	Hostname   string `json:"hostname"`
	ResolvedIP string `json:"resolvedIp"`
}

func newLookupResponse(res *lookup.Result) lookupRecordResponse {
	resp := lookupRecordResponse{Record: *res.Record}
	if res.ResolvedFrom != nil {
		resp.ResolvedFrom = &resolvedFromBody{Hostname: res.ResolvedFrom.Hostname, ResolvedIP: res.ResolvedFrom.ResolvedIP}
	}
	return resp
}
