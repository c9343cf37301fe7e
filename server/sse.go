package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/itsneelabh/gomind/lookup"
)

// handleStream implements GET /api/v1/lookup/stream, spec.md §4.6's
// server-sent-events variant. The connection's request context is
// cancelled automatically on client disconnect, which Service.Stream
// checks between stages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "\"ip\" query parameter is required", "")
		return
	}
	includeLLM := false
	if v := r.URL.Query().Get("includeLLMAnalysis"); v != "" {
		includeLLM, _ = strconv.ParseBool(v)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported by this connection", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.lookupSvc.Stream(r.Context(), ip, includeLLM, func(evt lookup.StreamEvent) {
		writeSSE(w, evt)
		flusher.Flush()
	})
	if err != nil {
		// Client disconnected mid-stream (ctx.Err()); nothing left to write.
		s.logger.Debug("stream ended early", map[string]interface{}{"ip": ip, "error": err.Error()})
	}
}

func writeSSE(w http.ResponseWriter, evt lookup.StreamEvent) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", evt.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
