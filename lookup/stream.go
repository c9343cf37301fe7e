package lookup

import (
	"context"
	"time"

	"github.com/itsneelabh/gomind/correlation"
	"github.com/itsneelabh/gomind/manager"
)

// StreamEvent is one SSE frame; the server package is responsible for
// wire-encoding it (event: <Type>\ndata: <json(Data)>\n\n) and flushing.
// Event types follow spec.md §4.6 exactly: lookup_start, provider_complete,
// correlation_complete, llm_start, llm_complete, lookup_complete,
// lookup_error.
type StreamEvent struct {
	Type string
	Data interface{}
}

// StreamLookupStart is the lookup_start payload.
type StreamLookupStart struct {
	IP               string `json:"ip"`
	ProvidersQueried int    `json:"total"`
}

// StreamProviderComplete is the provider_complete payload, emitted once per
// provider in settlement order.
type StreamProviderComplete struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// StreamCorrelationComplete is the correlation_complete payload.
type StreamCorrelationComplete struct {
	Record correlation.Record `json:"data"`
}

// StreamLLMStart is the llm_start payload.
type StreamLLMStart struct{}

// StreamLLMComplete is the llm_complete payload.
type StreamLLMComplete struct {
	Record correlation.Record `json:"data"`
}

// StreamLookupComplete is the terminal lookup_complete payload. Cached is
// true only when the record was served from the cache hit path (spec.md
// §4.6: "lookup_complete{data, cached=true} - if cache hit"); DB hits and
// live lookups leave it false.
type StreamLookupComplete struct {
	IP           string        `json:"ip"`
	Record       correlation.Record `json:"data"`
	ResolvedFrom *ResolvedFrom `json:"resolvedFrom,omitempty"`
	Cached       bool          `json:"cached,omitempty"`
}

// StreamLookupError is the terminal lookup_error payload.
type StreamLookupError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// Stream implements spec.md §4.6's event sequence. emit is called
// synchronously for each event, in order; if ctx is cancelled (client
// disconnect) Stream stops emitting and returns ctx.Err() without error
// framing, since the connection is already gone.
func (s *Service) Stream(ctx context.Context, input string, includeLLMAnalysis bool, emit func(StreamEvent)) error {
	ip, resolvedFrom, err := s.normalizeOrResolve(ctx, input)
	if err != nil {
		emit(StreamEvent{Type: "lookup_error", Data: StreamLookupError{Code: "INVALID_INPUT", Message: err.Error()}})
		return nil
	}

	if rec := s.tryCache(ctx, ip); rec != nil {
		rec = s.maybeEnrich(ctx, rec, includeLLMAnalysis)
		emit(StreamEvent{Type: "lookup_complete", Data: StreamLookupComplete{IP: ip, Record: *rec, ResolvedFrom: resolvedFrom, Cached: true}})
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if rec := s.tryDB(ctx, ip); rec != nil {
		_ = s.cache.Set(ctx, ip, rec, s.cacheTTL)
		rec = s.maybeEnrich(ctx, rec, includeLLMAnalysis)
		emit(StreamEvent{Type: "lookup_complete", Data: StreamLookupComplete{IP: ip, Record: *rec, ResolvedFrom: resolvedFrom}})
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	total := s.manager.ProviderCount()
	emit(StreamEvent{Type: "lookup_start", Data: StreamLookupStart{IP: ip, ProvidersQueried: total}})

	results := s.manager.QueryAll(ctx, ip, func(evt manager.ProgressEvent) {
		emit(StreamEvent{Type: "provider_complete", Data: StreamProviderComplete{
			Provider: evt.Provider, Success: evt.Success, Index: evt.Index, Total: evt.Total,
		}})
		go s.recordProviderOutcome(evt.Provider, evt.Result)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	if successful == 0 {
		emit(StreamEvent{Type: "lookup_error", Data: StreamLookupError{Code: "PROVIDERS_UNAVAILABLE", Message: "all providers failed or timed out"}})
		return nil
	}

	record := correlation.Correlate(results, s.trustRank, "live", int(s.cacheTTL.Seconds()))
	record.IP = ip
	emit(StreamEvent{Type: "correlation_complete", Data: StreamCorrelationComplete{Record: record}})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if includeLLMAnalysis && s.enricher != nil {
		emit(StreamEvent{Type: "llm_start", Data: StreamLLMStart{}})
		if analysis := s.enricher.Analyze(ctx, &record); analysis != nil {
			record.Metadata.LLMAnalysis = analysis
		}
		emit(StreamEvent{Type: "llm_complete", Data: StreamLLMComplete{Record: record}})
	}

	s.persist(ip, &record)

	emit(StreamEvent{Type: "lookup_complete", Data: StreamLookupComplete{IP: ip, Record: record, ResolvedFrom: resolvedFrom}})
	return nil
}

// StreamIdleTimeout is a 30s bound for a single SSE connection. No code in
// this repository reads it; a long stream is ended by the HTTP server's own
// WriteTimeout (35s in server.DefaultConfig).
const StreamIdleTimeout = 30 * time.Second
