package lookup

import (
	"context"
	"testing"

	"github.com/itsneelabh/gomind/llmintel"
	"github.com/itsneelabh/gomind/providers"
)

func collectEvents(t *testing.T, svc *Service, input string, includeLLM bool) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	err := svc.Stream(context.Background(), input, includeLLM, func(evt StreamEvent) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return events
}

func eventTypes(events []StreamEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestStreamInvalidInputEmitsLookupError(t *testing.T) {
	svc, mr := newTestService(t, nil, nil)
	defer mr.Close()

	events := collectEvents(t, svc, "10.0.0.1", false)
	if len(events) != 1 || events[0].Type != "lookup_error" {
		t.Fatalf("expected a single lookup_error event, got %v", eventTypes(events))
	}
}

func TestStreamLiveLookupFullSequence(t *testing.T) {
	provider := &fakeProvider{name: "ipinfo", success: true, asn: "AS1"}
	svc, mr := newTestService(t, []providers.Provider{provider}, nil)
	defer mr.Close()

	events := collectEvents(t, svc, "8.8.8.8", false)
	got := eventTypes(events)
	want := []string{"lookup_start", "provider_complete", "correlation_complete", "lookup_complete"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected event %d to be %s, got %s (full sequence %v)", i, want[i], got[i], got)
		}
	}
	last, ok := events[len(events)-1].Data.(StreamLookupComplete)
	if !ok {
		t.Fatalf("expected StreamLookupComplete payload, got %T", events[len(events)-1].Data)
	}
	if last.Cached {
		t.Fatal("expected cached=false on a live-lookup lookup_complete event")
	}
}

func TestStreamLiveLookupWithLLMEmitsEnrichmentEvents(t *testing.T) {
	provider := &fakeProvider{name: "ipinfo", success: true, asn: "AS1"}
	enricher := &fakeEnricher{analysis: &llmintel.Analysis{Summary: "stub", Verdict: "clean"}}
	svc, mr := newTestService(t, []providers.Provider{provider}, enricher)
	defer mr.Close()

	events := collectEvents(t, svc, "8.8.4.4", true)
	got := eventTypes(events)
	want := []string{"lookup_start", "provider_complete", "correlation_complete", "llm_start", "llm_complete", "lookup_complete"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected event %d to be %s, got %s (full sequence %v)", i, want[i], got[i], got)
		}
	}
}

func TestStreamAllProvidersFailEmitsLookupError(t *testing.T) {
	provider := &fakeProvider{name: "ipinfo", success: false}
	svc, mr := newTestService(t, []providers.Provider{provider}, nil)
	defer mr.Close()

	events := collectEvents(t, svc, "9.9.9.9", false)
	got := eventTypes(events)
	want := []string{"lookup_start", "provider_complete", "lookup_error"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected event %d to be %s, got %s (full sequence %v)", i, want[i], got[i], got)
		}
	}
}

func TestStreamCacheHitSkipsProviderFanOut(t *testing.T) {
	provider := &fakeProvider{name: "ipinfo", success: true, asn: "AS1"}
	svc, mr := newTestService(t, []providers.Provider{provider}, nil)
	defer mr.Close()

	// warm the cache via a plain Lookup first.
	if _, err := svc.Lookup(context.Background(), "1.2.3.4", false, false); err != nil {
		t.Fatalf("unexpected error warming cache: %v", err)
	}

	events := collectEvents(t, svc, "1.2.3.4", false)
	if len(events) != 1 || events[0].Type != "lookup_complete" {
		t.Fatalf("expected a single lookup_complete event for a cache hit, got %v", eventTypes(events))
	}
	payload, ok := events[0].Data.(StreamLookupComplete)
	if !ok {
		t.Fatalf("expected StreamLookupComplete payload, got %T", events[0].Data)
	}
	if !payload.Cached {
		t.Fatal("expected cached=true on a cache-hit lookup_complete event")
	}
}
