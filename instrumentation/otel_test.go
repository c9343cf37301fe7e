package instrumentation

import (
	"context"
	"testing"
)

func TestNewBuildsProviderWithStdoutExporters(t *testing.T) {
	provider, err := New(context.Background(), Config{ServiceName: "ipintel-test"})
	if err != nil {
		t.Fatalf("unexpected error building provider with no OTLP endpoint: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a non-nil provider")
	}
}

func TestRecordRequestDoesNotPanic(t *testing.T) {
	provider, err := New(context.Background(), Config{ServiceName: "ipintel-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider.RecordRequest("ipinfo", "success")
	provider.RecordRequest("ipinfo", "error")
}

func TestRecordStateChangeDoesNotPanic(t *testing.T) {
	provider, err := New(context.Background(), Config{ServiceName: "ipintel-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider.RecordStateChange("ipinfo", "CLOSED", "OPEN")
	provider.RecordRejection("ipinfo")
}

func TestStartSpanReturnsUsableSpan(t *testing.T) {
	provider, err := New(context.Background(), Config{ServiceName: "ipintel-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := provider.StartSpan(context.Background(), "test-span")
	span.SetAttribute("key", "value")
	span.RecordError(nil)
	span.End()
}

func TestStateDeltaOrdersClosedHalfOpenOpen(t *testing.T) {
	cases := []struct {
		from, to string
		want     int64
	}{
		{"CLOSED", "OPEN", 2},
		{"OPEN", "CLOSED", -2},
		{"CLOSED", "HALF_OPEN", 1},
		{"HALF_OPEN", "OPEN", 1},
		{"OPEN", "HALF_OPEN", -1},
		{"CLOSED", "CLOSED", 0},
	}
	for _, c := range cases {
		if got := stateDelta(c.from, c.to); got != c.want {
			t.Errorf("stateDelta(%s, %s) = %d, want %d", c.from, c.to, got, c.want)
		}
	}
}
