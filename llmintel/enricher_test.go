package llmintel

import (
	"testing"

	"github.com/itsneelabh/gomind/core"
)

func TestNewFallsBackToRuleBasedWithoutAPIKey(t *testing.T) {
	e := New(core.LLMConfig{Enabled: true}, nil)
	if _, ok := e.(*RuleBasedEnricher); !ok {
		t.Fatalf("expected a *RuleBasedEnricher when no API key is configured, got %T", e)
	}
}

func TestNewFallsBackToRuleBasedWhenDisabled(t *testing.T) {
	e := New(core.LLMConfig{Enabled: false, APIKey: "sk-test"}, nil)
	if _, ok := e.(*RuleBasedEnricher); !ok {
		t.Fatalf("expected a *RuleBasedEnricher when disabled, got %T", e)
	}
}

func TestNewBuildsOpenAIEnricherWhenConfigured(t *testing.T) {
	e := New(core.LLMConfig{Enabled: true, APIKey: "sk-test"}, nil)
	if _, ok := e.(*OpenAIEnricher); !ok {
		t.Fatalf("expected an *OpenAIEnricher when enabled with an API key, got %T", e)
	}
}
