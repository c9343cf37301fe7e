package llmintel

import "github.com/itsneelabh/gomind/core"

// New selects the OpenAI-backed enricher when an API key is configured and
// falls back to the rule-based implementation otherwise - a factory that
// picks whichever provider is actually usable, behind a single boundary
// interface.
func New(cfg core.LLMConfig, logger core.Logger) Enricher {
	if !cfg.Enabled || cfg.APIKey == "" {
		return NewRuleBasedEnricher()
	}
	return NewOpenAIEnricher(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.TimeoutMs, logger)
}
