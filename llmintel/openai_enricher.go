package llmintel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/correlation"
)

// OpenAIEnricher implements Enricher against an OpenAI-compatible chat
// completions endpoint, built on the go-openai SDK.
type OpenAIEnricher struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	logger    core.Logger
}

// NewOpenAIEnricher builds an enricher; apiKey empty means misconfigured,
// callers should fall back to NewRuleBasedEnricher instead.
func NewOpenAIEnricher(apiKey, baseURL, model string, timeoutMs int, logger core.Logger) *OpenAIEnricher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEnricher{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
		logger:  logger,
	}
}

const systemPrompt = `You are a threat-intelligence analyst. Given a JSON IP
intelligence record, respond with a JSON object with exactly these fields:
summary, riskAssessment, recommendations (array of strings), threatIndicators
(array of strings), confidence (0-100 integer), verdict (one of BLOCK,
INVESTIGATE, MONITOR, ALLOW), severityLevel (one of critical, high, medium,
low, safe), executiveSummary, technicalDetails. Respond with JSON only.`

// Analyze implements Enricher. Per spec.md §4.7 it must complete within
// timeout and never propagate an error - any failure (network, parse,
// cancellation) returns nil, logged at Warn.
func (e *OpenAIEnricher) Analyze(ctx context.Context, record *correlation.Record) *Analysis {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		e.logger.Warn("llm enrichment: encoding record failed", map[string]interface{}{"ip": record.IP, "error": err.Error()})
		return nil
	}

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		e.logger.Warn("llm enrichment request failed", map[string]interface{}{"ip": record.IP, "error": err.Error()})
		return nil
	}
	if len(resp.Choices) == 0 {
		e.logger.Warn("llm enrichment: empty response", map[string]interface{}{"ip": record.IP})
		return nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		Summary          string   `json:"summary"`
		RiskAssessment   string   `json:"riskAssessment"`
		Recommendations  []string `json:"recommendations"`
		ThreatIndicators []string `json:"threatIndicators"`
		Confidence       int      `json:"confidence"`
		Verdict          string   `json:"verdict"`
		SeverityLevel    string   `json:"severityLevel"`
		ExecutiveSummary string   `json:"executiveSummary"`
		TechnicalDetails string   `json:"technicalDetails"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		e.logger.Warn("llm enrichment: parsing model output failed", map[string]interface{}{"ip": record.IP, "error": err.Error()})
		return nil
	}

	return &Analysis{
		Summary:          parsed.Summary,
		RiskAssessment:   parsed.RiskAssessment,
		Recommendations:  parsed.Recommendations,
		ThreatIndicators: parsed.ThreatIndicators,
		Confidence:       parsed.Confidence,
		Verdict:          parsed.Verdict,
		SeverityLevel:    parsed.SeverityLevel,
		ExecutiveSummary: parsed.ExecutiveSummary,
		TechnicalDetails: parsed.TechnicalDetails,
	}
}

// HealthCheck issues a minimal completion to measure availability/latency.
func (e *OpenAIEnricher) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:     e.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Available: false, Model: e.model, LatencyMs: latency}
	}
	return HealthStatus{Available: true, Model: e.model, LatencyMs: latency}
}
