// Package extractor turns a raw chat message into a structured intent and
// slot values. The LLM path gives the richest extraction; a rule-based layer
// runs on every message and both backstops LLM outages and fills slots the
// model missed. Extraction never fails a turn: when everything else comes up
// empty the result is an unclear intent with zero confidence.
package extractor

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fankam/depanneo/plugin/llm"
	"github.com/fankam/depanneo/store"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentNewRequest    Intent = "new_request"
	IntentProvideInfo   Intent = "provide_info"
	IntentConfirm       Intent = "confirm"
	IntentDeny          Intent = "deny"
	IntentCorrection    Intent = "correction"
	IntentStatusQuery   Intent = "status_query"
	IntentModifyRequest Intent = "modify_request"
	IntentCancelRequest Intent = "cancel_request"
	IntentListRequests  Intent = "list_requests"
	IntentGreeting      Intent = "greeting"
	IntentHumanHandoff  Intent = "human_handoff"
	IntentUnclear       Intent = "unclear"
)

// IsValid reports whether the intent is one of the known intents.
func (i Intent) IsValid() bool {
	switch i {
	case IntentNewRequest, IntentProvideInfo, IntentConfirm, IntentDeny,
		IntentCorrection, IntentStatusQuery, IntentModifyRequest,
		IntentCancelRequest, IntentListRequests, IntentGreeting,
		IntentHumanHandoff, IntentUnclear:
		return true
	}
	return false
}

// Result is the outcome of extracting one message.
type Result struct {
	Primary    Intent
	Slots      store.Slots
	Confidence float64
	// Method records which layer produced the primary intent:
	// "rules", "llm" or "merged".
	Method string
	// Backend names the language-model backend that served the call, empty
	// for rule-only results.
	Backend string
	// Err carries the language-model failure when the rule layer had to
	// serve the result on its own.
	Err error
}

// Service performs extraction with an LLM backend and the rule layer.
type Service struct {
	backend llm.Backend
	rules   *RuleExtractor
}

// NewService creates a new extraction service. The backend may be nil, in
// which case only the rule layer runs.
func NewService(backend llm.Backend) *Service {
	return &Service{
		backend: backend,
		rules:   NewRuleExtractor(),
	}
}

// Extract classifies the message and pulls slot values from it. The history
// gives the model conversational context; rules only see the message itself.
// Extract never returns an error: any failure degrades to the rule result,
// and an empty rule result degrades to IntentUnclear with zero confidence.
func (s *Service) Extract(ctx context.Context, message string, history []llm.Message) *Result {
	start := time.Now()
	ruleResult := s.rules.Extract(message)

	if s.backend == nil {
		return ruleResult
	}

	llmResult, err := s.extractWithLLM(ctx, message, history)
	if err != nil {
		slog.Warn("llm extraction failed, using rule result",
			"error", err,
			"method", ruleResult.Method,
			"latency_ms", time.Since(start).Milliseconds())
		ruleResult.Err = err
		return ruleResult
	}

	merged := mergeResults(llmResult, ruleResult)
	slog.Debug("extraction completed",
		"intent", merged.Primary,
		"confidence", merged.Confidence,
		"method", merged.Method,
		"filled_slots", merged.Slots.FilledCount(),
		"latency_ms", time.Since(start).Milliseconds())
	return merged
}

// llmExtraction mirrors the JSON shape the model is asked to produce.
type llmExtraction struct {
	PrimaryIntent string  `json:"primary_intent"`
	Confidence    float64 `json:"confidence"`
	Slots         struct {
		ServiceCategory string `json:"service_category"`
		Location        string `json:"location"`
		Description     string `json:"description"`
		Urgency         string `json:"urgency"`
	} `json:"slots"`
}

func (s *Service) extractWithLLM(ctx context.Context, message string, history []llm.Message) (*Result, error) {
	req := llm.NewRequest(extractionSystemPrompt, message, history)
	req.Schema = &llm.SchemaSpec{Name: "message_extraction", Schema: extractionSchema}

	generated, err := s.backend.Generate(ctx, llm.TaskConversationAnalysis, req)
	if err != nil {
		return nil, err
	}

	raw, err := parseExtraction(generated.Content)
	if err != nil {
		return nil, err
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(raw.PrimaryIntent)))
	if !intent.IsValid() {
		intent = IntentUnclear
	}
	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Result{
		Primary: intent,
		Slots: store.Slots{
			ServiceCategory: normalizeCategory(raw.Slots.ServiceCategory),
			Location:        strings.TrimSpace(raw.Slots.Location),
			Description:     strings.TrimSpace(raw.Slots.Description),
			Urgency:         strings.ToLower(strings.TrimSpace(raw.Slots.Urgency)),
		},
		Confidence: confidence,
		Method:     "llm",
		Backend:    generated.Backend,
	}, nil
}

var markdownFenceRegexp = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// parseExtraction parses the model output, tolerating markdown code fences.
func parseExtraction(content string) (*llmExtraction, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := markdownFenceRegexp.FindStringSubmatch(content); len(matches) > 1 {
			content = matches[1]
		}
	}

	var raw llmExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// mergeResults combines the LLM result with the rule result. The LLM wins on
// intent when it is confident; rules fill any slot the model left empty and
// rescue the intent when the model came back unclear.
func mergeResults(llmResult, ruleResult *Result) *Result {
	merged := *llmResult

	if merged.Primary == IntentUnclear && ruleResult.Primary != IntentUnclear {
		merged.Primary = ruleResult.Primary
		if ruleResult.Confidence > merged.Confidence {
			merged.Confidence = ruleResult.Confidence
		}
		merged.Method = "merged"
	}

	if merged.Slots.ServiceCategory == "" && ruleResult.Slots.ServiceCategory != "" {
		merged.Slots.ServiceCategory = ruleResult.Slots.ServiceCategory
		merged.Method = "merged"
	}
	if merged.Slots.Location == "" && ruleResult.Slots.Location != "" {
		merged.Slots.Location = ruleResult.Slots.Location
		merged.Method = "merged"
	}
	if merged.Slots.Description == "" && ruleResult.Slots.Description != "" {
		merged.Slots.Description = ruleResult.Slots.Description
		merged.Method = "merged"
	}
	if merged.Slots.Urgency == "" && ruleResult.Slots.Urgency != "" {
		merged.Slots.Urgency = ruleResult.Slots.Urgency
		merged.Method = "merged"
	}

	return &merged
}
