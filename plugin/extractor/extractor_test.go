package extractor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fankam/depanneo/plugin/llm"
	"github.com/fankam/depanneo/store"
)

func TestRuleExtractorFullScenario(t *testing.T) {
	// The canonical emergency message must be fully extractable without any
	// LLM in the loop.
	result := NewRuleExtractor().Extract("fuite d'eau à la cuisine, urgent, je suis à Bonamoussadi")

	assert.Equal(t, IntentNewRequest, result.Primary)
	assert.Equal(t, CategoryPlumbing, result.Slots.ServiceCategory)
	assert.Equal(t, "Bonamoussadi", result.Slots.Location)
	assert.Equal(t, "urgent", result.Slots.Urgency)
	assert.NotEmpty(t, result.Slots.Description)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
}

func TestRuleExtractorIntents(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"bonjour", IntentGreeting},
		{"oui c'est bon", IntentConfirm},
		{"non", IntentDeny},
		{"non, plutôt à Akwa", IntentCorrection},
		{"je veux annuler ma demande", IntentCancelRequest},
		{"où en est ma demande ?", IntentStatusQuery},
		{"montre-moi toutes mes demandes", IntentListRequests},
		{"je veux parler à quelqu'un", IntentHumanHandoff},
		{"mon frigo ne marche plus", IntentNewRequest},
		{"je cherche un électricien", IntentNewRequest},
		{"je suis à Makepe", IntentProvideInfo},
		{"dfkjghdfkjg", IntentUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			result := NewRuleExtractor().Extract(tt.message)
			assert.Equal(t, tt.want, result.Primary)
		})
	}
}

func TestRuleExtractorCategories(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"le robinet de la douche fuit", CategoryPlumbing},
		{"coupure de courant chez moi", CategoryElectrical},
		{"ma machine à laver est en panne", CategoryApplianceRepair},
		{"porte claquée, je suis dehors", CategoryLocksmith},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			result := NewRuleExtractor().Extract(tt.message)
			assert.Equal(t, tt.want, result.Slots.ServiceCategory)
		})
	}
}

func TestRuleExtractorUnclearHasZeroConfidence(t *testing.T) {
	result := NewRuleExtractor().Extract("hmm")
	assert.Equal(t, IntentUnclear, result.Primary)
	assert.Zero(t, result.Confidence)
}

type scriptedBackend struct {
	content string
	err     error
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Generate(ctx context.Context, task llm.TaskType, req *llm.Request) (*llm.Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &llm.Result{Content: b.content}, nil
}

func TestExtractUsesLLMResult(t *testing.T) {
	backend := &scriptedBackend{
		content: `{"primary_intent":"new_request","confidence":0.92,"slots":{"service_category":"plumbing","location":"Deido","description":"fuite sous l'évier","urgency":""}}`,
	}
	s := NewService(backend)

	result := s.Extract(context.Background(), "il y a de l'eau partout sous l'évier, Deido", nil)
	require.NotNil(t, result)
	assert.Equal(t, IntentNewRequest, result.Primary)
	assert.Equal(t, "Deido", result.Slots.Location)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
}

func TestExtractFallsBackToRulesOnLLMError(t *testing.T) {
	backend := &scriptedBackend{err: fmt.Errorf("backend down")}
	s := NewService(backend)

	result := s.Extract(context.Background(), "fuite d'eau à Bonamoussadi, urgent", nil)
	require.NotNil(t, result)
	assert.Equal(t, "rules", result.Method)
	assert.Equal(t, IntentNewRequest, result.Primary)
	assert.Equal(t, CategoryPlumbing, result.Slots.ServiceCategory)
}

func TestExtractFallsBackToRulesOnUnparsableOutput(t *testing.T) {
	backend := &scriptedBackend{content: "je ne peux pas répondre en JSON"}
	s := NewService(backend)

	result := s.Extract(context.Background(), "coupure de courant à Akwa", nil)
	require.NotNil(t, result)
	assert.Equal(t, "rules", result.Method)
	assert.Equal(t, CategoryElectrical, result.Slots.ServiceCategory)
}

func TestExtractMergesRuleSlotsIntoLLMResult(t *testing.T) {
	// The model classified the intent but missed the zone; the rule layer
	// fills it in.
	backend := &scriptedBackend{
		content: `{"primary_intent":"new_request","confidence":0.8,"slots":{"service_category":"plumbing","location":"","description":"fuite","urgency":""}}`,
	}
	s := NewService(backend)

	result := s.Extract(context.Background(), "fuite à Bonapriso", nil)
	assert.Equal(t, "merged", result.Method)
	assert.Equal(t, "Bonapriso", result.Slots.Location)
}

func TestExtractToleratesMarkdownFences(t *testing.T) {
	backend := &scriptedBackend{
		content: "```json\n{\"primary_intent\":\"confirm\",\"confidence\":0.95,\"slots\":{\"service_category\":\"\",\"location\":\"\",\"description\":\"\",\"urgency\":\"\"}}\n```",
	}
	s := NewService(backend)

	result := s.Extract(context.Background(), "oui", nil)
	assert.Equal(t, IntentConfirm, result.Primary)
}

func TestExtractNeverReturnsInvalidIntent(t *testing.T) {
	backend := &scriptedBackend{
		content: `{"primary_intent":"make_coffee","confidence":0.99,"slots":{"service_category":"","location":"","description":"","urgency":""}}`,
	}
	s := NewService(backend)

	result := s.Extract(context.Background(), "xyz", nil)
	assert.Equal(t, IntentUnclear, result.Primary)
}

func TestExtractWithoutBackendUsesRules(t *testing.T) {
	s := NewService(nil)
	result := s.Extract(context.Background(), "bonsoir", nil)
	assert.Equal(t, IntentGreeting, result.Primary)
	assert.Equal(t, "rules", result.Method)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryPlumbing, normalizeCategory("Plomberie"))
	assert.Equal(t, CategoryElectrical, normalizeCategory("electricity"))
	assert.Equal(t, "", normalizeCategory("jardinage"))
	assert.Equal(t, "", normalizeCategory(""))
}

func TestMergePreservesSlotsStruct(t *testing.T) {
	llmResult := &Result{Primary: IntentUnclear, Confidence: 0.2, Method: "llm"}
	ruleResult := &Result{
		Primary:    IntentNewRequest,
		Confidence: 0.75,
		Slots:      store.Slots{ServiceCategory: CategoryLocksmith, Description: "porte claquée"},
		Method:     "rules",
	}

	merged := mergeResults(llmResult, ruleResult)
	assert.Equal(t, IntentNewRequest, merged.Primary)
	assert.Equal(t, CategoryLocksmith, merged.Slots.ServiceCategory)
	assert.InDelta(t, 0.75, merged.Confidence, 0.001)
}
