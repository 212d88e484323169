package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend wraps the Anthropic Messages API.
type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

// AnthropicConfig holds configuration for the Anthropic backend.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// NewAnthropicBackend creates a new Anthropic backend.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}

	return &AnthropicBackend{
		client: &client,
		model:  model,
	}
}

func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

func (b *AnthropicBackend) Generate(ctx context.Context, task TaskType, req *Request) (*Result, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens, temperature := paramsFor(task)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	system := req.System
	// The Messages API has no JSON-schema mode; the schema is inlined into
	// the system prompt and the response parsed as JSON by the caller.
	if req.Schema != nil {
		schemaJSON, err := req.Schema.Schema.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		system = fmt.Sprintf("%s\n\nRespond with a single JSON object matching this schema, and nothing else:\n%s", system, schemaJSON)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}

	start := time.Now()
	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		statusCode := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			statusCode = apiErr.StatusCode
		}
		return nil, &BackendError{Backend: b.Name(), StatusCode: statusCode, Err: err}
	}

	var content string
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += textBlock.Text
		}
	}
	if content == "" {
		return nil, &BackendError{Backend: b.Name(), Err: fmt.Errorf("empty response")}
	}

	slog.Debug("anthropic generation completed",
		"task", task,
		"model", string(message.Model),
		"latency_ms", time.Since(start).Milliseconds(),
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens)

	return &Result{
		Content:      content,
		Model:        string(message.Model),
		Backend:      b.Name(),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

var _ Backend = (*AnthropicBackend)(nil)
