package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend wraps the OpenAI chat-completion API. It also serves any
// OpenAI-compatible endpoint (DeepSeek, SiliconFlow) via a custom base URL.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIBackend creates a new OpenAI-compatible backend.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (b *OpenAIBackend) Name() string {
	return "openai"
}

func (b *OpenAIBackend) Generate(ctx context.Context, task TaskType, req *Request) (*Result, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		case "system":
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	maxTokens, temperature := paramsFor(task)
	chatReq := openai.ChatCompletionRequest{
		Model:       b.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    messages,
	}

	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Strict: true,
				Schema: req.Schema.Schema,
			},
		}
	}

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		statusCode := 0
		if apiErr, ok := err.(*openai.APIError); ok {
			statusCode = apiErr.HTTPStatusCode
		}
		return nil, &BackendError{Backend: b.Name(), StatusCode: statusCode, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &BackendError{Backend: b.Name(), Err: fmt.Errorf("empty response")}
	}

	slog.Debug("openai generation completed",
		"task", task,
		"model", resp.Model,
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens)

	return &Result{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Backend:      b.Name(),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// paramsFor picks output budget and temperature per task type. Analysis must
// be deterministic; replies want a bit of variety.
func paramsFor(task TaskType) (maxTokens int, temperature float32) {
	switch task {
	case TaskConversationAnalysis:
		return 512, 0
	case TaskComplexReasoning:
		return 1024, 0.3
	default:
		return 512, 0.6
	}
}

var _ Backend = (*OpenAIBackend)(nil)
