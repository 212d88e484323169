// Package llm defines the chat-completion backend abstraction used by the
// conversation engine. Concrete backends wrap vendor SDKs; the router package
// layers health tracking and ordered fallback on top of them.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskType selects generation parameters appropriate for the call site.
type TaskType string

const (
	// TaskConversationAnalysis extracts structured intent and slots from a
	// user message. Low temperature, small output, strict JSON.
	TaskConversationAnalysis TaskType = "conversation_analysis"

	// TaskReplyGeneration produces the natural-language reply shown to the
	// user. Moderate temperature, free-form text.
	TaskReplyGeneration TaskType = "reply_generation"

	// TaskComplexReasoning is reserved for multi-step analysis such as
	// summarizing a long session before escalation.
	TaskComplexReasoning TaskType = "complex_reasoning"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Request is a single generation request.
type Request struct {
	System   string
	Messages []Message
	// Schema, when set, constrains the output to strict JSON.
	Schema *SchemaSpec
}

// Result is the backend response.
type Result struct {
	Content string
	Model   string
	// Backend is the Name of the backend that served the call.
	Backend      string
	InputTokens  int
	OutputTokens int
}

// Backend is a single LLM provider. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Name returns a stable identifier used in health tracking and logs.
	Name() string

	// Generate performs one chat completion for the given task.
	Generate(ctx context.Context, task TaskType, req *Request) (*Result, error)
}

// BackendError carries the HTTP status of a failed provider call so the
// router can distinguish quota exhaustion from transient failures.
type BackendError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %v", e.Backend, e.StatusCode, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// SchemaSpec names a strict JSON schema for structured output.
type SchemaSpec struct {
	Name   string
	Schema *Schema
}

// Schema is a minimal JSON Schema representation accepted by providers'
// structured-output modes.
type Schema struct {
	Type                 string             `json:"type"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Description          string             `json:"description,omitempty"`
	AdditionalProperties bool               `json:"additionalProperties"`
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	type alias Schema
	return json.Marshal((*alias)(s))
}

// Helper for creating system prompts.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// Helper for creating user messages.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Helper for creating assistant messages.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewRequest assembles a request from a system prompt, prior history and the
// current user message.
func NewRequest(systemPrompt string, userContent string, history []Message) *Request {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return &Request{System: systemPrompt, Messages: messages}
}
