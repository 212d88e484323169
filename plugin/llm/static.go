package llm

import "context"

// StaticBackend is the degraded-mode backend of last resort. It never fails
// and never leaves the process: analysis tasks get an explicit low-confidence
// result so the caller falls back to rule-based extraction, and reply tasks
// get a fixed courtesy message.
type StaticBackend struct{}

// NewStaticBackend creates the static fallback backend.
func NewStaticBackend() *StaticBackend {
	return &StaticBackend{}
}

func (b *StaticBackend) Name() string {
	return "static"
}

// StaticReply is the canned reply served while every real backend is down.
const StaticReply = "Nous avons bien reçu votre message. Un instant s'il vous plaît, nous traitons votre demande."

func (b *StaticBackend) Generate(ctx context.Context, task TaskType, req *Request) (*Result, error) {
	content := StaticReply
	if task == TaskConversationAnalysis {
		content = `{"primary_intent":"unclear","confidence":0,"slots":{}}`
	}
	return &Result{Content: content, Model: "static", Backend: b.Name()}, nil
}

var _ Backend = (*StaticBackend)(nil)
