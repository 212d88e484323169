// Package timeout defines centralized timeout and retry constants for LLM
// operations.
package timeout

import "time"

const (
	// ExtractionTimeout is the per-call timeout for conversation analysis.
	// Extraction sits on the hot path of every turn, so it is kept short.
	ExtractionTimeout = 10 * time.Second

	// GenerateTimeout is the per-call timeout for reply generation.
	GenerateTimeout = 20 * time.Second

	// ReasoningTimeout is the per-call timeout for multi-step analysis.
	ReasoningTimeout = 45 * time.Second

	// MaxConsecutiveFailures is the number of consecutive backend failures
	// before the router marks the backend unhealthy.
	MaxConsecutiveFailures = 3

	// FailureCooldown is how long an unhealthy backend is skipped before the
	// router probes it again.
	FailureCooldown = time.Minute

	// QuotaCooldown applies instead of FailureCooldown when the backend
	// reported quota exhaustion. Retrying sooner just burns the window.
	QuotaCooldown = 15 * time.Minute

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// For returns the per-call timeout appropriate for the task type string.
func For(task string) time.Duration {
	switch task {
	case "conversation_analysis":
		return ExtractionTimeout
	case "complex_reasoning":
		return ReasoningTimeout
	default:
		return GenerateTimeout
	}
}
