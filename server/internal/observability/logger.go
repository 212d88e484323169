package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldSessionKey is the field name for the session user key.
	LogFieldSessionKey = "session_key"
	// LogFieldActionCode is the field name for the selected action code.
	LogFieldActionCode = "action_code"
	// LogFieldBackend is the field name for the language-model backend identity.
	LogFieldBackend = "backend"
	// LogFieldChannel is the field name for the delivery channel.
	LogFieldChannel = "channel"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// TurnContext carries structured logging state for a single conversation turn.
// Every recoverable error on the pipeline is logged with session key, action
// code and backend identity through this context.
type TurnContext struct {
	RequestID  string
	SessionKey string
	ActionCode string
	Backend    string
	StartTime  time.Time
	Logger     *slog.Logger
}

// NewTurnContext creates a new turn context with a generated request ID.
func NewTurnContext(logger *slog.Logger, sessionKey string) *TurnContext {
	return &TurnContext{
		RequestID:  uuid.New().String(),
		SessionKey: sessionKey,
		StartTime:  time.Now(),
		Logger:     logger,
	}
}

// SetAction records the selected action code for subsequent log lines.
func (t *TurnContext) SetAction(code string) {
	t.ActionCode = code
}

// SetBackend records the backend that served the extraction call.
func (t *TurnContext) SetBackend(name string) {
	t.Backend = name
}

// Info logs an info message.
func (t *TurnContext) Info(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, t.baseAttrsAppended(attrs...)...)
}

// Debug logs a debug message.
func (t *TurnContext) Debug(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, t.baseAttrsAppended(attrs...)...)
}

// Warn logs a warning message.
func (t *TurnContext) Warn(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, t.baseAttrsAppended(attrs...)...)
}

// Error logs an error message with the error.
func (t *TurnContext) Error(msg string, err error, attrs ...slog.Attr) {
	allAttrs := append(attrs, slog.String("error", err.Error()))
	t.Logger.LogAttrs(context.Background(), slog.LevelError, msg, t.baseAttrsAppended(allAttrs...)...)
}

// DurationMs returns the elapsed time in milliseconds.
func (t *TurnContext) DurationMs() int64 {
	return time.Since(t.StartTime).Milliseconds()
}

func (t *TurnContext) baseAttrsAppended(attrs ...slog.Attr) []slog.Attr {
	base := []slog.Attr{
		slog.String(LogFieldRequestID, t.RequestID),
		slog.String(LogFieldSessionKey, t.SessionKey),
	}
	if t.ActionCode != "" {
		base = append(base, slog.String(LogFieldActionCode, t.ActionCode))
	}
	if t.Backend != "" {
		base = append(base, slog.String(LogFieldBackend, t.Backend))
	}
	return append(base, attrs...)
}

type ctxKey struct{}

// WithTurnContext adds the turn context to the context.
func WithTurnContext(ctx context.Context, turnCtx *TurnContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, turnCtx)
}

// FromContext extracts the turn context from the context.
func FromContext(ctx context.Context) (*TurnContext, bool) {
	turnCtx, ok := ctx.Value(ctxKey{}).(*TurnContext)
	return turnCtx, ok
}
