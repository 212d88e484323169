package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fankam/depanneo/internal/profile"
	"github.com/fankam/depanneo/plugin/extractor"
	"github.com/fankam/depanneo/plugin/llm"
	apperrors "github.com/fankam/depanneo/server/internal/errors"
	"github.com/fankam/depanneo/server/internal/observability"
	"github.com/fankam/depanneo/store"
)

// TurnResult is the outcome of one processed user message.
type TurnResult struct {
	Reply      string
	Action     ActionCode
	Phase      store.ConversationPhase
	Suggested  []string
	RequestUID string
}

// Engine runs the full turn pipeline: load session, extract, merge slots,
// select an action, execute it and persist the session. Turns for the same
// user key are serialized; different users proceed concurrently.
type Engine struct {
	store     *store.Store
	extractor *extractor.Service
	executor  *Executor
	profile   *profile.Profile
	logger    *slog.Logger

	locks sync.Map // user key -> *sync.Mutex
	now   func() time.Time
}

// NewEngine creates the conversation engine.
func NewEngine(st *store.Store, ex *extractor.Service, executor *Executor, p *profile.Profile, logger *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		extractor: ex,
		executor:  executor,
		profile:   p,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *Engine) lockFor(userKey string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(userKey, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// HandleMessage processes one inbound message and returns the reply. It never
// fails on extraction or delivery problems; only invalid input or a down
// persistence layer produce an error.
func (e *Engine) HandleMessage(ctx context.Context, userKey, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if userKey == "" {
		return nil, apperrors.InvalidArgument("user key is required")
	}
	if message == "" {
		return nil, apperrors.InvalidArgument("message is empty")
	}

	mu := e.lockFor(userKey)
	mu.Lock()
	defer mu.Unlock()

	tc := observability.NewTurnContext(e.logger, userKey)
	ctx = observability.WithTurnContext(ctx, tc)

	session, err := e.loadSession(ctx, userKey, tc)
	if err != nil {
		return nil, err
	}

	result := e.extractor.Extract(ctx, message, historyMessages(session.History))
	intent, slots := result.Primary, result.Slots
	if result.Backend != "" {
		tc.SetBackend(result.Backend)
	}
	if result.Err != nil {
		tc.Warn("extraction degraded to rules",
			slog.String("error", apperrors.ExtractionFailed("language-model extraction failed", result.Err).Error()),
			slog.String(observability.LogFieldErrorCode, string(apperrors.ErrCodeExtractionFailed)))
	}

	// Below the confidence threshold the classification is not trusted:
	// the turn is handled as unclear and the slots are discarded.
	if result.Confidence < e.profile.ConfidenceThreshold && intent != extractor.IntentUnclear {
		tc.Warn("extraction below confidence threshold, treating as unclear",
			slog.String("intent", string(intent)),
			slog.Float64("confidence", result.Confidence),
			slog.String(observability.LogFieldErrorCode, string(apperrors.ErrCodeLowConfidence)))
		intent = extractor.IntentUnclear
		slots = store.Slots{}
	}

	var action ActionCode
	switch {
	case session.Phase == store.PhaseEscalated && intent == extractor.IntentUnclear:
		// A human owns the conversation; keep repeating the escalation notice.
		action = ActionEscalateToHuman
	case intent == extractor.IntentUnclear:
		session.UnclearStreak++
		if session.UnclearStreak >= e.profile.ClarificationCap {
			action = ActionEscalateToHuman
		} else {
			action = ActionErrorFallback
		}
	default:
		session.UnclearStreak = 0
		session.Slots = MergeSlots(session.Slots, slots, intent)

		// When the engine asked for the free-text description, take the raw
		// message if extraction pulled nothing out of it.
		if session.PendingSlot == store.SlotDescription &&
			intent == extractor.IntentProvideInfo &&
			session.Slots.Description == "" {
			session.Slots.Description = message
		}

		action = Select(session.Phase, intent, session.Slots.Complete())
	}
	tc.SetAction(string(action))

	outcome, err := e.executor.Execute(ctx, session, action, slots)
	if err != nil {
		// A down persistence layer surfaces to the caller; anything else
		// degrades to the clarification reply.
		if apperrors.IsCode(err, apperrors.ErrCodeStoreUnavailable) {
			tc.Error("action execution failed, persistence unavailable", err,
				slog.String("intent", string(intent)))
			return nil, err
		}
		tc.Error("action execution failed", err,
			slog.String("intent", string(intent)))
		action = ActionErrorFallback
		outcome = &Outcome{Reply: replyClarify(session.PendingSlot)}
	}

	session.History = appendHistory(session.History, message, outcome.Reply, e.profile.HistoryTurns)
	session.TurnCount++
	session.LastActivityTs = e.now().Unix()
	if _, err := e.store.UpsertSession(ctx, session); err != nil {
		// The reply already happened; losing one turn of state is preferable
		// to failing the whole message.
		tc.Error("failed to persist session", err)
	}

	tc.Info("turn completed",
		slog.String("intent", string(intent)),
		slog.String("phase", string(session.Phase)),
		slog.String("method", result.Method),
		slog.Int64(observability.LogFieldDuration, tc.DurationMs()))

	return &TurnResult{
		Reply:      outcome.Reply,
		Action:     action,
		Phase:      session.Phase,
		Suggested:  outcome.Suggested,
		RequestUID: outcome.RequestUID,
	}, nil
}

// loadSession returns the session for the user key, creating a fresh one when
// none exists, the stored one is unreadable, or it idled past the inactivity
// window.
func (e *Engine) loadSession(ctx context.Context, userKey string, tc *observability.TurnContext) (*store.Session, error) {
	session, err := e.store.GetSessionByUserKey(ctx, userKey)
	if err != nil {
		if errors.Is(err, store.ErrSessionCorrupted) {
			tc.Warn("session state unreadable, starting fresh",
				slog.String("error", apperrors.SessionCorrupted(userKey, err).Error()))
			return &store.Session{UserKey: userKey, Phase: store.PhaseGreeting}, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("session load timed out")
		}
		return nil, apperrors.StoreUnavailable(err)
	}
	if session == nil {
		return &store.Session{UserKey: userKey, Phase: store.PhaseGreeting}, nil
	}

	if session.LastActivityTs > 0 &&
		e.now().Sub(time.Unix(session.LastActivityTs, 0)) > e.profile.SessionInactivity {
		tc.Info("session expired by inactivity, resetting",
			slog.Int64("last_activity_ts", session.LastActivityTs))
		session.Reset()
	}
	if !session.Phase.IsValid() {
		tc.Warn("session has unknown phase, resetting",
			slog.String("phase", string(session.Phase)))
		session.Reset()
	}
	return session, nil
}

func historyMessages(turns []store.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

// appendHistory adds the user/assistant exchange and trims the window to the
// configured number of turns (two entries per turn).
func appendHistory(history []store.Turn, userMessage, reply string, maxTurns int) []store.Turn {
	history = append(history,
		store.Turn{Role: "user", Content: userMessage},
		store.Turn{Role: "assistant", Content: reply},
	)
	if maxTurns <= 0 {
		return history
	}
	if limit := maxTurns * 2; len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
