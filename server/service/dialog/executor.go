package dialog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"

	apperrors "github.com/fankam/depanneo/server/internal/errors"
	"github.com/fankam/depanneo/server/events"
	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/server/service/notify"
	"github.com/fankam/depanneo/store"
)

// Notifier is the slice of the notification dispatcher the executor needs.
type Notifier interface {
	NotifyProvider(ctx context.Context, req *store.ServiceRequest, provider *store.Provider) (*store.NotificationAttempt, error)
	NotifyRequester(ctx context.Context, req *store.ServiceRequest, message string) (*store.NotificationAttempt, error)
	CancelForRequest(requestUID string)
}

// Outcome is what one executed action hands back to the user.
type Outcome struct {
	Reply      string
	Suggested  []string
	RequestUID string
}

// Executor runs the side effects of a selected action and advances the
// session phase. Every branch leaves the session in a valid phase and
// produces a reply; failures degrade to the error-fallback reply instead of
// surfacing raw errors to the user.
type Executor struct {
	store    *store.Store
	matcher  *matching.Matcher
	notifier Notifier
	bus      *events.EventBus
}

// NewExecutor creates an executor.
func NewExecutor(st *store.Store, matcher *matching.Matcher, notifier Notifier, bus *events.EventBus) *Executor {
	return &Executor{store: st, matcher: matcher, notifier: notifier, bus: bus}
}

// Execute performs the action against the session. The session is mutated
// (phase, pending slot) but not persisted; the engine saves it afterwards.
func (e *Executor) Execute(ctx context.Context, session *store.Session, action ActionCode, extracted store.Slots) (*Outcome, error) {
	switch action {
	case ActionGreet:
		session.Phase = store.PhaseGreeting
		session.PendingSlot = ""
		return e.outcome(action, session, replyGreet(), ""), nil

	case ActionAskMissingSlot:
		missing := session.Slots.Missing()
		if len(missing) == 0 {
			// Slots filled up since selection; confirm instead of asking.
			return e.Execute(ctx, session, ActionConfirmSummary, extracted)
		}
		if session.PendingSlot != missing[0] {
			session.PendingSlot = missing[0]
			session.UnclearStreak = 0
		}
		session.Phase = store.PhaseGatheringInfo
		return e.outcome(action, session, replyAskSlot(session.PendingSlot), ""), nil

	case ActionAskCorrection:
		session.Phase = store.PhaseConfirming
		return e.outcome(action, session, replyAskCorrection(), ""), nil

	case ActionConfirmSummary:
		session.Phase = store.PhaseConfirming
		session.PendingSlot = ""
		return e.outcome(action, session, replySummary(session.Slots), ""), nil

	case ActionCreateRequest:
		return e.createRequest(ctx, session)

	case ActionListRequests:
		return e.listRequests(ctx, session)

	case ActionShowRequest:
		return e.showRequest(ctx, session)

	case ActionModifyRequest:
		return e.modifyRequest(ctx, session, extracted)

	case ActionCancelRequest:
		return e.cancelRequest(ctx, session)

	case ActionEscalateToHuman:
		return e.escalate(session), nil

	default:
		return e.outcome(ActionErrorFallback, session, replyClarify(session.PendingSlot), ""), nil
	}
}

func (e *Executor) outcome(action ActionCode, session *store.Session, reply, requestUID string) *Outcome {
	return &Outcome{
		Reply:      reply,
		Suggested:  suggestionsFor(action, session.PendingSlot),
		RequestUID: requestUID,
	}
}

// createRequest is idempotent: with an open request already on file the
// create is absorbed and the existing request is surfaced instead.
func (e *Executor) createRequest(ctx context.Context, session *store.Session) (*Outcome, error) {
	req, created, err := e.store.CreateServiceRequestIfNoneOpen(ctx, &store.ServiceRequest{
		UID:         shortuuid.New(),
		UserKey:     session.UserKey,
		Category:    session.Slots.ServiceCategory,
		Location:    session.Slots.Location,
		Description: session.Slots.Description,
		Urgency:     session.Slots.Urgency,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if !created {
		slog.Info("create absorbed by existing open request",
			"user_key", session.UserKey,
			"request_uid", req.UID,
			"error_code", string(apperrors.ErrCodeDuplicateAction))
		session.Phase = store.PhaseManagingRequest
		return e.outcome(ActionCreateRequest, session, replyAlreadyOpen(req), req.UID), nil
	}

	session.Phase = store.PhaseRequestCreated
	session.PendingSlot = ""
	e.publish(events.Event{Type: events.EventRequestCreated, RequestUID: req.UID, UserKey: req.UserKey})

	match, err := e.matcher.Match(ctx, req.Category, req.Location)
	if err != nil {
		slog.Error("matching failed after request creation",
			"request_uid", req.UID,
			"error", err)
		return e.outcome(ActionCreateRequest, session, replyCreatedEmergency(req, nil), req.UID), nil
	}

	if match.Emergency || match.Best() == nil {
		slog.Warn("no provider available, sending emergency contacts",
			"request_uid", req.UID,
			"error", apperrors.NoProviderFound(req.Category, req.Location))
		contacts := match.Top(3)
		return e.outcome(ActionCreateRequest, session, replyCreatedEmergency(req, contacts), req.UID), nil
	}

	best := match.Best().Provider
	if _, err := e.notifier.NotifyProvider(ctx, req, best); err != nil {
		slog.Error("failed to dispatch provider notification",
			"request_uid", req.UID,
			"provider_id", best.ID,
			"error", err)
	} else {
		status := store.RequestStatusNotified
		if _, err := e.store.UpdateServiceRequest(ctx, &store.UpdateServiceRequest{ID: req.ID, Status: &status}); err != nil {
			slog.Error("failed to mark request notified", "request_uid", req.UID, "error", err)
		} else {
			req.Status = status
		}
		e.publish(events.Event{
			Type:       events.EventProviderMatched,
			RequestUID: req.UID,
			UserKey:    req.UserKey,
			Message:    fmt.Sprintf("tier %d: %s", match.Tier, best.Name),
		})

		// Mirror the confirmation onto the chat gateway so the user sees it
		// even when this turn's HTTP response is lost.
		if _, err := e.notifier.NotifyRequester(ctx, req, notify.RequesterConfirmation(req, best.Name)); err != nil {
			slog.Warn("failed to dispatch requester confirmation",
				"request_uid", req.UID,
				"error", err)
		}
	}

	return e.outcome(ActionCreateRequest, session, replyCreated(req, best.Name), req.UID), nil
}

func (e *Executor) listRequests(ctx context.Context, session *store.Session) (*Outcome, error) {
	limit := 5
	requests, err := e.store.ListServiceRequests(ctx, &store.FindServiceRequest{
		UserKey: &session.UserKey,
		Limit:   &limit,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return e.outcome(ActionListRequests, session, replyList(requests), ""), nil
}

func (e *Executor) showRequest(ctx context.Context, session *store.Session) (*Outcome, error) {
	req, err := e.store.GetOpenServiceRequest(ctx, session.UserKey)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if req == nil {
		return e.outcome(ActionShowRequest, session, replyNoOpenRequest(), ""), nil
	}
	session.Phase = store.PhaseManagingRequest
	return e.outcome(ActionShowRequest, session, replyDetail(req), req.UID), nil
}

func (e *Executor) modifyRequest(ctx context.Context, session *store.Session, extracted store.Slots) (*Outcome, error) {
	req, err := e.store.GetOpenServiceRequest(ctx, session.UserKey)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if req == nil {
		return e.outcome(ActionModifyRequest, session, replyNoOpenRequest(), ""), nil
	}

	update := &store.UpdateServiceRequest{ID: req.ID}
	if extracted.ServiceCategory != "" {
		update.Category = &extracted.ServiceCategory
	}
	if extracted.Location != "" {
		update.Location = &extracted.Location
	}
	if extracted.Description != "" {
		update.Description = &extracted.Description
	}
	if extracted.Urgency != "" {
		update.Urgency = &extracted.Urgency
	}
	if update.Category == nil && update.Location == nil && update.Description == nil && update.Urgency == nil {
		session.Phase = store.PhaseManagingRequest
		return e.outcome(ActionModifyRequest, session, replyAskCorrection(), req.UID), nil
	}

	updated, err := e.store.UpdateServiceRequest(ctx, update)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	// Keep the session slots aligned with the stored request.
	session.Slots.ServiceCategory = updated.Category
	session.Slots.Location = updated.Location
	session.Slots.Description = updated.Description
	session.Slots.Urgency = updated.Urgency
	session.Phase = store.PhaseManagingRequest

	e.publish(events.Event{Type: events.EventRequestStatusChanged, RequestUID: updated.UID, UserKey: updated.UserKey, Status: string(updated.Status)})
	return e.outcome(ActionModifyRequest, session, replyModified(updated), updated.UID), nil
}

func (e *Executor) cancelRequest(ctx context.Context, session *store.Session) (*Outcome, error) {
	req, err := e.store.GetOpenServiceRequest(ctx, session.UserKey)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if req == nil {
		return e.outcome(ActionCancelRequest, session, replyNoOpenRequest(), ""), nil
	}

	status := store.RequestStatusCancelled
	updated, err := e.store.UpdateServiceRequest(ctx, &store.UpdateServiceRequest{ID: req.ID, Status: &status})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	// Terminal status: stop any in-flight notification work for it.
	e.notifier.CancelForRequest(updated.UID)
	e.publish(events.Event{Type: events.EventRequestStatusChanged, RequestUID: updated.UID, UserKey: updated.UserKey, Status: string(updated.Status)})

	session.Reset()
	return e.outcome(ActionCancelRequest, session, replyCancelled(updated), updated.UID), nil
}

func (e *Executor) escalate(session *store.Session) *Outcome {
	if session.Phase != store.PhaseEscalated {
		e.publish(events.Event{
			Type:    events.EventEscalationRaised,
			UserKey: session.UserKey,
			Message: fmt.Sprintf("conversation escaladée après %d tours", session.TurnCount),
		})
	}
	session.Phase = store.PhaseEscalated
	session.PendingSlot = ""
	session.UnclearStreak = 0
	return e.outcome(ActionEscalateToHuman, session, replyEscalated(), "")
}

func (e *Executor) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}
