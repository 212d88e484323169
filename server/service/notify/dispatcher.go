package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fankam/depanneo/server/events"
	apperrors "github.com/fankam/depanneo/server/internal/errors"
	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/store"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 10 * time.Minute

// Dispatcher owns the delivery lifecycle of notification attempts. Each
// delivery runs as a cancellable background task; retries back off
// exponentially and exhaustion triggers the one-shot requester fallback.
type Dispatcher struct {
	store    *store.Store
	registry *ChannelRegistry
	tasks    *TaskRegistry
	bus      *events.EventBus
	matcher  *matching.Matcher

	retryBase    time.Duration
	maxRetries   int
	fallbackTopN int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Config configures a Dispatcher.
type Config struct {
	Store    *store.Store
	Registry *ChannelRegistry
	Bus      *events.EventBus
	Matcher  *matching.Matcher

	// RetryBase is the first retry delay; each further retry doubles it.
	RetryBase time.Duration
	// MaxRetries bounds delivery attempts before exhaustion.
	MaxRetries int
	// FallbackTopN is how many contacts the fallback message carries.
	FallbackTopN int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:        cfg.Store,
		registry:     cfg.Registry,
		tasks:        NewTaskRegistry(),
		bus:          cfg.Bus,
		matcher:      cfg.Matcher,
		retryBase:    cfg.RetryBase,
		maxRetries:   cfg.MaxRetries,
		fallbackTopN: cfg.FallbackTopN,
		now:          time.Now,
		sleep:        sleepCtx,
	}
	if d.retryBase <= 0 {
		d.retryBase = 30 * time.Second
	}
	if d.maxRetries <= 0 {
		d.maxRetries = 5
	}
	if d.fallbackTopN <= 0 {
		d.fallbackTopN = 3
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NotifyProvider records an attempt for the provider and starts background
// delivery. It returns as soon as the attempt is persisted.
func (d *Dispatcher) NotifyProvider(ctx context.Context, req *store.ServiceRequest, provider *store.Provider) (*store.NotificationAttempt, error) {
	target := ProviderTarget(provider.ID)
	attempt, err := d.store.CreateNotificationAttempt(ctx, &store.NotificationAttempt{
		RequestID: req.ID,
		Target:    target.String(),
		Channel:   "chat",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification attempt: %w", err)
	}

	d.spawn(req, attempt, recipientFor(target, provider), ProviderMessage(req))
	return attempt, nil
}

// NotifyRequester records an attempt for the requester and starts background
// delivery.
func (d *Dispatcher) NotifyRequester(ctx context.Context, req *store.ServiceRequest, message string) (*store.NotificationAttempt, error) {
	target := RequesterTarget(req.UserKey)
	attempt, err := d.store.CreateNotificationAttempt(ctx, &store.NotificationAttempt{
		RequestID: req.ID,
		Target:    target.String(),
		Channel:   "chat",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification attempt: %w", err)
	}

	d.spawn(req, attempt, recipientFor(target, nil), message)
	return attempt, nil
}

// CancelForRequest stops all in-flight delivery tasks for the request.
// Called when the request reaches a terminal status.
func (d *Dispatcher) CancelForRequest(requestUID string) {
	d.tasks.CancelForRequest(requestUID)
}

// Wait blocks until all delivery tasks have finished.
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}

// RedispatchDue restarts delivery for attempts whose retry is due but have
// no running task, which happens after a process restart. The cleanup runner
// calls this periodically.
func (d *Dispatcher) RedispatchDue(ctx context.Context) (int, error) {
	now := d.now().Unix()
	restarted := 0

	for _, status := range []store.AttemptStatus{store.AttemptStatusPending, store.AttemptStatusFailed} {
		status := status
		attempts, err := d.store.ListNotificationAttempts(ctx, &store.FindNotificationAttempt{
			Status:    &status,
			DueBefore: &now,
		})
		if err != nil {
			return restarted, fmt.Errorf("failed to list due attempts: %w", err)
		}

		for _, attempt := range attempts {
			if attempt.Channel == "fallback" {
				continue
			}
			req, recipient, message, err := d.rebuild(ctx, attempt)
			if err != nil {
				slog.Warn("skipping unrecoverable attempt",
					"attempt_id", attempt.ID,
					"error", err)
				continue
			}
			if req.Status.IsTerminal() {
				continue
			}
			if d.tasks.ActiveCount(req.UID) > 0 {
				// A live task already covers this request.
				continue
			}
			d.spawn(req, attempt, recipient, message)
			restarted++
		}
	}
	return restarted, nil
}

// rebuild reconstructs the delivery inputs for a persisted attempt. Message
// bodies are not persisted, so they are regenerated from the request.
func (d *Dispatcher) rebuild(ctx context.Context, attempt *store.NotificationAttempt) (*store.ServiceRequest, string, string, error) {
	requests, err := d.store.ListServiceRequests(ctx, &store.FindServiceRequest{ID: &attempt.RequestID})
	if err != nil || len(requests) == 0 {
		return nil, "", "", fmt.Errorf("request %d not found", attempt.RequestID)
	}
	req := requests[0]

	target, err := ParseTarget(attempt.Target)
	if err != nil {
		return nil, "", "", err
	}

	if target.Kind == "provider" {
		provider, err := d.store.GetProvider(ctx, target.ProviderID)
		if err != nil {
			return nil, "", "", err
		}
		return req, recipientFor(target, provider), ProviderMessage(req), nil
	}
	return req, recipientFor(target, nil), RequesterUpdate(req), nil
}

func (d *Dispatcher) spawn(req *store.ServiceRequest, attempt *store.NotificationAttempt, recipient, message string) {
	taskCtx, done := d.tasks.Start(req.UID)
	go func() {
		defer done()
		d.run(taskCtx, req, attempt, recipient, message)
	}()
}

// run drives one attempt through its state machine until it is SENT,
// EXHAUSTED or the task is cancelled.
func (d *Dispatcher) run(ctx context.Context, req *store.ServiceRequest, attempt *store.NotificationAttempt, recipient, message string) {
	retryCount := attempt.RetryCount

	for {
		channelName, err := d.registry.Send(ctx, recipient, message)
		if err == nil {
			d.updateAttempt(attempt.ID, store.AttemptStatusSent, retryCount, 0, "")
			if channelName != "" && channelName != attempt.Channel {
				slog.Info("delivered via secondary channel",
					"attempt_id", attempt.ID,
					"channel", channelName)
			}
			return
		}
		if ctx.Err() != nil {
			// Cancelled mid-flight; the attempt keeps its current state and
			// the restart sweep will not pick it up once the request is
			// terminal.
			return
		}

		retryCount++
		retryable := isRetryable(err)
		deliveryErr := apperrors.DeliveryFailed(attempt.Channel, err)

		if !retryable || retryCount >= d.maxRetries {
			exhaustedErr := apperrors.Wrap(err, apperrors.ErrCodeDeliveryExhausted, "delivery retries exhausted")
			d.updateAttempt(attempt.ID, store.AttemptStatusExhausted, retryCount, 0, exhaustedErr.Error())
			slog.Warn("notification attempt exhausted",
				"attempt_id", attempt.ID,
				"request_uid", req.UID,
				"retries", retryCount,
				"error", err)
			d.onExhausted(ctx, req, attempt)
			return
		}

		backoff := d.backoff(retryCount)
		d.updateAttempt(attempt.ID, store.AttemptStatusFailed, retryCount, d.now().Add(backoff).Unix(), deliveryErr.Error())

		if err := d.sleep(ctx, backoff); err != nil {
			return
		}
		d.updateAttempt(attempt.ID, store.AttemptStatusPending, retryCount, 0, "")
	}
}

// backoff returns the delay before the nth retry: base doubling each time,
// capped at maxBackoff.
func (d *Dispatcher) backoff(retryCount int) time.Duration {
	delay := d.retryBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func isRetryable(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Retryable
	}
	return false
}

func (d *Dispatcher) updateAttempt(id int32, status store.AttemptStatus, retryCount int, nextRetryTs int64, lastError string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := d.store.UpdateNotificationAttempt(ctx, &store.UpdateNotificationAttempt{
		ID:          id,
		Status:      &status,
		RetryCount:  &retryCount,
		NextRetryTs: &nextRetryTs,
		LastError:   &lastError,
	}); err != nil {
		slog.Error("failed to update notification attempt",
			"attempt_id", id,
			"status", status,
			"error", err)
	}
}

// onExhausted fires the requester fallback exactly once per request and
// publishes the exhaustion event. Requester-directed attempts do not
// re-trigger the fallback; that would loop.
func (d *Dispatcher) onExhausted(ctx context.Context, req *store.ServiceRequest, attempt *store.NotificationAttempt) {
	if d.bus != nil {
		d.bus.Publish(events.Event{
			Type:       events.EventNotificationExhausted,
			RequestUID: req.UID,
			UserKey:    req.UserKey,
			Message:    fmt.Sprintf("échec de livraison vers %s après %d tentatives", attempt.Target, attempt.RetryCount),
		})
	}

	target, err := ParseTarget(attempt.Target)
	if err != nil || target.Kind != "provider" {
		return
	}

	d.sendFallback(ctx, req)
}

// sendFallback delivers the contact-list message to the requester. A second
// exhaustion on the same request is a no-op.
func (d *Dispatcher) sendFallback(ctx context.Context, req *store.ServiceRequest) {
	existing, err := d.store.ListNotificationAttempts(ctx, &store.FindNotificationAttempt{RequestID: &req.ID})
	if err != nil {
		slog.Error("failed to check fallback state", "request_uid", req.UID, "error", err)
		return
	}
	for _, a := range existing {
		if a.Channel == "fallback" {
			return
		}
	}

	var contacts []matching.Candidate
	if d.matcher != nil {
		if result, err := d.matcher.Match(ctx, req.Category, req.Location); err == nil {
			contacts = result.Top(d.fallbackTopN)
		}
	}
	message := FallbackMessage(req, contacts)

	attempt, err := d.store.CreateNotificationAttempt(ctx, &store.NotificationAttempt{
		RequestID: req.ID,
		Target:    RequesterTarget(req.UserKey).String(),
		Channel:   "fallback",
	})
	if err != nil {
		slog.Error("failed to create fallback attempt", "request_uid", req.UID, "error", err)
		return
	}

	// One shot, no retry loop: the fallback is itself the last resort.
	if _, err := d.registry.Send(ctx, req.UserKey, message); err != nil {
		d.updateAttempt(attempt.ID, store.AttemptStatusFailed, 1, 0, err.Error())
		return
	}
	d.updateAttempt(attempt.ID, store.AttemptStatusSent, 0, 0, "")
}
