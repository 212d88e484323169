package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackNotifier forwards operator-relevant events (escalations, exhausted
// notifications) to a Slack incoming webhook so a human can pick them up.
type SlackNotifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier creates a notifier posting to the given webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		post:       slack.PostWebhookContext,
	}
}

// Run subscribes to the bus and forwards events until the context is
// cancelled. Intended to run in its own goroutine.
func (n *SlackNotifier) Run(ctx context.Context, bus *EventBus) {
	ch, done := bus.Subscribe()
	defer bus.Unsubscribe(done)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !n.relevant(e.Type) {
				continue
			}
			if err := n.forward(ctx, e); err != nil {
				slog.Warn("failed to forward event to slack",
					"type", e.Type,
					"request_uid", e.RequestUID,
					"error", err)
			}
		}
	}
}

func (n *SlackNotifier) relevant(eventType string) bool {
	switch eventType {
	case EventEscalationRaised, EventNotificationExhausted:
		return true
	}
	return false
}

func (n *SlackNotifier) forward(ctx context.Context, e Event) error {
	color := "warning"
	title := "Notification épuisée"
	if e.Type == EventEscalationRaised {
		color = "danger"
		title = "Escalade vers un opérateur"
	}

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color:    color,
			Title:    title,
			Text:     e.Message,
			Fallback: title,
			Fields: []slack.AttachmentField{
				{Title: "Demande", Value: e.RequestUID, Short: true},
				{Title: "Client", Value: e.UserKey, Short: true},
			},
		}},
	}

	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	return nil
}
