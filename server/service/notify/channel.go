// Package notify delivers outbound messages to providers and requesters and
// tracks every delivery as a notification attempt with retry, backoff and an
// exhaustion fallback. A message is never silently dropped: it either lands,
// or the requester gets a contact list to act on manually.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fankam/depanneo/store"
)

// Channel is a single delivery transport.
type Channel interface {
	// Name returns the stable channel identifier recorded on attempts.
	Name() string

	// Send delivers one message to the recipient address. Errors should be
	// wrapped in DeliveryError so the dispatcher can tell retryable
	// failures apart from permanent ones.
	Send(ctx context.Context, recipient, message string) error
}

// DeliveryError describes a failed delivery.
type DeliveryError struct {
	Channel   string
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Target identifies the recipient of an attempt. The persisted form is
// "provider:<id>" or "requester:<user key>".
type Target struct {
	Kind       string // "provider" | "requester"
	ProviderID int32
	UserKey    string
}

// ProviderTarget builds a target for a provider.
func ProviderTarget(id int32) Target {
	return Target{Kind: "provider", ProviderID: id}
}

// RequesterTarget builds a target for the requester behind a user key.
func RequesterTarget(userKey string) Target {
	return Target{Kind: "requester", UserKey: userKey}
}

// String returns the persisted form.
func (t Target) String() string {
	if t.Kind == "provider" {
		return fmt.Sprintf("provider:%d", t.ProviderID)
	}
	return "requester:" + t.UserKey
}

// ParseTarget parses the persisted form back into a Target.
func ParseTarget(s string) (Target, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Target{}, fmt.Errorf("malformed target %q", s)
	}
	switch kind {
	case "provider":
		var id int32
		if _, err := fmt.Sscanf(rest, "%d", &id); err != nil {
			return Target{}, fmt.Errorf("malformed provider target %q", s)
		}
		return ProviderTarget(id), nil
	case "requester":
		return RequesterTarget(rest), nil
	default:
		return Target{}, fmt.Errorf("unknown target kind %q", kind)
	}
}

// recipientFor resolves the channel address for a target.
func recipientFor(target Target, provider *store.Provider) string {
	if target.Kind == "provider" && provider != nil {
		return provider.Phone
	}
	return target.UserKey
}
