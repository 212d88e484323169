package notify

import (
	"context"
	"log/slog"
	"sync"
)

// channelDegradeThreshold is the number of consecutive primary failures
// before the registry reports the primary channel degraded.
const channelDegradeThreshold = 3

// ChannelRegistry holds the transports in preference order and tracks the
// health of the primary. The secondary is a degradation-level fallback: it is
// never tried while the primary is healthy, and joins the order only after
// three consecutive primary failures. A single primary success clears the
// flag.
type ChannelRegistry struct {
	mu        sync.Mutex
	primary   Channel
	secondary Channel

	primaryFailures int
	degraded        bool
}

// NewChannelRegistry creates a registry. The secondary may be nil.
func NewChannelRegistry(primary, secondary Channel) *ChannelRegistry {
	return &ChannelRegistry{primary: primary, secondary: secondary}
}

// Send attempts delivery over the channels in health order. While the primary
// is healthy only the primary is tried; its failure is returned so the
// dispatcher's retry state machine owns redelivery. It returns the channel
// name that succeeded, or the last error. The returned error keeps its
// DeliveryError type so callers can inspect retryability.
func (r *ChannelRegistry) Send(ctx context.Context, recipient, message string) (string, error) {
	var lastErr error
	for _, ch := range r.ordered() {
		err := ch.Send(ctx, recipient, message)
		if err == nil {
			r.recordSuccess(ch)
			return ch.Name(), nil
		}
		r.recordFailure(ch)
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
		slog.Warn("channel delivery failed",
			"channel", ch.Name(),
			"error", err)
	}
	return "", lastErr
}

// Degraded reports whether the primary channel is considered down.
func (r *ChannelRegistry) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *ChannelRegistry) ordered() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.degraded && r.secondary != nil {
		return []Channel{r.secondary, r.primary}
	}
	return []Channel{r.primary}
}

func (r *ChannelRegistry) recordSuccess(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch == r.primary {
		r.primaryFailures = 0
		if r.degraded {
			slog.Info("primary channel recovered", "channel", ch.Name())
		}
		r.degraded = false
	}
}

func (r *ChannelRegistry) recordFailure(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch != r.primary {
		return
	}
	r.primaryFailures++
	if !r.degraded && r.primaryFailures >= channelDegradeThreshold {
		r.degraded = true
		slog.Warn("primary channel degraded, preferring secondary",
			"channel", ch.Name(),
			"consecutive_failures", r.primaryFailures)
	}
}
