package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch1, done1 := bus.Subscribe()
	ch2, done2 := bus.Subscribe()
	defer bus.Unsubscribe(done1)
	defer bus.Unsubscribe(done2)

	bus.Publish(Event{Type: EventRequestCreated, RequestUID: "req-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, EventRequestCreated, e.Type)
			assert.Equal(t, "req-1", e.RequestUID)
			assert.NotEmpty(t, e.TS)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestRecentKeepsRingBuffer(t *testing.T) {
	bus := NewEventBus()
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventRequestStatusChanged})
	}

	assert.Len(t, bus.Recent(3), 3)
	assert.Len(t, bus.Recent(0), 5)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch, done := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(done)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)
}

func TestSlackNotifierForwardsOnlyOperatorEvents(t *testing.T) {
	var mu sync.Mutex
	var posted []*slack.WebhookMessage
	n := &SlackNotifier{
		webhookURL: "https://hooks.example.test/abc",
		post: func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
			mu.Lock()
			defer mu.Unlock()
			posted = append(posted, msg)
			return nil
		},
	}
	postedCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(posted)
	}

	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	notifierDone := make(chan struct{})
	go func() {
		n.Run(ctx, bus)
		close(notifierDone)
	}()

	// Give the subscriber time to register before publishing.
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(Event{Type: EventRequestCreated, RequestUID: "ignored"})
	bus.Publish(Event{Type: EventEscalationRaised, RequestUID: "req-2", UserKey: "user-1", Message: "3 messages incompris"})

	require.Eventually(t, func() bool { return postedCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-notifierDone

	require.Len(t, posted[0].Attachments, 1)
	assert.Equal(t, "danger", posted[0].Attachments[0].Color)
}
