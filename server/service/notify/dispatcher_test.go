package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fankam/depanneo/server/events"
	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/store"
	"github.com/fankam/depanneo/store/teststore"
)

type fakeChannel struct {
	name string

	mu    sync.Mutex
	calls int
	send  func(call int) error
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, recipient, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.send == nil {
		return nil
	}
	return f.send(f.calls)
}

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func retryableErr(name string) error {
	return &DeliveryError{Channel: name, Retryable: true, Err: fmt.Errorf("gateway timeout")}
}

type testEnv struct {
	store      *store.Store
	dispatcher *Dispatcher
	bus        *events.EventBus
	channel    *fakeChannel
	sleeps     []time.Duration
	sleepsMu   sync.Mutex
	request    *store.ServiceRequest
	provider   *store.Provider
}

func newTestEnv(t *testing.T, channel *fakeChannel) *testEnv {
	t.Helper()
	st, _ := teststore.NewStore()
	ctx := context.Background()

	provider, err := st.CreateProvider(ctx, &store.Provider{
		Name: "Mbarga Plomberie", Phone: "+237650000001",
		Categories: []string{"plumbing"}, Zone: "Bonamoussadi",
		Rating: 4.5, AvgResponseMins: 30, Available: true,
	})
	require.NoError(t, err)

	request, created, err := st.CreateServiceRequestIfNoneOpen(ctx, &store.ServiceRequest{
		UID: "req-test-1", UserKey: "whatsapp:+237699000001",
		Category: "plumbing", Location: "Bonamoussadi",
		Description: "fuite d'eau", Urgency: "urgent",
	})
	require.NoError(t, err)
	require.True(t, created)

	env := &testEnv{store: st, bus: events.NewEventBus(), channel: channel, request: request, provider: provider}
	env.dispatcher = NewDispatcher(Config{
		Store:        st,
		Registry:     NewChannelRegistry(channel, nil),
		Bus:          env.bus,
		Matcher:      matching.NewMatcher(st, matching.Weights{}),
		RetryBase:    30 * time.Second,
		MaxRetries:   5,
		FallbackTopN: 3,
	})
	env.dispatcher.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	env.dispatcher.sleep = func(ctx context.Context, d time.Duration) error {
		env.sleepsMu.Lock()
		env.sleeps = append(env.sleeps, d)
		env.sleepsMu.Unlock()
		return nil
	}
	return env
}

func (e *testEnv) attempts(t *testing.T) []*store.NotificationAttempt {
	t.Helper()
	list, err := e.store.ListNotificationAttempts(context.Background(), &store.FindNotificationAttempt{RequestID: &e.request.ID})
	require.NoError(t, err)
	return list
}

func TestDeliverySucceedsFirstTry(t *testing.T) {
	env := newTestEnv(t, &fakeChannel{name: "chat"})

	attempt, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	attempts := env.attempts(t)
	require.Len(t, attempts, 1)
	assert.Equal(t, attempt.ID, attempts[0].ID)
	assert.Equal(t, store.AttemptStatusSent, attempts[0].Status)
	assert.Zero(t, attempts[0].RetryCount)
}

func TestRetryBacksOffExponentially(t *testing.T) {
	channel := &fakeChannel{name: "chat", send: func(call int) error {
		if call <= 3 {
			return retryableErr("chat")
		}
		return nil
	}}
	env := newTestEnv(t, channel)

	_, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	attempts := env.attempts(t)
	require.Len(t, attempts, 1)
	assert.Equal(t, store.AttemptStatusSent, attempts[0].Status)
	assert.Equal(t, 3, attempts[0].RetryCount)

	// 30s, then 60s, then 120s.
	assert.Equal(t, []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute}, env.sleeps)
}

func TestExhaustionAfterMaxRetriesSendsFallbackOnce(t *testing.T) {
	channel := &fakeChannel{name: "chat", send: func(call int) error {
		// Provider delivery always fails; the fallback send (to the
		// requester) succeeds.
		if call <= 5 {
			return retryableErr("chat")
		}
		return nil
	}}
	env := newTestEnv(t, channel)

	_, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	attempts := env.attempts(t)
	require.Len(t, attempts, 2)

	byChannel := map[string]*store.NotificationAttempt{}
	for _, a := range attempts {
		byChannel[a.Channel] = a
	}
	require.Contains(t, byChannel, "chat")
	require.Contains(t, byChannel, "fallback")
	assert.Equal(t, store.AttemptStatusExhausted, byChannel["chat"].Status)
	assert.Equal(t, 5, byChannel["chat"].RetryCount)
	assert.Equal(t, store.AttemptStatusSent, byChannel["fallback"].Status)

	recent := env.bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.EventNotificationExhausted, recent[0].Type)
}

func TestSecondExhaustionDoesNotDuplicateFallback(t *testing.T) {
	fail := true
	channel := &fakeChannel{name: "chat", send: func(call int) error {
		if fail {
			return retryableErr("chat")
		}
		return nil
	}}
	env := newTestEnv(t, channel)

	_, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	fail = false
	_, err = env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	fallbacks := 0
	for _, a := range env.attempts(t) {
		if a.Channel == "fallback" {
			fallbacks++
		}
	}
	assert.Equal(t, 1, fallbacks)
}

func TestNonRetryableErrorExhaustsImmediately(t *testing.T) {
	channel := &fakeChannel{name: "chat", send: func(call int) error {
		if call == 1 {
			return &DeliveryError{Channel: "chat", Retryable: false, Err: fmt.Errorf("invalid recipient")}
		}
		return nil
	}}
	env := newTestEnv(t, channel)

	_, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)
	env.dispatcher.Wait()

	var chat *store.NotificationAttempt
	for _, a := range env.attempts(t) {
		if a.Channel == "chat" {
			chat = a
		}
	}
	require.NotNil(t, chat)
	assert.Equal(t, store.AttemptStatusExhausted, chat.Status)
	assert.Equal(t, 1, chat.RetryCount)
	assert.Empty(t, env.sleeps)
}

func TestCancelForRequestStopsRetryLoop(t *testing.T) {
	channel := &fakeChannel{name: "chat", send: func(int) error { return retryableErr("chat") }}
	env := newTestEnv(t, channel)

	// Real context-aware sleep with a long delay: the task must exit via
	// cancellation, not by exhausting retries.
	env.dispatcher.sleep = sleepCtx
	env.dispatcher.retryBase = time.Hour

	_, err := env.dispatcher.NotifyProvider(context.Background(), env.request, env.provider)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return channel.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	env.dispatcher.CancelForRequest(env.request.UID)
	env.dispatcher.Wait()

	attempts := env.attempts(t)
	require.Len(t, attempts, 1)
	assert.NotEqual(t, store.AttemptStatusSent, attempts[0].Status)
	assert.NotEqual(t, store.AttemptStatusExhausted, attempts[0].Status)
}

func TestRedispatchDueRestartsOrphanedAttempt(t *testing.T) {
	env := newTestEnv(t, &fakeChannel{name: "chat"})
	ctx := context.Background()

	// Simulate an attempt left FAILED by a crashed process, due in the past.
	failed := store.AttemptStatusFailed
	one := 1
	due := env.dispatcher.now().Add(-time.Minute).Unix()
	attempt, err := env.store.CreateNotificationAttempt(ctx, &store.NotificationAttempt{
		RequestID: env.request.ID,
		Target:    ProviderTarget(env.provider.ID).String(),
		Channel:   "chat",
	})
	require.NoError(t, err)
	_, err = env.store.UpdateNotificationAttempt(ctx, &store.UpdateNotificationAttempt{
		ID: attempt.ID, Status: &failed, RetryCount: &one, NextRetryTs: &due,
	})
	require.NoError(t, err)

	restarted, err := env.dispatcher.RedispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted)
	env.dispatcher.Wait()

	attempts := env.attempts(t)
	require.Len(t, attempts, 1)
	assert.Equal(t, store.AttemptStatusSent, attempts[0].Status)
}

func TestRegistrySecondaryJoinsOnlyAfterPrimaryDegrades(t *testing.T) {
	primary := &fakeChannel{name: "chat", send: func(int) error { return retryableErr("chat") }}
	secondary := &fakeChannel{name: "sms"}
	registry := NewChannelRegistry(primary, secondary)

	// While the primary is healthy its failures come straight back to the
	// caller; the secondary is left alone.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := registry.Send(ctx, "+237650000001", "bonjour")
		require.Error(t, err)
	}
	assert.Zero(t, secondary.callCount())
	assert.True(t, registry.Degraded())

	// Degraded: the secondary is tried first and the primary is left alone.
	primaryCallsBefore := primary.callCount()
	name, err := registry.Send(ctx, "+237650000001", "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "sms", name)
	assert.Equal(t, primaryCallsBefore, primary.callCount())
}

func TestRegistryPrimaryFailureDoesNotFallThroughWhileHealthy(t *testing.T) {
	primary := &fakeChannel{name: "chat", send: func(call int) error {
		if call == 1 {
			return retryableErr("chat")
		}
		return nil
	}}
	secondary := &fakeChannel{name: "sms"}
	registry := NewChannelRegistry(primary, secondary)
	ctx := context.Background()

	_, err := registry.Send(ctx, "+237650000001", "bonjour")
	require.Error(t, err)
	assert.Zero(t, secondary.callCount())
	assert.False(t, registry.Degraded())

	// The next send succeeds on the primary and clears the failure count.
	name, err := registry.Send(ctx, "+237650000001", "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "chat", name)
	assert.Zero(t, secondary.callCount())
}

func TestBackoffIsCapped(t *testing.T) {
	d := NewDispatcher(Config{RetryBase: 30 * time.Second, MaxRetries: 50})
	assert.Equal(t, 30*time.Second, d.backoff(1))
	assert.Equal(t, time.Minute, d.backoff(2))
	assert.Equal(t, maxBackoff, d.backoff(40))
}

func TestParseTargetRoundTrip(t *testing.T) {
	provider, err := ParseTarget("provider:42")
	require.NoError(t, err)
	assert.Equal(t, int32(42), provider.ProviderID)
	assert.Equal(t, "provider:42", provider.String())

	requester, err := ParseTarget("requester:whatsapp:+237699000001")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+237699000001", requester.UserKey)

	_, err = ParseTarget("garbage")
	assert.Error(t, err)
}
