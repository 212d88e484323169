package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fankam/depanneo/store"
	"github.com/fankam/depanneo/store/teststore"
)

type fakeRedispatcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRedispatcher) RedispatchDue(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 0, nil
}

func (f *fakeRedispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seedSession(t *testing.T, st *store.Store, userKey string, phase store.ConversationPhase, lastActivity time.Time) {
	t.Helper()
	_, err := st.UpsertSession(context.Background(), &store.Session{
		UserKey:        userKey,
		Phase:          phase,
		Slots:          store.Slots{ServiceCategory: "plumbing"},
		LastActivityTs: lastActivity.Unix(),
	})
	require.NoError(t, err)
}

func TestExpireSessionsResetsOnlyStaleActiveOnes(t *testing.T) {
	st, _ := teststore.NewStore()
	now := time.Unix(1_700_000_000, 0)

	seedSession(t, st, "user:stale", store.PhaseGatheringInfo, now.Add(-25*time.Hour))
	seedSession(t, st, "user:fresh", store.PhaseConfirming, now.Add(-time.Hour))
	seedSession(t, st, "user:idle-greeting", store.PhaseGreeting, now.Add(-48*time.Hour))

	runner := NewRunner(st, nil, nil, 24*time.Hour)
	runner.now = func() time.Time { return now }

	count, err := runner.ExpireSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stale, err := st.GetSessionByUserKey(context.Background(), "user:stale")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseGreeting, stale.Phase)
	assert.Empty(t, stale.Slots.ServiceCategory)

	fresh, err := st.GetSessionByUserKey(context.Background(), "user:fresh")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseConfirming, fresh.Phase)
	assert.Equal(t, "plumbing", fresh.Slots.ServiceCategory)
}

func TestStartRunsRedispatchImmediately(t *testing.T) {
	st, _ := teststore.NewStore()
	redispatcher := &fakeRedispatcher{}
	runner := NewRunner(st, redispatcher, nil, 24*time.Hour)

	require.NoError(t, runner.Start(context.Background()))
	runner.Stop()

	assert.GreaterOrEqual(t, redispatcher.callCount(), 1)
}
