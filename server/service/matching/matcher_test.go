package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fankam/depanneo/store"
	"github.com/fankam/depanneo/store/teststore"
)

func seedProvider(t *testing.T, st *store.Store, p *store.Provider) *store.Provider {
	t.Helper()
	created, err := st.CreateProvider(context.Background(), p)
	require.NoError(t, err)
	return created
}

func TestMatchPrefersProvidersInZone(t *testing.T) {
	st, _ := teststore.NewStore()
	inZone := seedProvider(t, st, &store.Provider{
		Name: "Mbarga Plomberie", Categories: []string{"plumbing"},
		Zone: "Bonamoussadi", Rating: 4.0, AvgResponseMins: 40, Available: true,
	})
	seedProvider(t, st, &store.Provider{
		Name: "Depann'Tout", Categories: []string{"plumbing"},
		Zone: "Akwa", Rating: 4.8, AvgResponseMins: 20, Available: true,
	})

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "plumbing", "Bonamoussadi")
	require.NoError(t, err)

	assert.Equal(t, TierZone, result.Tier)
	assert.False(t, result.Emergency)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, inZone.ID, result.Best().Provider.ID)
}

func TestMatchWidensToAnyZoneOnlyWhenZoneIsEmpty(t *testing.T) {
	st, _ := teststore.NewStore()
	farAway := seedProvider(t, st, &store.Provider{
		Name: "Tonton Electricite", Categories: []string{"electrical"},
		Zone: "Akwa", Rating: 4.5, AvgResponseMins: 30, Available: true,
	})

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "electrical", "Logbessou")
	require.NoError(t, err)

	assert.Equal(t, TierCategory, result.Tier)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, farAway.ID, result.Best().Provider.ID)
}

func TestMatchEmergencyTierIgnoresAvailability(t *testing.T) {
	st, _ := teststore.NewStore()
	seedProvider(t, st, &store.Provider{
		Name: "Cle Express", Categories: []string{"locksmith"},
		Zone: "Deido", Rating: 4.2, AvgResponseMins: 25, Available: false,
	})

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "locksmith", "Deido")
	require.NoError(t, err)

	assert.Equal(t, TierEmergency, result.Tier)
	assert.True(t, result.Emergency)
	require.Len(t, result.Candidates, 1)
}

func TestMatchNoProviderForCategory(t *testing.T) {
	st, _ := teststore.NewStore()

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "plumbing", "Akwa")
	require.NoError(t, err)

	assert.Equal(t, TierEmergency, result.Tier)
	assert.Empty(t, result.Candidates)
	assert.Nil(t, result.Best())
}

func TestCoverageZoneScoresBetweenHomeAndElsewhere(t *testing.T) {
	m := NewMatcher(nil, Weights{})

	home := m.score(&store.Provider{Zone: "Makepe", Rating: 4, AvgResponseMins: 30}, "Makepe")
	coverage := m.score(&store.Provider{Zone: "Akwa", CoverageZones: []string{"Makepe"}, Rating: 4, AvgResponseMins: 30}, "Makepe")
	elsewhere := m.score(&store.Provider{Zone: "Akwa", Rating: 4, AvgResponseMins: 30}, "Makepe")

	assert.Greater(t, home, coverage)
	assert.Greater(t, coverage, elsewhere)
}

func TestRankingIsDeterministicOnTies(t *testing.T) {
	st, _ := teststore.NewStore()
	// Same zone and rating; the faster responder must come first.
	fast := seedProvider(t, st, &store.Provider{
		Name: "Rapide", Categories: []string{"plumbing"},
		Zone: "Bali", Rating: 4.0, AvgResponseMins: 15, Available: true,
	})
	seedProvider(t, st, &store.Provider{
		Name: "Lent", Categories: []string{"plumbing"},
		Zone: "Bali", Rating: 4.0, AvgResponseMins: 60, Available: true,
	})

	matcher := NewMatcher(st, Weights{})
	for i := 0; i < 5; i++ {
		result, err := matcher.Match(context.Background(), "plumbing", "Bali")
		require.NoError(t, err)
		require.Len(t, result.Candidates, 2)
		assert.Equal(t, fast.ID, result.Best().Provider.ID)
	}
}

func TestEqualScoreTieBreaksOnID(t *testing.T) {
	st, _ := teststore.NewStore()
	first := seedProvider(t, st, &store.Provider{
		Name: "A", Categories: []string{"electrical"},
		Zone: "Kotto", Rating: 4.0, AvgResponseMins: 30, Available: true,
	})
	seedProvider(t, st, &store.Provider{
		Name: "B", Categories: []string{"electrical"},
		Zone: "Kotto", Rating: 4.0, AvgResponseMins: 30, Available: true,
	})

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "electrical", "Kotto")
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.Best().Provider.ID)
}

func TestTopLimitsCandidates(t *testing.T) {
	st, _ := teststore.NewStore()
	for _, name := range []string{"P1", "P2", "P3", "P4"} {
		seedProvider(t, st, &store.Provider{
			Name: name, Categories: []string{"plumbing"},
			Zone: "Ndokoti", Rating: 4.0, AvgResponseMins: 30, Available: true,
		})
	}

	result, err := NewMatcher(st, Weights{}).Match(context.Background(), "plumbing", "Ndokoti")
	require.NoError(t, err)
	assert.Len(t, result.Top(3), 3)
	assert.Len(t, result.Top(10), 4)
}
