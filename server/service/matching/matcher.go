// Package matching selects providers for a service request. Matching widens
// in tiers: exact zone first, then any zone, then an emergency contact list
// that ignores availability. A wider tier is tried only when the previous
// one produced no candidate at all.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fankam/depanneo/store"
)

// Tier identifies how far matching had to widen.
type Tier int

const (
	// TierZone matches available providers covering the request zone.
	TierZone Tier = 1
	// TierCategory matches available providers in any zone.
	TierCategory Tier = 2
	// TierEmergency matches providers for the category regardless of
	// availability. Candidates become a manual contact list.
	TierEmergency Tier = 3
)

// Weights control the scoring mix. They must sum to 1.
type Weights struct {
	Proximity    float64
	Rating       float64
	ResponseTime float64
}

// DefaultWeights favors proximity, then reputation, then speed.
var DefaultWeights = Weights{Proximity: 0.45, Rating: 0.35, ResponseTime: 0.20}

// Candidate is a scored provider.
type Candidate struct {
	Provider *store.Provider
	Score    float64
}

// MatchResult is the outcome of one matching pass.
type MatchResult struct {
	Tier       Tier
	Candidates []Candidate
	// Emergency is set on TierEmergency results: candidates are surfaced
	// to the requester as contacts to call, not dispatched to.
	Emergency bool
}

// Best returns the top candidate, or nil when the result is empty.
func (r *MatchResult) Best() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Top returns up to n top candidates.
func (r *MatchResult) Top(n int) []Candidate {
	if n > len(r.Candidates) {
		n = len(r.Candidates)
	}
	return r.Candidates[:n]
}

// Matcher scores and ranks providers for requests.
type Matcher struct {
	store   *store.Store
	weights Weights
}

// NewMatcher creates a matcher with the given weights. Zero weights fall
// back to the defaults.
func NewMatcher(st *store.Store, weights Weights) *Matcher {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &Matcher{store: st, weights: weights}
}

// Match runs the tiered pass for a category and zone.
func (m *Matcher) Match(ctx context.Context, category, zone string) (*MatchResult, error) {
	providers, err := m.store.ListProviders(ctx, &store.FindProvider{Category: &category})
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	if candidates := m.rank(filterTierZone(providers, zone), zone); len(candidates) > 0 {
		return &MatchResult{Tier: TierZone, Candidates: candidates}, nil
	}

	if candidates := m.rank(filterTierCategory(providers), zone); len(candidates) > 0 {
		slog.Info("no provider covers zone, widening to any zone",
			"category", category, "zone", zone)
		return &MatchResult{Tier: TierCategory, Candidates: candidates}, nil
	}

	candidates := m.rank(providers, zone)
	if len(candidates) > 0 {
		slog.Warn("no available provider, returning emergency contact list",
			"category", category, "zone", zone)
	}
	return &MatchResult{Tier: TierEmergency, Candidates: candidates, Emergency: true}, nil
}

func filterTierZone(providers []*store.Provider, zone string) []*store.Provider {
	out := make([]*store.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Available && p.CoversZone(zone) {
			out = append(out, p)
		}
	}
	return out
}

func filterTierCategory(providers []*store.Provider) []*store.Provider {
	out := make([]*store.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Available {
			out = append(out, p)
		}
	}
	return out
}

// rank scores providers and sorts them best first. Ties break on average
// response time, then on id, so repeated runs over the same data always
// produce the same order.
func (m *Matcher) rank(providers []*store.Provider, zone string) []Candidate {
	candidates := make([]Candidate, 0, len(providers))
	for _, p := range providers {
		candidates = append(candidates, Candidate{Provider: p, Score: m.score(p, zone)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Provider.AvgResponseMins != b.Provider.AvgResponseMins {
			return a.Provider.AvgResponseMins < b.Provider.AvgResponseMins
		}
		return a.Provider.ID < b.Provider.ID
	})
	return candidates
}

// maxResponseMins caps the response-time normalization; anything slower
// scores zero on that component.
const maxResponseMins = 120.0

func (m *Matcher) score(p *store.Provider, zone string) float64 {
	proximity := 0.3
	if p.Zone == zone {
		proximity = 1.0
	} else if p.CoversZone(zone) {
		proximity = 0.7
	}

	rating := p.Rating / 5.0
	if rating > 1 {
		rating = 1
	}

	response := p.AvgResponseMins
	if response > maxResponseMins {
		response = maxResponseMins
	}
	speed := 1.0 - response/maxResponseMins

	return m.weights.Proximity*proximity + m.weights.Rating*rating + m.weights.ResponseTime*speed
}
