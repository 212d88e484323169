// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Conversations are human-paced: a user key sending faster than this is a
// runaway integration, not a person typing.
const (
	messagesPerSecond = 1
	messageBurst      = 5
)

// staleAfter is how long an idle limiter is kept before pruning.
const staleAfter = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles inbound messages per user key.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*limiterEntry)}
}

// Allow reports whether a message from the user key may be processed now.
func (rl *RateLimiter) Allow(userKey string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[userKey]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst)}
		rl.entries[userKey] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Prune drops limiters for user keys idle longer than an hour. Called
// periodically by the cleanup runner.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	pruned := 0
	for key, entry := range rl.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
			pruned++
		}
	}
	return pruned
}
