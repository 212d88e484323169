// Package cleanup runs the periodic maintenance sweeps: logical session
// expiry, redelivery of notification attempts left behind by a restart, and
// pruning of idle rate limiters.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fankam/depanneo/server/middleware"
	"github.com/fankam/depanneo/store"
)

// Redispatcher restarts delivery for notification attempts that are due.
type Redispatcher interface {
	RedispatchDue(ctx context.Context) (int, error)
}

// Runner schedules the sweeps on a cron.
type Runner struct {
	store        *store.Store
	redispatcher Redispatcher
	limiter      *middleware.RateLimiter
	inactivity   time.Duration

	cron *cron.Cron
	now  func() time.Time
}

// NewRunner creates a cleanup runner. The limiter may be nil.
func NewRunner(st *store.Store, redispatcher Redispatcher, limiter *middleware.RateLimiter, inactivity time.Duration) *Runner {
	return &Runner{
		store:        st,
		redispatcher: redispatcher,
		limiter:      limiter,
		inactivity:   inactivity,
		cron:         cron.New(),
		now:          time.Now,
	}
}

// Start registers the sweeps and starts the scheduler. The redispatch sweep
// also runs once immediately so attempts orphaned by a restart are picked up
// without waiting a full minute.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc("* * * * *", func() { r.redispatch(ctx) }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("*/10 * * * *", func() { r.expireSessions(ctx) }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("0 * * * *", func() { r.pruneLimiters() }); err != nil {
		return err
	}

	r.redispatch(ctx)
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) redispatch(ctx context.Context) {
	if r.redispatcher == nil {
		return
	}
	restarted, err := r.redispatcher.RedispatchDue(ctx)
	if err != nil {
		slog.Error("redispatch sweep failed", "error", err)
		return
	}
	if restarted > 0 {
		slog.Info("redispatched due notification attempts", "count", restarted)
	}
}

func (r *Runner) expireSessions(ctx context.Context) {
	count, err := r.ExpireSessions(ctx)
	if err != nil {
		slog.Error("session expiry sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("expired idle sessions", "count", count)
	}
}

// ExpireSessions logically resets every session idle past the inactivity
// window. Sessions already back at the greeting phase are skipped.
func (r *Runner) ExpireSessions(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.inactivity).Unix()
	greeting := store.PhaseGreeting
	sessions, err := r.store.ListSessions(ctx, &store.FindSession{
		LastActivityBefore: &cutoff,
		ExcludePhase:       &greeting,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, session := range sessions {
		session.Reset()
		if _, err := r.store.UpsertSession(ctx, session); err != nil {
			slog.Error("failed to reset expired session",
				"user_key", session.UserKey,
				"error", err)
			continue
		}
		count++
	}
	return count, nil
}

func (r *Runner) pruneLimiters() {
	if r.limiter == nil {
		return
	}
	if pruned := r.limiter.Prune(); pruned > 0 {
		slog.Info("pruned idle rate limiters", "count", pruned)
	}
}
