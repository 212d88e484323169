// Package router layers health tracking and ordered fallback over a set of
// LLM backends. Callers see a single llm.Backend; the router tries the
// primary first, falls through to secondaries, and serves a static degraded
// result when every real backend is down, so a turn never fails outright
// because of a provider outage.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fankam/depanneo/plugin/llm"
	"github.com/fankam/depanneo/plugin/llm/timeout"
)

// Service routes generation calls across backends in priority order.
type Service struct {
	mu       sync.Mutex
	backends []llm.Backend
	health   map[string]*backendHealth
	static   llm.Backend
	degraded bool

	failureThreshold int
	cooldown         time.Duration
	quotaCooldown    time.Duration
	now              func() time.Time
}

type backendHealth struct {
	consecutiveFailures int
	unhealthyUntil      time.Time
}

// Config contains the configuration for the router service.
type Config struct {
	// Backends in fallback order, primary first.
	Backends []llm.Backend

	// FailureThreshold overrides the consecutive-failure limit. Zero uses
	// the default.
	FailureThreshold int
	// Cooldown overrides how long an unhealthy backend is skipped.
	Cooldown time.Duration
	// QuotaCooldown overrides the skip window after quota exhaustion.
	QuotaCooldown time.Duration
}

// NewService creates a new router service.
func NewService(cfg Config) *Service {
	s := &Service{
		backends:         cfg.Backends,
		health:           make(map[string]*backendHealth, len(cfg.Backends)),
		static:           llm.NewStaticBackend(),
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		quotaCooldown:    cfg.QuotaCooldown,
		now:              time.Now,
	}
	if s.failureThreshold <= 0 {
		s.failureThreshold = timeout.MaxConsecutiveFailures
	}
	if s.cooldown <= 0 {
		s.cooldown = timeout.FailureCooldown
	}
	if s.quotaCooldown <= 0 {
		s.quotaCooldown = timeout.QuotaCooldown
	}
	for _, b := range cfg.Backends {
		s.health[b.Name()] = &backendHealth{}
	}
	return s
}

func (s *Service) Name() string {
	return "router"
}

// Generate tries each healthy backend in order and falls back to the static
// backend when all of them fail. It returns an error only on context
// cancellation; provider outages degrade, they do not fail the call.
func (s *Service) Generate(ctx context.Context, task llm.TaskType, req *llm.Request) (*llm.Result, error) {
	for _, backend := range s.backends {
		if s.skip(backend.Name()) {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout.For(string(task)))
		result, err := backend.Generate(callCtx, task, req)
		cancel()

		if err == nil {
			s.markSuccess(backend.Name())
			if result.Backend == "" {
				result.Backend = backend.Name()
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.markFailure(backend.Name(), err)
		slog.Warn("llm backend failed, trying next",
			"backend", backend.Name(),
			"task", task,
			"error", err)
	}

	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()

	slog.Warn("all llm backends unavailable, serving static result", "task", task)
	return s.static.Generate(ctx, task, req)
}

// Degraded reports whether the last call was served by the static backend.
// It clears once a real backend succeeds again.
func (s *Service) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// skip reports whether the backend is currently marked unhealthy. Once the
// cooldown elapses the backend gets probed again on the next call.
func (s *Service) skip(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.health[name]
	if h == nil {
		return false
	}
	return s.now().Before(h.unhealthyUntil)
}

func (s *Service) markSuccess(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.health[name]; h != nil {
		h.consecutiveFailures = 0
		h.unhealthyUntil = time.Time{}
	}
	s.degraded = false
}

func (s *Service) markFailure(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.health[name]
	if h == nil {
		h = &backendHealth{}
		s.health[name] = h
	}
	h.consecutiveFailures++

	if isQuotaExhausted(err) {
		// No point hammering a provider that ran out of quota.
		h.unhealthyUntil = s.now().Add(s.quotaCooldown)
		slog.Warn("llm backend quota exhausted",
			"backend", name,
			"retry_after", s.quotaCooldown)
		return
	}
	if h.consecutiveFailures >= s.failureThreshold {
		h.unhealthyUntil = s.now().Add(s.cooldown)
		slog.Warn("llm backend marked unhealthy",
			"backend", name,
			"consecutive_failures", h.consecutiveFailures,
			"retry_after", s.cooldown)
	}
}

// isQuotaExhausted reports whether the error indicates billing or rate-limit
// exhaustion rather than a transient failure.
func isQuotaExhausted(err error) bool {
	var backendErr *llm.BackendError
	if !errors.As(err, &backendErr) {
		return false
	}
	switch backendErr.StatusCode {
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return true
	}
	return false
}

var _ llm.Backend = (*Service)(nil)
