package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles sensitive operations (login, registration) per
// identifier. It is an injected component with its own state and lifecycle
// rather than process-wide mutable maps, so it can be reset deterministically
// in tests and swapped for a shared implementation later.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows maxAttempts per identifier within the window, with
// tokens refilling evenly across it.
func NewRateLimiter(window time.Duration, maxAttempts int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(maxAttempts)),
		burst:    maxAttempts,
	}
}

// Allow reports whether the identifier may attempt now, consuming one token
// when it may.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[identifier]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[identifier] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Reset clears the identifier's attempt history, e.g. after a successful login.
func (rl *RateLimiter) Reset(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, identifier)
}

// Janitor prunes idle identifiers every interval until ctx is cancelled. It
// blocks, so run it on its own goroutine alongside the server.
func (rl *RateLimiter) Janitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune(maxIdle)
		}
	}
}

// Prune drops identifiers idle for longer than maxIdle to bound memory.
func (rl *RateLimiter) Prune(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for id, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
		}
	}
}
