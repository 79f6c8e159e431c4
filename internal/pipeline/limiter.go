package pipeline

// limiter.go bounds how many runs process at once. A run holds the whole
// file in memory and can spend minutes in API backoff, so an unbounded
// number of parallel runs exhausts memory under load. When every slot is
// occupied, new runs wait up to maxWait before failing with ErrTooManyRuns.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when all run slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent processing runs, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunLimiter controls concurrent run processing with a semaphore.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewRunLimiter creates a limiter allowing at most maxConcurrent
// simultaneous runs. Non-positive arguments fall back to the defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire claims a run slot. Returns nil on success, ErrTooManyRuns when
// the wait timeout expires, or the context error when ctx is cancelled.
// The caller must Release when the run completes.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
}

// Release frees a run slot.
func (l *RunLimiter) Release() {
	select {
	case <-l.semaphore:
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
	default:
	}
}

// Active reports how many runs currently hold a slot.
func (l *RunLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}
