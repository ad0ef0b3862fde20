package chat

import (
	"context"
	"sync"
	"time"
)

// DefaultThrottleWindow is the minimum spacing between two admitted
// requests from the same client identity.
const DefaultThrottleWindow = 30 * time.Second

// Limiter enforces a hard floor of one window between the starts of
// processing for a given client identity. Callers from different
// identities never contend with each other; concurrent callers from the
// same identity serialize on that identity's entry.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	window  time.Duration

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type limiterEntry struct {
	mu   sync.Mutex
	last time.Time
	// gone marks an entry removed from the map by eviction, so a racing
	// Admit that already holds a reference knows to start over.
	gone bool
}

// NewLimiter creates a Limiter with the given throttle window. A zero or
// negative window falls back to the default.
func NewLimiter(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Limiter{
		entries: make(map[string]*limiterEntry),
		window:  window,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Window returns the configured throttle window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Admit blocks until the client identified by key may start processing,
// and returns the delay that was enforced. The identity's timestamp is
// written at admission time, not arrival time, so the floor holds between
// starts of processing. The wait aborts if ctx is cancelled.
func (l *Limiter) Admit(ctx context.Context, key string) (time.Duration, error) {
	for {
		e := l.lookupOrCreate(key)

		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}

		delay, err := l.admitLocked(ctx, e)
		e.mu.Unlock()
		return delay, err
	}
}

// admitLocked enforces the floor for one entry. e.mu must be held; it stays
// held across the sleep so a second concurrent call from the same identity
// observes this call's admission timestamp.
func (l *Limiter) admitLocked(ctx context.Context, e *limiterEntry) (time.Duration, error) {
	var delay time.Duration
	if !e.last.IsZero() {
		if elapsed := l.now().Sub(e.last); elapsed < l.window {
			delay = l.window - elapsed
		}
	}

	if delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			return 0, err
		}
	}

	e.last = l.now()
	return delay, nil
}

// lookupOrCreate returns the entry for key, evicting stale entries first.
// Map access is brief; the per-entry lock is never taken while l.mu is
// held, so identities do not contend with each other here.
func (l *Limiter) lookupOrCreate(key string) *limiterEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictStale()

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{}
		l.entries[key] = e
	}
	return e
}

// evictStale drops entries last admitted more than two windows ago, to
// bound memory. TryLock skips entries with an in-flight admission; a
// waiter holds its entry lock for at most one window, well inside the
// two-window staleness threshold. Entries that never reached admission
// (zero timestamp) are kept until their first admission refreshes them.
func (l *Limiter) evictStale() {
	cutoff := l.now().Add(-2 * l.window)
	for key, e := range l.entries {
		if !e.mu.TryLock() {
			continue
		}
		if !e.last.IsZero() && e.last.Before(cutoff) {
			e.gone = true
			delete(l.entries, key)
		}
		e.mu.Unlock()
	}
}

// Len reports the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
