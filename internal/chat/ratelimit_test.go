package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a Limiter deterministically: sleeping advances the
// clock instead of blocking.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(window)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestAdmitFirstRequestImmediate(t *testing.T) {
	l, _ := newTestLimiter(30 * time.Second)

	delay, err := l.Admit(context.Background(), "a")
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestAdmitEnforcesFloorBetweenStarts(t *testing.T) {
	l, clock := newTestLimiter(30 * time.Second)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)

	// Second request 10s later must wait the remaining 20s.
	clock.Advance(10 * time.Second)
	delay, err := l.Admit(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, delay)

	// The timestamp was written at admission time, so a request arriving
	// right after the second one admits must wait the full window.
	delay, err = l.Admit(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, delay)
}

func TestAdmitAfterWindowElapsed(t *testing.T) {
	l, clock := newTestLimiter(30 * time.Second)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	delay, err := l.Admit(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestAdmitIdentitiesDoNotDelayEachOther(t *testing.T) {
	l, clock := newTestLimiter(30 * time.Second)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)

	clock.Advance(time.Second)
	delay, err := l.Admit(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, delay, "b must not inherit a's throttle state")
}

func TestEvictStaleEntries(t *testing.T) {
	l, clock := newTestLimiter(30 * time.Second)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)
	_, err = l.Admit(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	// Entries older than two windows are reaped on the next admission.
	clock.Advance(61 * time.Second)
	_, err = l.Admit(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestEvictionDoesNotAffectCurrentIdentity(t *testing.T) {
	l, clock := newTestLimiter(30 * time.Second)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	// a's own entry is stale and gets evicted, but a is simply admitted
	// fresh; eviction is housekeeping, not an admission decision.
	delay, err := l.Admit(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, delay)
	assert.Equal(t, 1, l.Len())
}

func TestAdmitCancelledWait(t *testing.T) {
	l := NewLimiter(time.Hour)
	ctx := context.Background()

	_, err := l.Admit(ctx, "a")
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Admit(cancelCtx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdmitConcurrentSameIdentity(t *testing.T) {
	// Real clock, short window: two concurrent calls from one identity
	// must start at least a window apart.
	const window = 50 * time.Millisecond
	l := NewLimiter(window)
	ctx := context.Background()

	starts := make(chan time.Time, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Admit(ctx, "same")
			require.NoError(t, err)
			starts <- time.Now()
		}()
	}
	wg.Wait()
	close(starts)

	var times []time.Time
	for ts := range starts {
		times = append(times, ts)
	}
	require.Len(t, times, 2)

	gap := times[1].Sub(times[0])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, window-5*time.Millisecond,
		"concurrent admissions from the same identity must be spaced by the window")
}

func TestNewLimiterDefaultWindow(t *testing.T) {
	l := NewLimiter(0)
	assert.Equal(t, DefaultThrottleWindow, l.Window())
}
