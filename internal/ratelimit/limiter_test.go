package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckLimitFixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 3; i++ {
		res := l.CheckLimit("justtcg", 3, time.Minute)
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res := l.CheckLimit("justtcg", 3, time.Minute)
	assert.False(t, res.Allowed, "4th request should be rejected")
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)

	// other providers are independent
	assert.True(t, l.CheckLimit("ebay", 3, time.Minute).Allowed)

	clock.Advance(time.Minute)
	res = l.CheckLimit("justtcg", 3, time.Minute)
	assert.True(t, res.Allowed, "a fresh window opens once resetAt passes")
	assert.Equal(t, 2, res.Remaining)
}

func TestSetRateLimitedBlocksUntilReset(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	resetAt := clock.Now().Add(30 * time.Second)
	l.SetRateLimited("tracker", resetAt)

	res := l.CheckLimit("tracker", 1000, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, resetAt, res.ResetAt)

	isBlocked, until := l.IsBlocked("tracker")
	assert.True(t, isBlocked)
	assert.Equal(t, resetAt, until)

	snap := l.Snapshot()
	assert.True(t, snap["tracker"].Blocked)

	clock.Advance(31 * time.Second)
	isBlocked, _ = l.IsBlocked("tracker")
	assert.False(t, isBlocked)
	assert.True(t, l.CheckLimit("tracker", 1000, time.Minute).Allowed)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"delta seconds", "120", now.Add(2 * time.Minute)},
		{"http date", "Fri, 01 Mar 2024 12:05:00 GMT", now.Add(5 * time.Minute)},
		{"past date clamps to now", "Fri, 01 Mar 2024 11:00:00 GMT", now},
		{"missing uses fallback", "", now.Add(time.Minute)},
		{"garbage uses fallback", "soon", now.Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, now, time.Minute))
		})
	}
}

func TestQueueRunsInSubmissionOrder(t *testing.T) {
	q := NewQueue("test", 0)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Submit sequentially so submission order is well defined, but wait
	// for completion concurrently.
	started := make(chan struct{})
	release := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	<-started

	for i := 1; i <= 3; i++ {
		i := i
		done := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(done)
			_ = q.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		<-done
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestQueueDelaysAfterFailure(t *testing.T) {
	q := NewQueue("test", 40*time.Millisecond)
	defer q.Close()

	boom := errors.New("boom")
	err := q.Do(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	start := time.Now()
	err = q.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestQueueRecoversPanics(t *testing.T) {
	q := NewQueue("test", 0)
	defer q.Close()

	err := q.Do(context.Background(), func(ctx context.Context) error { panic("bad adapter") })
	assert.Error(t, err)

	// worker survives
	assert.NoError(t, q.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue("test", 0)
	q.Close()
	err := q.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestSpacingGate(t *testing.T) {
	clock := newFakeClock()
	var slept []time.Duration

	g := NewSpacingGate(time.Second)
	g.now = clock.Now
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.Advance(d)
		return nil
	}

	require.NoError(t, g.Wait(context.Background()))
	assert.Empty(t, slept, "first call passes immediately")

	clock.Advance(300 * time.Millisecond)
	require.NoError(t, g.Wait(context.Background()))
	assert.Equal(t, []time.Duration{700 * time.Millisecond}, slept)

	clock.Advance(2 * time.Second)
	require.NoError(t, g.Wait(context.Background()))
	assert.Len(t, slept, 1, "no sleep once the spacing has elapsed")
}

func TestPoliteWaitHonoursContext(t *testing.T) {
	p := NewPolite("scraper", time.Hour, 1)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx))
}
