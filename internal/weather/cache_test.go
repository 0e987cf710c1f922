package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/ecocharge/internal/engine"
)

type fakeSource struct {
	calls int32
	delay time.Duration
	err   error
}

func (f *fakeSource) Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return engine.ForecastSeries{{Time: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), Solar: lat}}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestCache(src Source, ttl time.Duration) (*CachedSource, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)}
	c := NewCachedSource(src, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCachedSourceServesWithinTTL(t *testing.T) {
	src := &fakeSource{}
	c, clock := newTestCache(src, 15*time.Minute)
	ctx := context.Background()

	_, err := c.Fetch(ctx, 19.07, 72.87, 72)
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = c.Fetch(ctx, 19.07, 72.87, 72)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls)

	clock.Advance(time.Minute)
	_, err = c.Fetch(ctx, 19.07, 72.87, 72)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls, "expired entry must be refetched")

	hits, misses := c.CacheStats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestCachedSourceKeys(t *testing.T) {
	src := &fakeSource{}
	c, _ := newTestCache(src, time.Hour)
	ctx := context.Background()

	c.Fetch(ctx, 19.07, 72.87, 72)
	c.Fetch(ctx, 19.07, 72.87, 48)
	c.Fetch(ctx, 51.5, 72.87, 72)
	c.Fetch(ctx, 19.07, 72.87, 72)

	assert.Equal(t, int32(3), src.calls)
	assert.Equal(t, 3, c.Len())
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	src := &fakeSource{err: &UpstreamError{Op: "fetching", Err: errors.New("boom")}}
	c, _ := newTestCache(src, time.Hour)

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), 1, 2, 72)
		assert.True(t, IsUpstream(err))
	}
	assert.Equal(t, int32(2), src.calls)
	assert.Equal(t, 0, c.Len())
}

func TestCachedSourceConcurrentMissesFetchOnce(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	c, _ := newTestCache(src, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := c.Fetch(context.Background(), 1, 2, 72)
			assert.NoError(t, err)
			assert.Len(t, series, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

// gatedSource blocks each fetch until release is closed or its context ends
type gatedSource struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return engine.ForecastSeries{{Time: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), Solar: lat}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedSourceFillSurvivesCallerCancel(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	c, _ := newTestCache(src, time.Hour)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, 1, 1, 72)
		errA <- err
	}()
	<-src.started

	type result struct {
		series engine.ForecastSeries
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		series, err := c.Fetch(context.Background(), 1, 1, 72)
		resB <- result{series, err}
	}()
	// let the second caller join the in-flight fetch
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(src.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.series, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
	assert.Equal(t, 1, c.Len())
}

func TestCachedSourcePrune(t *testing.T) {
	src := &fakeSource{}
	c, clock := newTestCache(src, 10*time.Minute)
	ctx := context.Background()

	c.Fetch(ctx, 1, 1, 72)
	clock.Advance(6 * time.Minute)
	c.Fetch(ctx, 2, 2, 72)
	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Prune())
}
