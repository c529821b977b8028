package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheKeyCanonicalForm(t *testing.T) {
	t.Parallel()

	a := CacheKey{Op: "events", Params: map[string]string{"category": "music", "city": "sydney"}}
	b := CacheKey{Op: "events", Params: map[string]string{"city": "sydney", "category": "music"}}
	require.Equal(t, a.String(), b.String())
	require.Equal(t, "events|category=music|city=sydney|", a.String())

	// Plural list op must not prefix-match the singular item op.
	list := CacheKey{Op: "events"}.String()
	item := CacheKey{Op: "event", Params: map[string]string{"id": "42"}}.String()
	require.NotContains(t, item, list)
}

func TestCacheFetchWithinTTLSkipsLoader(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)
	key := CacheKey{Op: "events", Params: map[string]string{"category": "music"}}

	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "payload", nil
	}

	got, err := cache.Fetch(context.Background(), key, time.Minute, loader)
	require.NoError(t, err)
	require.Equal(t, "payload", got)

	got, err = cache.Fetch(context.Background(), key, time.Minute, loader)
	require.NoError(t, err)
	require.Equal(t, "payload", got)
	require.EqualValues(t, 1, calls.Load())
}

func TestCacheFetchReloadsAfterTTL(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)
	key := CacheKey{Op: "events"}

	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	got, err := cache.Fetch(context.Background(), key, 10*time.Millisecond, loader)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	time.Sleep(20 * time.Millisecond)

	got, err = cache.Fetch(context.Background(), key, 10*time.Millisecond, loader)
	require.NoError(t, err)
	require.Equal(t, 2, got)
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)
	key := CacheKey{Op: "events", Params: map[string]string{"category": "music"}}

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]any, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cache.Fetch(context.Background(), key, time.Minute, loader)
		}()
	}

	// Let every worker reach the flight before the loader returns.
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, "shared", results[i])
	}
}

func TestCacheLoadSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)
	key := CacheKey{Op: "events"}

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return "payload", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := cache.Fetch(ctx, key, time.Minute, loader)
		errc <- err
	}()

	// Cancel the winning caller while its load is in flight.
	<-entered
	cancel()
	close(release)
	require.NoError(t, <-errc)

	// The payload was stored; later fetches hit the cache.
	got, err := cache.Fetch(context.Background(), key, time.Minute, loader)
	require.NoError(t, err)
	require.Equal(t, "payload", got)
	require.EqualValues(t, 1, calls.Load())
}

func TestCacheLoaderErrorNotCached(t *testing.T) {
	t.Parallel()

	notify := NewNotificationStore()
	defer notify.Close()

	cache := NewQueryCache(notify, nil)
	key := CacheKey{Op: "events"}

	boom := errors.New("backend down")
	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "recovered", nil
	}

	_, err := cache.Fetch(context.Background(), key, time.Minute, loader)
	require.ErrorIs(t, err, boom)
	require.Zero(t, cache.Len())
	require.Len(t, notify.List(), 1)

	got, err := cache.Fetch(context.Background(), key, time.Minute, loader)
	require.NoError(t, err)
	require.Equal(t, "recovered", got)
}

func TestCacheInvalidateByPrefix(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)

	listMusic := CacheKey{Op: "events", Params: map[string]string{"category": "music"}}
	listAll := CacheKey{Op: "events"}
	item := CacheKey{Op: "event", Params: map[string]string{"id": "42"}}

	stale := func(ctx context.Context) (any, error) { return "stale", nil }
	for _, key := range []CacheKey{listMusic, listAll, item} {
		_, err := cache.Fetch(context.Background(), key, time.Minute, stale)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	cache.InvalidateOp(OpEvents)
	require.Equal(t, 1, cache.Len())

	// Item entry for the singular op survives a plural-op invalidation.
	got, err := cache.Fetch(context.Background(), item, time.Minute, func(ctx context.Context) (any, error) {
		t.Fatal("item loader must not run")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "stale", got)

	// List fetches after invalidation never see the old payload.
	got, err = cache.Fetch(context.Background(), listMusic, time.Minute, func(ctx context.Context) (any, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", got)
}

func TestCacheInvalidateIdempotent(t *testing.T) {
	t.Parallel()

	cache := NewQueryCache(nil, nil)
	cache.InvalidateOp(OpEvents)
	cache.InvalidateOp(OpEvents)
	require.Zero(t, cache.Len())
}
