package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopview/shopview/internal/cache"
	"github.com/shopview/shopview/internal/session"
)

// fakeClock is a manually-advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// countingLoader counts loads and returns a fixed document set or a
// configured error.
type countingLoader struct {
	docs  []session.Document
	err   error
	loads int
}

func (l *countingLoader) Load(
	_ context.Context,
) ([]session.Document, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return l.docs, nil
}

func TestGetFetchesOncePerWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	loader := &countingLoader{
		docs: []session.Document{{ID: "a"}, {ID: "b"}},
	}
	snap := cache.New(
		loader, 5*time.Minute, cache.WithClock(clock.now),
	)

	ctx := context.Background()
	first, err := snap.Get(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)

	clock.advance(4 * time.Minute)
	_, err = snap.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads)

	clock.advance(2 * time.Minute)
	_, err = snap.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.loads)
}

func TestGetNormalizes(t *testing.T) {
	loader := &countingLoader{
		docs: []session.Document{{ID: "a"}},
	}
	snap := cache.New(loader, time.Minute)

	table, err := snap.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, session.Unknown, table[0].Device)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	loader := &countingLoader{}
	snap := cache.New(loader, time.Hour)

	ctx := context.Background()
	_, err := snap.Get(ctx)
	require.NoError(t, err)
	_, err = snap.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads)

	snap.Invalidate()
	_, err = snap.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.loads)
}

func TestLoadErrorsAreNotCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("store down")}
	snap := cache.New(loader, time.Hour)

	ctx := context.Background()
	_, err := snap.Get(ctx)
	require.Error(t, err)

	// A later Get retries instead of serving the failure.
	loader.err = nil
	table, err := snap.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, table)
	assert.Equal(t, 2, loader.loads)
}

func TestFetchedAt(t *testing.T) {
	clock := &fakeClock{t: time.Unix(5000, 0)}
	snap := cache.New(
		&countingLoader{}, time.Minute, cache.WithClock(clock.now),
	)

	_, ok := snap.FetchedAt()
	assert.False(t, ok)

	_, err := snap.Get(context.Background())
	require.NoError(t, err)

	at, ok := snap.FetchedAt()
	assert.True(t, ok)
	assert.Equal(t, clock.t, at)
	assert.Equal(t, time.Minute, snap.TTL())
}

func TestLoaderFunc(t *testing.T) {
	called := false
	var loader cache.Loader = cache.LoaderFunc(
		func(context.Context) ([]session.Document, error) {
			called = true
			return nil, nil
		},
	)

	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
}
