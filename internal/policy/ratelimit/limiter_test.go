package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
)

func TestLimiterWaitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 is one token every 100ms.
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://site.test/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://site.test/b"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://one.test/"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://two.test/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.test/"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://slow.test/"))
}

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	assert.False(t, cfg.Enabled())
	l := New(cfg)
	for range 100 {
		require.NoError(t, l.Wait(context.Background(), "https://site.test/"))
	}
}

type stubTransport struct{ calls int }

func (s *stubTransport) Do(_ context.Context, req fetchcache.Request) (fetchcache.Response, error) {
	s.calls++
	return fetchcache.Response{FinalURL: req.URL, StatusCode: 200}, nil
}

func TestTransportStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	next := &stubTransport{}
	tr := Wrap(next, New(Config{RPS: 0.01, Burst: 1}))

	resp, err := tr.Do(context.Background(), fetchcache.Request{URL: "https://site.test/"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Do(ctx, fetchcache.Request{URL: "https://site.test/"})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}
