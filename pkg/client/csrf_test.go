package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCSRFServer(t *testing.T, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := fetches.Add(1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"csrfToken":"tok-%d"}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func TestCSRFCache_FetchesAndCaches(t *testing.T) {
	srv, fetches := newCSRFServer(t, 0)
	cache := NewCSRFCache(New(Config{BaseURL: srv.URL}))
	ctx := context.Background()

	tok, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Second call is served from the cache.
	tok, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCSRFCache_ConcurrentCallersShareOneFetch(t *testing.T) {
	srv, fetches := newCSRFServer(t, 50*time.Millisecond)
	cache := NewCSRFCache(New(Config{BaseURL: srv.URL}))

	const callers = 10
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestCSRFCache_Peek(t *testing.T) {
	srv, _ := newCSRFServer(t, 0)
	cache := NewCSRFCache(New(Config{BaseURL: srv.URL}))

	assert.Empty(t, cache.Peek())

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok, cache.Peek())
}

func TestCSRFCache_InvalidateForcesRefetch(t *testing.T) {
	srv, fetches := newCSRFServer(t, 0)
	cache := NewCSRFCache(New(Config{BaseURL: srv.URL}))
	ctx := context.Background()

	_, err := cache.Token(ctx)
	require.NoError(t, err)

	cache.Invalidate()
	assert.Empty(t, cache.Peek())

	tok, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCSRFCache_FetchErrorNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cache := NewCSRFCache(New(Config{BaseURL: srv.URL}))

	_, err := cache.Token(context.Background())
	require.Error(t, err)
	assert.Empty(t, cache.Peek())
}
