package carddata

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPProvider(HTTPConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000, // don't pace tests
		MaxRetries:        2,
	})
}

func TestHTTPProvider_Lookup(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/named", r.URL.Path)
		assert.Equal(t, "Llanowar Elves", r.URL.Query().Get("fuzzy"))
		w.Write([]byte(`{"name":"Llanowar Elves","mana_cost":"{G}","type_line":"Creature — Elf Druid"}`))
	})

	card, err := p.Lookup(context.Background(), "Llanowar Elves")
	require.NoError(t, err)
	assert.Equal(t, "Llanowar Elves", card.Name)
	assert.Equal(t, "{G}", card.ManaCost)
}

func TestHTTPProvider_NotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"object":"error","code":"not_found"}`, http.StatusNotFound)
	})

	_, err := p.Lookup(context.Background(), "No Such Card")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPProvider_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"name":"Forest","type_line":"Basic Land — Forest"}`))
	})

	card, err := p.Lookup(context.Background(), "Forest")
	require.NoError(t, err)
	assert.Equal(t, "Forest", card.Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPProvider_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusInternalServerError)
	})

	_, err := p.Lookup(context.Background(), "Forest")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func openCacheDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// countingProvider wraps a fixed result and counts Lookup calls.
type countingProvider struct {
	calls atomic.Int32
	card  *Card
	err   error
}

func (p *countingProvider) Lookup(ctx context.Context, hint string) (*Card, error) {
	p.calls.Add(1)
	return p.card, p.err
}

func TestCachingProvider_CachesPositiveResult(t *testing.T) {
	cache, err := NewCache(openCacheDB(t), 0)
	require.NoError(t, err)

	inner := &countingProvider{card: &Card{Name: "Mountain"}}
	p := NewCachingProvider(inner, cache, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		card, err := p.Lookup(ctx, "Mountain")
		require.NoError(t, err)
		assert.Equal(t, "Mountain", card.Name)
	}
	assert.Equal(t, int32(1), inner.calls.Load(), "only the first lookup hits the network")
}

func TestCachingProvider_CachesNotFound(t *testing.T) {
	cache, err := NewCache(openCacheDB(t), 0)
	require.NoError(t, err)

	inner := &countingProvider{err: ErrNotFound}
	p := NewCachingProvider(inner, cache, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := p.Lookup(ctx, "Bogus")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachingProvider_DoesNotCacheTransportErrors(t *testing.T) {
	cache, err := NewCache(openCacheDB(t), 0)
	require.NoError(t, err)

	inner := &countingProvider{err: errors.New("connection refused")}
	p := NewCachingProvider(inner, cache, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := p.Lookup(ctx, "Island")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load(), "transport errors retry the network")
}
