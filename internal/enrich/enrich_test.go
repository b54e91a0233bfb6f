package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtgalog/mtgalog-go/internal/carddata"
)

// fakeProvider resolves hints with controllable latency.
type fakeProvider struct {
	mu      sync.Mutex
	delay   time.Duration
	calls   atomic.Int32
	cards   map[string]*carddata.Card
	errs    map[string]error
	release chan struct{} // when non-nil, lookups block until closed
}

func (f *fakeProvider) Lookup(ctx context.Context, hint string) (*carddata.Card, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[hint]; ok {
		return nil, err
	}
	if c, ok := f.cards[hint]; ok {
		return c, nil
	}
	return nil, carddata.ErrNotFound
}

func collectResult(t *testing.T, results <-chan Result, timeout time.Duration) Result {
	t.Helper()
	select {
	case res, ok := <-results:
		require.True(t, ok, "results channel closed unexpectedly")
		return res
	case <-time.After(timeout):
		t.Fatal("timeout waiting for enrichment result")
		return Result{}
	}
}

func TestPipeline_Lookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &fakeProvider{cards: map[string]*carddata.Card{
		"Grizzly Bears": {Name: "Grizzly Bears", TypeLine: "Creature — Bear"},
	}}
	p := New(provider, Config{})
	p.Start(ctx)
	defer p.Close()

	require.True(t, p.Submit(ctx, Request{ObjectID: 7, Hint: "Grizzly Bears"}))

	res := collectResult(t, p.Results(), 2*time.Second)
	assert.Equal(t, 7, res.ObjectID)
	require.NoError(t, res.Err)
	assert.Equal(t, "Grizzly Bears", res.Card.Name)
}

func TestPipeline_NotFoundIsAResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(&fakeProvider{}, Config{})
	p.Start(ctx)
	defer p.Close()

	require.True(t, p.Submit(ctx, Request{ObjectID: 1, Hint: "Nonexistent"}))

	res := collectResult(t, p.Results(), 2*time.Second)
	assert.ErrorIs(t, res.Err, carddata.ErrNotFound)
	assert.Nil(t, res.Card)
}

func TestPipeline_DeduplicatesInFlightHints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	provider := &fakeProvider{
		cards:   map[string]*carddata.Card{"Forest": {Name: "Forest"}},
		release: release,
	}
	p := New(provider, Config{Workers: 2})
	p.Start(ctx)
	defer p.Close()

	// Three objects reference the same card while its lookup is blocked.
	require.True(t, p.Submit(ctx, Request{ObjectID: 1, Hint: "Forest"}))
	time.Sleep(50 * time.Millisecond) // let a worker pick it up
	require.True(t, p.Submit(ctx, Request{ObjectID: 2, Hint: "Forest"}))
	require.True(t, p.Submit(ctx, Request{ObjectID: 3, Hint: "Forest"}))
	close(release)

	got := map[int]bool{}
	for i := 0; i < 3; i++ {
		res := collectResult(t, p.Results(), 2*time.Second)
		require.NoError(t, res.Err)
		assert.Equal(t, "Forest", res.Card.Name)
		got[res.ObjectID] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, got)
	assert.Equal(t, int32(1), provider.calls.Load(), "one network call serves all waiters")
}

func TestPipeline_SubmitDropsWhenQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	provider := &fakeProvider{release: release}

	p := New(provider, Config{Workers: 1, QueueSize: 1, SubmitWait: 20 * time.Millisecond})
	p.Start(ctx)
	defer p.Close()
	defer close(release) // unblock the pool before Close waits on it

	// First request occupies the worker, second fills the queue.
	require.True(t, p.Submit(ctx, Request{ObjectID: 1, Hint: "a"}))
	time.Sleep(50 * time.Millisecond)
	require.True(t, p.Submit(ctx, Request{ObjectID: 2, Hint: "b"}))

	// Queue is now full; this submit must give up within the bound.
	start := time.Now()
	ok := p.Submit(ctx, Request{ObjectID: 3, Hint: "c"})
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPipeline_DroppedHintCanBeResubmitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	provider := &fakeProvider{
		cards:   map[string]*carddata.Card{"c": {Name: "c"}},
		release: release,
	}
	p := New(provider, Config{Workers: 1, QueueSize: 1, SubmitWait: 20 * time.Millisecond})
	p.Start(ctx)
	defer p.Close()

	require.True(t, p.Submit(ctx, Request{ObjectID: 1, Hint: "a"}))
	time.Sleep(50 * time.Millisecond)
	require.True(t, p.Submit(ctx, Request{ObjectID: 2, Hint: "b"}))
	require.False(t, p.Submit(ctx, Request{ObjectID: 3, Hint: "c"}))

	// Unblock the pool, then the dropped hint must be accepted afresh.
	close(release)
	require.Eventually(t, func() bool {
		return p.Submit(ctx, Request{ObjectID: 4, Hint: "c"})
	}, 2*time.Second, 20*time.Millisecond)

	for {
		res := collectResult(t, p.Results(), 2*time.Second)
		if res.ObjectID == 4 {
			require.NoError(t, res.Err)
			assert.Equal(t, "c", res.Card.Name)
			return
		}
	}
}

func TestPipeline_CloseDrainsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &fakeProvider{cards: map[string]*carddata.Card{"x": {Name: "x"}}}
	p := New(provider, Config{Workers: 2})
	p.Start(ctx)

	require.True(t, p.Submit(ctx, Request{ObjectID: 1, Hint: "x"}))
	res := collectResult(t, p.Results(), 2*time.Second)
	assert.Equal(t, 1, res.ObjectID)

	p.Close()
	p.Close() // idempotent

	_, ok := <-p.Results()
	assert.False(t, ok, "results channel closes after Close")
}
