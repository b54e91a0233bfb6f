// Package enrich decouples network-bound card lookups from the synchronous
// log ingestion path.
//
// A bounded request queue feeds a fixed pool of workers; completions come
// back on a results channel in whatever order lookups finish. The ingestion
// path is the sole producer of requests and must never stall on enrichment:
// Submit waits at most a short bound when the queue is full and then gives
// up, letting the caller emit its annotation with a placeholder instead.
package enrich

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/carddata"
)

// Defaults for pipeline sizing.
const (
	DefaultWorkers    = 4
	DefaultQueueSize  = 64
	DefaultSubmitWait = 50 * time.Millisecond
)

// Request asks for card details for one game object.
type Request struct {
	ObjectID    int
	Hint        string
	RequestedAt time.Time
}

// Result carries the lookup outcome back to the presentation side.
// Card is nil when Err is set; Err may be carddata.ErrNotFound.
type Result struct {
	ObjectID int
	Hint     string
	Card     *carddata.Card
	Err      error
}

// Config sizes the pipeline.
type Config struct {
	Workers    int
	QueueSize  int
	SubmitWait time.Duration
	Logger     *slog.Logger
}

// Pipeline owns the worker pool and the in-flight deduplication table.
type Pipeline struct {
	provider carddata.Provider
	cfg      Config
	log      *slog.Logger

	requests chan Request
	results  chan Result

	// inflight maps a hint to the object ids waiting on its lookup. The
	// mutex guards only map membership; lookups run outside it, so one
	// slow key never serializes the others.
	mu       sync.Mutex
	inflight map[string][]int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a Pipeline. Call Start before Submit.
func New(provider carddata.Provider, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SubmitWait <= 0 {
		cfg.SubmitWait = DefaultSubmitWait
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		provider: provider,
		cfg:      cfg,
		log:      log,
		requests: make(chan Request, cfg.QueueSize),
		results:  make(chan Result, cfg.QueueSize),
		inflight: make(map[string][]int),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Results returns the completion channel. Closed by Close.
func (p *Pipeline) Results() <-chan Result { return p.results }

// Submit enqueues a lookup request. Returns false when the request was
// dropped: queue full past the bounded wait, or ctx done. A request whose
// hint is already in flight attaches to the pending lookup and shares its
// result instead of consuming queue space.
//
// Submit must only be called from the single ingestion goroutine, and not
// after Close.
func (p *Pipeline) Submit(ctx context.Context, req Request) bool {
	p.mu.Lock()
	if ids, ok := p.inflight[req.Hint]; ok {
		p.inflight[req.Hint] = append(ids, req.ObjectID)
		p.mu.Unlock()
		return true
	}
	p.inflight[req.Hint] = []int{req.ObjectID}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.SubmitWait)
	defer timer.Stop()

	select {
	case p.requests <- req:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}

	// Dropped: undo the in-flight registration so a later request for the
	// same hint starts a fresh lookup.
	p.mu.Lock()
	delete(p.inflight, req.Hint)
	p.mu.Unlock()
	p.log.Debug("enrichment request dropped", "hint", req.Hint, "object_id", req.ObjectID)
	return false
}

// Close stops accepting requests, waits for the workers to finish the ones
// already queued, and closes the results channel. In-flight lookups past
// their context's deadline are abandoned, not retried on next startup.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		close(p.requests)
		p.wg.Wait()
		close(p.results)
	})
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.requests:
			if !ok {
				return
			}
			p.lookup(ctx, req)
		}
	}
}

func (p *Pipeline) lookup(ctx context.Context, req Request) {
	card, err := p.provider.Lookup(ctx, req.Hint)

	p.mu.Lock()
	waiters := p.inflight[req.Hint]
	delete(p.inflight, req.Hint)
	p.mu.Unlock()

	if err != nil {
		p.log.Debug("card lookup failed", "hint", req.Hint, "error", err)
	}

	// Fan the single result out to every object that asked for this hint.
	for _, id := range waiters {
		select {
		case p.results <- Result{ObjectID: id, Hint: req.Hint, Card: card, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
