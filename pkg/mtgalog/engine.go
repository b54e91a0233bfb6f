package mtgalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/carddata"
	"github.com/mtgalog/mtgalog-go/internal/enrich"
	"github.com/mtgalog/mtgalog-go/internal/frame"
	"github.com/mtgalog/mtgalog-go/internal/logfinder"
	"github.com/mtgalog/mtgalog-go/internal/match"
	"github.com/mtgalog/mtgalog-go/internal/merger"
	"github.com/mtgalog/mtgalog-go/internal/position"
	"github.com/mtgalog/mtgalog-go/internal/tailer"
)

// Card is a resolved card record from the card-detail provider.
type Card = carddata.Card

// Annotation is one classified, human-meaningful match event.
type Annotation = match.Annotation

// Kind classifies an Annotation.
type Kind = match.Kind

// Annotation kinds.
const (
	KindZoneTransfer         = match.KindZoneTransfer
	KindUserAction           = match.KindUserAction
	KindCombat               = match.KindCombat
	KindLifeChange           = match.KindLifeChange
	KindPhaseTransition      = match.KindPhaseTransition
	KindTurnChange           = match.KindTurnChange
	KindPermanentStateChange = match.KindPermanentStateChange
	KindObjectRemoval        = match.KindObjectRemoval
	KindEffectExpiration     = match.KindEffectExpiration
	KindTimerUpdate          = match.KindTimerUpdate
)

// DisplayRecord is the display-ready unit delivered on the output channel.
type DisplayRecord = merger.DisplayRecord

// Position is a persisted log resume point.
type Position = position.Position

// PositionStore persists the log position between runs.
type PositionStore = position.Store

// Provider looks up card details by name or catalog hint.
// Implementations must be safe for concurrent use; the enrichment worker
// pool calls Lookup from several goroutines.
type Provider interface {
	Lookup(ctx context.Context, hint string) (*Card, error)
}

// BusinessMatcher matches outbound client request lines against
// user-supplied patterns, typically a pattern.Set.
type BusinessMatcher interface {
	Match(line string) (action string, detail map[string]string, ok bool)
}

// ErrNotFound is returned by providers for hints no card matches.
var ErrNotFound = carddata.ErrNotFound

// engineErrBuffer is the buffer size for the error channel. A small
// buffer prevents error loss while the consumer is busy rendering.
const engineErrBuffer = 16

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Engine follows the Arena match log and streams display-ready records.
type Engine struct {
	cfg    engineConfig
	logDir string // empty in explicit-file mode
	log    *slog.Logger

	store     position.Store
	ownsStore bool
	provider  carddata.Provider

	mu      sync.Mutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewEngine creates an engine using functional options.
// Validates options, resolves the log location, and opens the state
// database if one is configured. Does NOT start goroutines.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	e := &Engine{cfg: *cfg, log: log}

	if cfg.logPath == "" {
		logDir, err := logfinder.FindLogDir(cfg.logDir)
		if err != nil {
			return nil, fmt.Errorf("finding log directory: %w", err)
		}
		e.logDir = logDir
	}

	var cache *carddata.Cache
	switch {
	case cfg.store != nil:
		e.store = cfg.store
	case cfg.stateDBPath != "":
		sqlStore, err := position.NewSQLiteStore(cfg.stateDBPath)
		if err != nil {
			return nil, err
		}
		c, err := carddata.NewCache(sqlStore.DB(), 0)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		e.store = sqlStore
		e.ownsStore = true
		cache = c
	default:
		e.store = position.NewMemoryStore()
	}

	if cfg.enrichEnabled {
		e.provider = cfg.newProvider(cache, log)
	}
	return e, nil
}

// Watch creates an engine from options and starts it.
// This is the preferred one-call entry point. For synchronous shutdown
// control, use NewEngine and Engine.Start directly.
func Watch(ctx context.Context, opts ...Option) (<-chan DisplayRecord, <-chan error, error) {
	e, err := NewEngine(opts...)
	if err != nil {
		return nil, nil, err
	}
	return e.Start(ctx)
}

// Start begins watching and returns the record and error channels.
// Both channels close when ctx is canceled, Close is called, or a fatal
// error stops the engine. Start can only be called once per Engine.
func (e *Engine) Start(ctx context.Context) (<-chan DisplayRecord, <-chan error, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, ErrEngineClosed
	}
	if e.started {
		return nil, nil, ErrAlreadyStarted
	}
	e.started = true

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.doneCh = make(chan struct{})

	out := make(chan DisplayRecord)
	errCh := make(chan error, engineErrBuffer)

	go e.run(ctx, out, errCh)

	return out, errCh, nil
}

// Close stops the engine and releases resources. Safe to call multiple
// times. Blocks until the run goroutine has exited.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
	doneCh := e.doneCh
	e.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

func (e *Engine) run(ctx context.Context, out chan<- DisplayRecord, errCh chan<- error) {
	defer close(e.doneCh)
	defer close(errCh)

	// The merger owns the output channel; closing mergerIn flushes any
	// buffered records and closes out.
	mergerIn := make(chan merger.Record, 16)
	merge := merger.New(merger.Config{Wait: e.cfg.enrichWait, Logger: e.log})

	var pipeline *enrich.Pipeline
	var completions <-chan enrich.Result
	if e.cfg.enrichEnabled {
		pipeline = enrich.New(e.provider, enrich.Config{
			Workers:   e.cfg.enrichWorkers,
			QueueSize: e.cfg.enrichQueue,
			Logger:    e.log,
		})
		pipeline.Start(ctx)
		completions = pipeline.Results()
	} else {
		closed := make(chan enrich.Result)
		close(closed)
		completions = closed
	}

	mergerDone := make(chan struct{})
	go func() {
		defer close(mergerDone)
		merge.Run(ctx, mergerIn, completions, out)
	}()
	defer func() {
		close(mergerIn)
		<-mergerDone
		if pipeline != nil {
			pipeline.Close()
		}
	}()

	e.ingest(ctx, mergerIn, pipeline, errCh)
}

// ingest is the single-threaded ingestion path: tail, reconstruct,
// classify, hand off to the merger. It never blocks on network I/O.
func (e *Engine) ingest(ctx context.Context, mergerIn chan<- merger.Record, pipeline *enrich.Pipeline, errCh chan<- error) {
	path := e.cfg.logPath
	if path == "" {
		p, err := logfinder.FindLatestLogFile(e.logDir)
		if err != nil {
			sendError(ctx, errCh, &EngineError{Op: EngineOpFindLatest, Path: e.logDir, Err: err})
			return
		}
		path = p
	}
	e.log.Debug("following log file", "path", path)

	tcfg := tailer.DefaultConfig()
	tcfg.PollInterval = e.cfg.pollInterval
	tcfg.FromStart = e.cfg.fromBeginning

	pos, resuming := e.loadPosition(ctx, path)
	if resuming && !e.cfg.fromBeginning {
		tcfg.Offset = pos.Offset
		e.log.Debug("resuming from stored position", "offset", pos.Offset)
	}

	t, err := tailer.New(ctx, path, tcfg)
	if err != nil {
		sendError(ctx, errCh, &EngineError{Op: EngineOpTail, Path: path, Err: err})
		return
	}
	defer func() { _ = t.Stop() }()

	rec := frame.New(frame.DefaultConfig())
	st := match.NewState()
	classifier := match.NewClassifier(match.Config{Business: e.cfg.patterns, Logger: e.log})

	pos = position.Position{FileID: t.FileID(), Offset: tcfg.Offset}
	dirty := false

	rotationTicker := time.NewTicker(e.cfg.pollInterval)
	defer rotationTicker.Stop()
	saveTicker := time.NewTicker(e.cfg.saveInterval)
	defer saveTicker.Stop()

	defer func() {
		// Final durable save so the next run resumes where this one
		// stopped. The parent context may already be canceled.
		saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.store.Save(saveCtx, pos); err != nil {
			e.log.Debug("final position save failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ln, ok := <-t.Lines():
			if !ok {
				return
			}
			for _, fr := range rec.Feed(frame.Line{Text: ln.Text, EndOffset: ln.EndOffset}) {
				e.process(ctx, &fr, classifier, st, pipeline, mergerIn)
				pos.Offset = fr.EndOffset
				pos.LastSize = ln.EndOffset
				dirty = true
			}

		case ev, ok := <-t.Events():
			if !ok {
				continue
			}
			// Rotation or truncation: the partial frame belongs to the
			// old content and must not splice into the new.
			e.log.Debug("log discontinuity", "reason", ev.Reason.String(), "file_id", ev.FileID)
			rec.Reset(0)
			pos = position.Position{FileID: ev.FileID}
			dirty = true

		case err, ok := <-t.Errors():
			if ok {
				sendError(ctx, errCh, &EngineError{Op: EngineOpTail, Path: path, Err: err})
			}
			return

		case <-rotationTicker.C:
			if e.cfg.logPath != "" {
				continue
			}
			newFile, err := logfinder.FindLatestLogFile(e.logDir)
			if err != nil {
				sendError(ctx, errCh, &EngineError{Op: EngineOpRotation, Path: e.logDir, Err: err})
				continue
			}
			if newFile == path {
				continue
			}
			e.log.Debug("switching to new log file", "from", path, "to", newFile)
			_ = t.Stop()
			rec.Reset(0)
			cfg := tailer.DefaultConfig()
			cfg.PollInterval = e.cfg.pollInterval
			cfg.FromStart = true
			nt, err := tailer.New(ctx, newFile, cfg)
			if err != nil {
				sendError(ctx, errCh, &EngineError{Op: EngineOpTail, Path: newFile, Err: err})
				return
			}
			t = nt
			path = newFile
			pos = position.Position{FileID: t.FileID()}
			dirty = true

		case <-saveTicker.C:
			if !dirty {
				continue
			}
			if err := e.store.Save(ctx, pos); err != nil {
				sendError(ctx, errCh, &EngineError{Op: EngineOpPosition, Err: err})
				continue
			}
			dirty = false
		}
	}
}

// loadPosition reads the stored position and decides whether it applies
// to the file about to be tailed. A corrupt store degrades to reading
// from the beginning rather than failing startup.
func (e *Engine) loadPosition(ctx context.Context, path string) (position.Position, bool) {
	pos, ok, err := e.store.Load(ctx)
	if err != nil {
		e.log.Debug("position store unreadable, starting from beginning", "error", err)
		return position.Position{}, false
	}
	if !ok {
		return position.Position{}, false
	}
	id, err := tailer.Identify(path)
	if err != nil || id != pos.FileID {
		// Different file than last run; the stored offset means nothing.
		return position.Position{}, false
	}
	return pos, true
}

// process classifies one frame and hands the resulting record to the
// merger. Frames that produce nothing visible are skipped, but the
// position still advances past them.
func (e *Engine) process(ctx context.Context, fr *frame.RawFrame, classifier *match.Classifier, st *match.State, pipeline *enrich.Pipeline, mergerIn chan<- merger.Record) {
	res := classifier.Classify(fr, st)

	annotations := res.Annotations
	if e.cfg.filter != nil {
		annotations = annotations[:0:0]
		for _, a := range res.Annotations {
			if e.cfg.filter.Allows(a.Kind) {
				annotations = append(annotations, a)
			}
		}
	}

	var hints, skipped []string
	if pipeline != nil {
		seen := make(map[string]struct{}, len(res.Requests))
		for _, req := range res.Requests {
			if _, dup := seen[req.Hint]; dup {
				continue
			}
			seen[req.Hint] = struct{}{}
			// A drop here means the queue stayed full past the bounded
			// wait; the record goes out with a placeholder instead of
			// stalling ingestion.
			if pipeline.Submit(ctx, req) {
				hints = append(hints, req.Hint)
			} else {
				skipped = append(skipped, req.Hint)
			}
		}
	}

	if len(annotations) == 0 && len(hints) == 0 && len(skipped) == 0 {
		return
	}

	select {
	case mergerIn <- merger.Record{
		ReceivedAt:  fr.ReceivedAt,
		Annotations: annotations,
		Hints:       hints,
		Skipped:     skipped,
	}:
	case <-ctx.Done():
	}
}

// sendError sends an error to the error channel. With a buffered channel,
// errors are only dropped if the buffer is full.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
	}
}
