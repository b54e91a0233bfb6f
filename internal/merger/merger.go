// Package merger joins classified records with enrichment results while
// enforcing the engine's ordering policy: records leave in exactly the
// order they arrived, each waiting at most a bounded time for its card
// details. A record past its deadline is emitted with placeholders, and a
// result that arrives after emission becomes a separate follow-up record
// rather than a rewrite of already-delivered output.
package merger

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/carddata"
	"github.com/mtgalog/mtgalog-go/internal/enrich"
	"github.com/mtgalog/mtgalog-go/internal/match"
)

// DefaultWait is how long a record holds its place in line waiting for
// outstanding enrichment before it is emitted degraded.
const DefaultWait = 300 * time.Millisecond

// Record is the merger's input: one frame's worth of annotations plus the
// enrichment hints still outstanding for it.
type Record struct {
	ReceivedAt  time.Time
	Annotations []match.Annotation
	// Hints lists the card lookups this record is waiting on. Empty means
	// the record is ready immediately.
	Hints []string
	// Skipped lists lookups that were never submitted (enrichment queue
	// full past the bounded wait). They render as placeholders without
	// any chance of a follow-up.
	Skipped []string
}

// DisplayRecord is the display-ready unit handed to the renderer.
type DisplayRecord struct {
	// Seq is a monotonically increasing output sequence number.
	Seq         int64              `json:"seq"`
	ReceivedAt  time.Time          `json:"received_at"`
	Annotations []match.Annotation `json:"annotations,omitempty"`
	// Cards holds resolved card details keyed by lookup hint.
	Cards map[string]*carddata.Card `json:"cards,omitempty"`
	// Unresolved lists hints that did not resolve before emission.
	Unresolved []string `json:"unresolved,omitempty"`
	// Degraded is set when the record was emitted because its wait bound
	// expired rather than because every lookup finished.
	Degraded bool `json:"degraded,omitempty"`
	// FollowUp marks a standalone update carrying a result that arrived
	// after its original record was already emitted.
	FollowUp bool `json:"follow_up,omitempty"`
}

// recordState is the lifecycle of one buffered record.
type recordState int

const (
	statePending recordState = iota
	stateResolved
	stateDegraded
)

// pending is one record waiting in the output line.
type pending struct {
	rec      Record
	deadline time.Time
	state    recordState
	// waiting holds hints without a result yet.
	waiting map[string]struct{}
	cards   map[string]*carddata.Card
	// failed holds hints whose lookup returned an error. They render as
	// permanent placeholders and are never retried.
	failed map[string]struct{}
}

// Config configures a Merger.
type Config struct {
	// Wait bounds how long a record waits for enrichment.
	// Defaults to DefaultWait.
	Wait time.Duration
	// Logger for diagnostics. Optional.
	Logger *slog.Logger
}

// Merger buffers records and emits them in arrival order. Run it on a
// single goroutine; it is the sole authority over output ordering.
type Merger struct {
	wait time.Duration
	log  *slog.Logger

	queue []*pending
	seq   int64

	// lateHints maps hints emitted as unresolved to true until a late
	// result arrives for them (or forever, if none does).
	lateHints map[string]bool
}

// New builds a Merger.
func New(cfg Config) *Merger {
	wait := cfg.Wait
	if wait <= 0 {
		wait = DefaultWait
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Merger{
		wait:      wait,
		log:       log,
		lateHints: make(map[string]bool),
	}
}

// Run consumes records and completions until ctx is canceled or in is
// closed. When in closes, any still-buffered records are emitted degraded
// immediately and out is closed; outstanding enrichment is abandoned.
func (m *Merger) Run(ctx context.Context, in <-chan Record, completions <-chan enrich.Result, out chan<- DisplayRecord) {
	defer close(out)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		m.armTimer(timer)

		select {
		case <-ctx.Done():
			return

		case rec, ok := <-in:
			if !ok {
				m.flush(ctx, out)
				return
			}
			m.admit(rec)
			m.emitReady(ctx, out)

		case result, ok := <-completions:
			if !ok {
				completions = nil
				continue
			}
			m.apply(ctx, result, out)
			m.emitReady(ctx, out)

		case <-timer.C:
			m.expireHead()
			m.emitReady(ctx, out)
		}
	}
}

// armTimer points timer at the head record's deadline. Only the head
// matters: nothing behind it can be emitted first anyway.
func (m *Merger) armTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if len(m.queue) == 0 || m.queue[0].state != statePending {
		return
	}
	timer.Reset(time.Until(m.queue[0].deadline))
}

// admit appends a record to the line.
func (m *Merger) admit(rec Record) {
	p := &pending{
		rec:      rec,
		deadline: time.Now().Add(m.wait),
		waiting:  make(map[string]struct{}, len(rec.Hints)),
		cards:    make(map[string]*carddata.Card),
		failed:   make(map[string]struct{}),
	}
	for _, h := range rec.Hints {
		p.waiting[h] = struct{}{}
	}
	if len(p.waiting) == 0 {
		p.state = stateResolved
	}
	m.queue = append(m.queue, p)
}

// apply routes one enrichment result to every buffered record waiting on
// its hint. A result no buffered record wants answers a hint that was
// already emitted unresolved; a successful one becomes a follow-up.
func (m *Merger) apply(ctx context.Context, result enrich.Result, out chan<- DisplayRecord) {
	claimed := false
	for _, p := range m.queue {
		if _, ok := p.waiting[result.Hint]; !ok {
			continue
		}
		claimed = true
		delete(p.waiting, result.Hint)
		if result.Err != nil {
			p.failed[result.Hint] = struct{}{}
		} else {
			p.cards[result.Hint] = result.Card
		}
		if p.state == statePending && len(p.waiting) == 0 {
			p.state = stateResolved
		}
	}
	if claimed {
		return
	}

	if !m.lateHints[result.Hint] {
		return
	}
	delete(m.lateHints, result.Hint)
	if result.Err != nil {
		// The placeholder already printed is permanent.
		m.log.Debug("late enrichment failed", "hint", result.Hint, "error", result.Err)
		return
	}
	m.seq++
	m.send(ctx, out, DisplayRecord{
		Seq:        m.seq,
		ReceivedAt: time.Now(),
		Cards:      map[string]*carddata.Card{result.Hint: result.Card},
		FollowUp:   true,
	})
}

// expireHead degrades the head record once its deadline passes.
func (m *Merger) expireHead() {
	if len(m.queue) == 0 {
		return
	}
	head := m.queue[0]
	if head.state == statePending && !time.Now().Before(head.deadline) {
		head.state = stateDegraded
	}
}

// emitReady pops and emits from the head while it is resolved or
// degraded. Records behind a still-pending head hold their place.
func (m *Merger) emitReady(ctx context.Context, out chan<- DisplayRecord) {
	for len(m.queue) > 0 {
		head := m.queue[0]
		if head.state == statePending {
			// A queued record's deadline may pass while an earlier one
			// held the line.
			if time.Now().Before(head.deadline) {
				return
			}
			head.state = stateDegraded
		}
		m.queue = m.queue[1:]
		m.emit(ctx, out, head)
	}
}

// emit closes one record and sends its DisplayRecord.
func (m *Merger) emit(ctx context.Context, out chan<- DisplayRecord, p *pending) {
	d := DisplayRecord{
		ReceivedAt:  p.rec.ReceivedAt,
		Annotations: p.rec.Annotations,
		Degraded:    p.state == stateDegraded,
	}
	if len(p.cards) > 0 {
		d.Cards = p.cards
	}
	for _, h := range p.rec.Hints {
		if _, ok := p.cards[h]; ok {
			continue
		}
		d.Unresolved = append(d.Unresolved, h)
		// Failed hints stay placeholders forever; only hints still in
		// flight can earn a follow-up.
		if _, failed := p.failed[h]; !failed {
			m.lateHints[h] = true
		}
	}
	d.Unresolved = append(d.Unresolved, p.rec.Skipped...)
	m.seq++
	d.Seq = m.seq
	m.send(ctx, out, d)
}

func (m *Merger) send(ctx context.Context, out chan<- DisplayRecord, d DisplayRecord) {
	select {
	case out <- d:
	case <-ctx.Done():
	}
}

// flush emits every remaining record degraded. Called when the input
// closes on shutdown; nothing will resolve the outstanding hints.
func (m *Merger) flush(ctx context.Context, out chan<- DisplayRecord) {
	for _, p := range m.queue {
		if p.state == statePending {
			p.state = stateDegraded
		}
		m.emit(ctx, out, p)
	}
	m.queue = nil
}
