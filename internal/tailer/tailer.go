// Package tailer streams appended log lines from a single file, tracking
// byte offsets and file identity.
//
// Line following is delegated to nxadm/tail; this package layers on the
// concerns the engine needs for durable resumption: offsets aligned to the
// lines actually delivered, detection of rotation (identity change) and
// truncation (size shrink), and discontinuity events that tell the frame
// reconstructor to discard any partial frame instead of splicing unrelated
// content.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

// Reason classifies a discontinuity in the line stream.
type Reason int

const (
	// Rotated: the path now refers to a different file.
	Rotated Reason = iota
	// Truncated: same file, but its size shrank below the read offset.
	Truncated
	// ReadError: a mid-stream read failure forced a reopen.
	ReadError
)

// String returns a short name for the reason.
func (r Reason) String() string {
	switch r {
	case Rotated:
		return "rotated"
	case Truncated:
		return "truncated"
	case ReadError:
		return "read_error"
	}
	return "unknown"
}

// Discontinuity reports a break in the byte stream. All bytes delivered
// after it start from offset 0 of the file identified by FileID.
type Discontinuity struct {
	Reason Reason
	FileID string
	At     time.Time
}

// Line is one log line plus the file offset immediately after it.
type Line struct {
	Text      string
	EndOffset int64
}

// ErrFileGone is returned after the watched file stays unavailable for
// MaxConsecutiveFailures polls. The file is expected to exist while the
// game client runs, so prolonged absence is fatal rather than retried
// forever.
var ErrFileGone = errors.New("log file repeatedly unavailable")

// Config controls tailing behavior.
type Config struct {
	// FromStart reads from the beginning regardless of Offset.
	FromStart bool
	// Offset is the resume offset. Ignored when FromStart is set. An
	// offset beyond the current file size is treated as stale: reading
	// restarts from 0 with a Truncated discontinuity.
	Offset int64
	// PollInterval is how often file identity and size are re-checked.
	PollInterval time.Duration
	// MaxConsecutiveFailures bounds tolerated stat failures before the
	// tailer gives up with ErrFileGone.
	MaxConsecutiveFailures int
}

// DefaultConfig returns the default tailing configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:           time.Second,
		MaxConsecutiveFailures: 30,
	}
}

// Tailer follows one log file.
type Tailer struct {
	path   string
	cfg    Config
	fileID string // identity at open time; changes reported via Events

	lines  chan Line
	events chan Discontinuity
	errs   chan error

	mu     sync.Mutex
	cancel context.CancelFunc
	doneCh chan struct{}
	closed bool
}

// New opens path and starts streaming lines.
//
// The file must exist and be readable at open time; permission errors and
// a missing file are constructor errors (the locator just found the file,
// so absence here is a configuration problem). Transient unavailability
// after open is retried inside the run loop.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 30
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("opening log file: %s is not a regular file", path)
	}

	t := &Tailer{
		path:   path,
		cfg:    cfg,
		fileID: fileID(path, info),
		lines:  make(chan Line),
		events: make(chan Discontinuity, 4),
		errs:   make(chan error, 1),
		doneCh: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(ctx, info)

	return t, nil
}

// Identify returns the stable identity of the file at path, in the same
// form Discontinuity events and FileID use. Callers compare it against a
// stored position's file identity to decide whether an offset is still
// meaningful.
func Identify(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fileID(path, info), nil
}

// Lines returns the line channel. Closed when the tailer stops.
func (t *Tailer) Lines() <-chan Line { return t.lines }

// Events returns the discontinuity channel.
func (t *Tailer) Events() <-chan Discontinuity { return t.events }

// Errors returns the fatal-error channel. At most one error is sent; the
// tailer stops afterwards.
func (t *Tailer) Errors() <-chan error { return t.errs }

// FileID returns the identity of the file at open time. After a
// Discontinuity the current identity is the one it carries.
func (t *Tailer) FileID() string { return t.fileID }

// Stop halts tailing and waits for the run goroutine to exit.
// Safe to call multiple times.
func (t *Tailer) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.cancel()
	t.mu.Unlock()

	<-t.doneCh
	return nil
}

func (t *Tailer) run(ctx context.Context, info os.FileInfo) {
	defer close(t.doneCh)
	defer close(t.lines)
	defer close(t.events)
	defer close(t.errs)

	offset := int64(0)
	if !t.cfg.FromStart {
		offset = t.cfg.Offset
	}
	if offset > info.Size() {
		// Stale resume offset (file was replaced between runs with a
		// shorter one). Restart from the beginning.
		t.sendEvent(ctx, Discontinuity{Reason: Truncated, FileID: t.fileID, At: time.Now()})
		offset = 0
	}

	curInfo := info
	curID := t.fileID
	lastSize := info.Size()
	failures := 0

	for {
		tl, err := tail.TailFile(t.path, tail.Config{
			Follow:    true,
			ReOpen:    false,
			Poll:      true,
			MustExist: true,
			Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			t.sendErr(ctx, fmt.Errorf("tailing %s: %w", t.path, err))
			return
		}

		restart, fatal := t.follow(ctx, tl, &curInfo, &curID, &lastSize, &failures)
		_ = tl.Stop()
		tl.Cleanup()
		if fatal != nil {
			t.sendErr(ctx, fatal)
			return
		}
		if !restart {
			return
		}
		// Restarts always begin at 0: rotation and truncation both
		// invalidate the previous offset.
		offset = 0
	}
}

// follow consumes lines from one inner tail session until it ends.
// Returns restart=true when the session should be reopened from offset 0,
// or a fatal error to surface.
func (t *Tailer) follow(ctx context.Context, tl *tail.Tail, curInfo *os.FileInfo, curID *string, lastSize *int64, failures *int) (restart bool, fatal error) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, nil

		case ln, ok := <-tl.Lines:
			if !ok {
				// Inner tail died (fd-level read error). Reopen from
				// the start of the current file.
				t.sendEvent(ctx, Discontinuity{Reason: ReadError, FileID: *curID, At: time.Now()})
				return true, nil
			}
			if ln.Err != nil {
				t.sendEvent(ctx, Discontinuity{Reason: ReadError, FileID: *curID, At: time.Now()})
				return true, nil
			}
			select {
			case t.lines <- Line{Text: ln.Text, EndOffset: ln.SeekInfo.Offset}:
			case <-ctx.Done():
				return false, nil
			}

		case <-ticker.C:
			info, err := os.Stat(t.path)
			if err != nil {
				if os.IsPermission(err) {
					return false, fmt.Errorf("stat %s: %w", t.path, err)
				}
				*failures++
				if *failures >= t.cfg.MaxConsecutiveFailures {
					return false, fmt.Errorf("%w: %s", ErrFileGone, t.path)
				}
				continue
			}
			*failures = 0

			if !os.SameFile(*curInfo, info) {
				*curInfo = info
				*curID = fileID(t.path, info)
				*lastSize = info.Size()
				t.sendEvent(ctx, Discontinuity{Reason: Rotated, FileID: *curID, At: time.Now()})
				return true, nil
			}
			if info.Size() < *lastSize {
				*lastSize = info.Size()
				t.sendEvent(ctx, Discontinuity{Reason: Truncated, FileID: *curID, At: time.Now()})
				return true, nil
			}
			*lastSize = info.Size()
		}
	}
}

func (t *Tailer) sendEvent(ctx context.Context, ev Discontinuity) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *Tailer) sendErr(ctx context.Context, err error) {
	select {
	case t.errs <- err:
	default:
		// Buffer of one; a second fatal error has nothing new to say.
	}
}
