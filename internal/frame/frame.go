// Package frame reassembles the raw Arena log line stream into frames.
//
// The log interleaves two message directions, each introduced by a marker
// prefix on the first line. A frame's JSON payload may span many lines, so
// completion is detected by brace balance rather than line structure. The
// package is deliberately ignorant of game semantics: it only decides where
// one frame ends and the next begins.
package frame

import (
	"strings"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/payload"
)

// Direction identifies which side of the client/server conversation
// produced a frame.
type Direction int

const (
	DirectionUnknown Direction = iota
	// Inbound frames flow from the match server to the client.
	Inbound
	// Outbound frames flow from the client to the match server.
	Outbound
)

// String returns the wire-style name of the direction.
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Direction marker prefixes used by the Unity client logger.
const (
	outboundMarker = "[UnityCrossThreadLogger]==>"
	inboundMarker  = "[UnityCrossThreadLogger]<=="
)

// Default framing bounds. A forced cut past either bound yields a frame
// tagged Truncated, which the classifier treats as insufficient data.
const (
	DefaultMaxFrameLines = 2000
	DefaultMaxFrameBytes = 4 * 1024 * 1024
)

// RawFrame is one reconstructed unit of log content. Immutable once emitted.
type RawFrame struct {
	Direction Direction
	// Header is the text between the direction marker and the payload
	// opener on the first line (typically the message or channel name).
	Header string
	// Lines holds the raw frame lines, marker line included.
	Lines []string
	// Payload is the decoded payload tree. Zero when the frame carried no
	// structured payload or when Unparsed is set.
	Payload payload.Value
	// ReceivedAt is when the reconstructor closed the frame.
	ReceivedAt time.Time
	// StartOffset and EndOffset delimit the frame's bytes in the source
	// file. EndOffset is safe to persist as a resume position.
	StartOffset int64
	EndOffset   int64
	// Truncated marks a frame cut at the framing bounds before balance.
	Truncated bool
	// Unparsed marks a frame whose payload text did not decode.
	Unparsed bool
}

// Line is one raw log line with the file offset immediately after it.
type Line struct {
	Text      string
	EndOffset int64
}

// Config bounds frame reconstruction.
type Config struct {
	MaxFrameLines int
	MaxFrameBytes int
}

// DefaultConfig returns the default framing bounds.
func DefaultConfig() Config {
	return Config{
		MaxFrameLines: DefaultMaxFrameLines,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// Reconstructor consumes an ordered line stream and emits frames.
// Not safe for concurrent use; the ingestion path is single-threaded.
type Reconstructor struct {
	cfg Config
	now func() time.Time

	cur        *building
	discarding bool  // skipping lines after a forced cut, until next marker
	lastOffset int64 // offset after the most recently consumed line
}

// building is a frame under construction.
type building struct {
	direction   Direction
	header      string
	lines       []string
	bytes       int
	startOffset int64

	// Brace balance across lines. opened is true once the payload's first
	// opener has been seen; the frame closes when depth returns to zero.
	depth    int
	opened   bool
	inString bool
	escaped  bool
}

// New returns a Reconstructor with the given bounds.
// Zero or negative bounds fall back to the defaults.
func New(cfg Config) *Reconstructor {
	if cfg.MaxFrameLines <= 0 {
		cfg.MaxFrameLines = DefaultMaxFrameLines
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return &Reconstructor{cfg: cfg, now: time.Now}
}

// Feed consumes one line and returns any frames completed by it.
// A single line can complete at most two frames (the pending one plus a
// self-balanced marker line).
func (r *Reconstructor) Feed(line Line) []RawFrame {
	text := strings.TrimRight(line.Text, "\r")
	startOffset := r.lastOffset
	r.lastOffset = line.EndOffset

	var out []RawFrame

	dir, rest := matchMarker(text)
	if dir != DirectionUnknown {
		r.discarding = false
		// A new marker terminates any pending frame. The pending frame
		// ends before this marker line so that resuming from its end
		// offset replays the new frame in full.
		if r.cur != nil {
			out = append(out, r.close(startOffset, false))
		}
		r.cur = &building{
			direction:   dir,
			lines:       []string{text},
			bytes:       len(text),
			startOffset: startOffset,
		}
		r.cur.header = r.consumeHeader(rest)
		if fr, done := r.tryClose(line.EndOffset); done {
			out = append(out, fr)
		}
		return out
	}

	if r.discarding {
		return out
	}

	if r.cur == nil {
		// Interstitial engine noise between frames; not part of any frame.
		return out
	}

	if strings.TrimSpace(text) == "" {
		// Blank line terminates the pending frame.
		out = append(out, r.close(line.EndOffset, false))
		return out
	}

	r.cur.lines = append(r.cur.lines, text)
	r.cur.bytes += len(text)
	r.scan(text)

	if r.cur.bytes > r.cfg.MaxFrameBytes || len(r.cur.lines) > r.cfg.MaxFrameLines {
		// Forced cut: emit what we have and skip to the next marker.
		out = append(out, r.close(line.EndOffset, true))
		r.discarding = true
		return out
	}

	if fr, done := r.tryClose(line.EndOffset); done {
		out = append(out, fr)
	}
	return out
}

// Flush closes and returns any pending partial frame, or nil.
// Intended for end-of-input; the frame is tagged Truncated since its
// payload balance was never reached.
func (r *Reconstructor) Flush() *RawFrame {
	if r.cur == nil {
		return nil
	}
	fr := r.close(r.lastOffset, !r.balanced())
	return &fr
}

// Reset discards any in-flight partial frame and framing state.
// Called on a source discontinuity so content from before and after a log
// rotation is never spliced into one frame.
func (r *Reconstructor) Reset(offset int64) {
	r.cur = nil
	r.discarding = false
	r.lastOffset = offset
}

// matchMarker reports the direction of a marker line and the text after
// the marker.
func matchMarker(text string) (Direction, string) {
	if rest, ok := strings.CutPrefix(text, outboundMarker); ok {
		return Outbound, rest
	}
	if rest, ok := strings.CutPrefix(text, inboundMarker); ok {
		return Inbound, rest
	}
	return DirectionUnknown, ""
}

// consumeHeader splits the marker line remainder into header text and scans
// any payload portion for brace balance.
func (r *Reconstructor) consumeHeader(rest string) string {
	idx := strings.IndexAny(rest, "{[")
	if idx < 0 {
		return strings.TrimSpace(rest)
	}
	r.scan(rest[idx:])
	return strings.TrimSpace(rest[:idx])
}

// scan advances the brace-balance state over one chunk of payload text.
// String literals are tracked so braces inside them don't count.
func (r *Reconstructor) scan(chunk string) {
	b := r.cur
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		if b.inString {
			switch {
			case b.escaped:
				b.escaped = false
			case c == '\\':
				b.escaped = true
			case c == '"':
				b.inString = false
			}
			continue
		}
		switch c {
		case '"':
			b.inString = true
		case '{', '[':
			b.depth++
			b.opened = true
		case '}', ']':
			b.depth--
		}
	}
}

// balanced reports whether the pending frame's payload opened and closed.
func (r *Reconstructor) balanced() bool {
	return r.cur != nil && r.cur.opened && r.cur.depth <= 0
}

// tryClose closes the pending frame if its payload balance is complete.
func (r *Reconstructor) tryClose(endOffset int64) (RawFrame, bool) {
	if !r.balanced() {
		return RawFrame{}, false
	}
	return r.close(endOffset, false), true
}

// close finalizes the pending frame, decoding its payload if one opened.
func (r *Reconstructor) close(endOffset int64, truncated bool) RawFrame {
	b := r.cur
	r.cur = nil

	fr := RawFrame{
		Direction:   b.direction,
		Header:      b.header,
		Lines:       b.lines,
		ReceivedAt:  r.now(),
		StartOffset: b.startOffset,
		EndOffset:   endOffset,
		Truncated:   truncated,
	}

	if !b.opened || truncated {
		return fr
	}

	raw := payloadText(b.lines)
	if raw == "" {
		return fr
	}
	val, err := payload.Parse([]byte(raw))
	if err != nil {
		fr.Unparsed = true
		return fr
	}
	fr.Payload = val
	return fr
}

// payloadText joins the payload portion of the frame lines: everything from
// the first opener on the marker line through the last line.
func payloadText(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	first := lines[0]
	idx := strings.IndexAny(first, "{[")
	if idx < 0 {
		// Payload opened on a continuation line.
		return strings.Join(lines[1:], "\n")
	}
	if len(lines) == 1 {
		return first[idx:]
	}
	parts := append([]string{first[idx:]}, lines[1:]...)
	return strings.Join(parts, "\n")
}
