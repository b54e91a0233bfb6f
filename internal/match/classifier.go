package match

import (
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/enrich"
	"github.com/mtgalog/mtgalog-go/internal/frame"
	"github.com/mtgalog/mtgalog-go/internal/payload"
)

// BusinessMatcher matches one-line client business events against
// user-supplied patterns. Implemented by pattern.Set.
type BusinessMatcher interface {
	// Match returns the action name and captured fields for line, or
	// ok=false when no pattern matches.
	Match(line string) (action string, detail map[string]string, ok bool)
}

// Result is the outcome of classifying one frame: the annotations it
// produced, in payload order, plus any card-detail requests for objects
// whose names are unknown.
type Result struct {
	Annotations []Annotation
	Requests    []enrich.Request
}

// Config configures a Classifier.
type Config struct {
	// Business matches outbound one-line events. Optional.
	Business BusinessMatcher
	// Logger for diagnostics on skipped or degraded frames. Optional.
	Logger *slog.Logger
}

// Classifier turns raw frames into annotations, applying each frame's
// deltas to the match state it is given. Not safe for concurrent use; it
// belongs to the single ingestion goroutine.
type Classifier struct {
	business BusinessMatcher
	log      *slog.Logger
}

// NewClassifier builds a Classifier.
func NewClassifier(cfg Config) *Classifier {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{business: cfg.Business, log: log}
}

// Classify interprets one frame against st. It never fails: a truncated,
// unparsed, or unrecognized frame yields an empty Result.
func (c *Classifier) Classify(fr *frame.RawFrame, st *State) Result {
	if fr.Truncated {
		// Forced cut upstream: insufficient data by construction.
		c.log.Debug("skipping truncated frame", "header", fr.Header)
		return Result{}
	}

	switch fr.Direction {
	case frame.Inbound:
		return c.classifyInbound(fr, st)
	case frame.Outbound:
		return c.classifyOutbound(fr, st)
	default:
		return Result{}
	}
}

func (c *Classifier) classifyInbound(fr *frame.RawFrame, st *State) Result {
	if fr.Unparsed || !fr.Payload.IsValid() {
		c.log.Debug("skipping unparsed inbound frame", "header", fr.Header)
		return Result{}
	}

	var res Result

	// Match lifecycle changes arrive outside the GRE message stream.
	if room := fr.Payload.Get("matchGameRoomStateChangedEvent"); room.IsValid() {
		c.handleRoomStateChange(room, st)
	}

	msgs := fr.Payload.Path("greToClientEvent").Get("greToClientMessages")
	for _, msg := range msgs.Arr() {
		switch msg.Get("type").StrOr("") {
		case "GREMessageType_GameStateMessage", "GREMessageType_QueuedGameStateMessage":
			c.handleGameState(msg.Get("gameStateMessage"), fr.ReceivedAt, st, &res)
		case "GREMessageType_TimerStateMessage":
			c.handleTimerState(msg.Get("timerStateMessage"), fr.ReceivedAt, st, &res)
		default:
			// Prompts, UI hints, connection acks: nothing to annotate.
		}
	}
	return res
}

// classifyOutbound annotates client-originated business events. These are
// one-line frames; the first line carries everything.
func (c *Classifier) classifyOutbound(fr *frame.RawFrame, st *State) Result {
	if len(fr.Lines) == 0 {
		return Result{}
	}

	if c.business != nil {
		if action, detail, ok := c.business.Match(fr.Lines[0]); ok {
			return Result{Annotations: []Annotation{{
				Kind:      KindUserAction,
				Timestamp: fr.ReceivedAt,
				Action:    action,
				Detail:    detail,
			}}}
		}
	}

	// Built-in fallback: any outbound frame with a recognizable request
	// header becomes a bare user action.
	if fr.Header == "" {
		return Result{}
	}
	ann := Annotation{
		Kind:      KindUserAction,
		Timestamp: fr.ReceivedAt,
		Action:    fr.Header,
	}
	if id, ok := fr.Payload.Get("id").Int(); ok {
		ann.Detail = map[string]string{"request_id": strconv.Itoa(id)}
	}
	return Result{Annotations: []Annotation{ann}}
}

// handleRoomStateChange tracks match lifecycle: a new room resets the
// model for a rematch, completion marks the state discardable.
func (c *Classifier) handleRoomStateChange(room payload.Value, st *State) {
	info := room.Get("gameRoomInfo")
	matchID := info.Path("gameRoomConfig", "matchId").StrOr("")

	switch info.Get("stateType").StrOr("") {
	case "MatchGameRoomStateType_Playing":
		if matchID != "" && matchID != st.MatchID {
			c.log.Debug("new match room", "match_id", matchID)
			st.Reset(matchID)
		}
		st.Started = true
	case "MatchGameRoomStateType_MatchCompleted":
		st.Completed = true
		st.CompletedAt = time.Now()
		c.log.Debug("match completed", "match_id", st.MatchID)
	}
}

func (c *Classifier) handleTimerState(msg payload.Value, ts time.Time, st *State, res *Result) {
	if !msg.IsValid() {
		return
	}
	seat := msg.Get("seatNumber").IntOr(0)
	for _, tm := range msg.Get("timers").Arr() {
		info := TimerInfo{
			Player:     seat,
			Type:       tm.Get("type").StrOr(""),
			DurationMS: tm.Get("durationSec").IntOr(0) * 1000,
			ElapsedMS:  tm.Get("elapsedSec").IntOr(0) * 1000,
		}
		if running, ok := tm.Get("running").BoolVal(); ok {
			info.Running = running
		}
		// Delta first, then the annotation snapshots the new state.
		st.Timers[seat] = info
		res.Annotations = append(res.Annotations, Annotation{
			Kind:         KindTimerUpdate,
			Timestamp:    ts,
			Player:       seat,
			TimerType:    info.Type,
			RemainingMS:  info.DurationMS - info.ElapsedMS,
			TimerRunning: info.Running,
		})
	}
}
