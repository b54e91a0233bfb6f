package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mtgalog/mtgalog-go/pkg/mtgalog"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// OutputRecord writes a display record in the specified format to the writer.
func OutputRecord(format string, rec mtgalog.DisplayRecord, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(rec, out)
	case "pretty":
		return OutputPretty(rec, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes a display record as JSON Lines format.
func OutputJSON(rec mtgalog.DisplayRecord, out io.Writer) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes a display record in human-readable format, one line
// per annotation plus trailing card-resolution lines.
func OutputPretty(rec mtgalog.DisplayRecord, out io.Writer) error {
	ts := rec.ReceivedAt.Format("15:04:05")

	if rec.FollowUp {
		for _, line := range cardLines(rec) {
			if _, err := fmt.Fprintf(out, "[%s] ~ late %s\n", ts, line); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ann := range rec.Annotations {
		if _, err := fmt.Fprintf(out, "[%s] %s\n", ts, prettyAnnotation(ann)); err != nil {
			return err
		}
	}

	for _, line := range cardLines(rec) {
		if _, err := fmt.Fprintf(out, "[%s]   %s\n", ts, line); err != nil {
			return err
		}
	}
	for _, hint := range rec.Unresolved {
		if _, err := fmt.Fprintf(out, "[%s]   card %s: (unresolved)\n", ts, quoteIfNeeded(hint)); err != nil {
			return err
		}
	}
	return nil
}

func prettyAnnotation(ann mtgalog.Annotation) string {
	switch ann.Kind {
	case mtgalog.KindZoneTransfer:
		name := ann.CardName
		if name == "" {
			name = fmt.Sprintf("object %d", ann.ObjectID)
		}
		s := fmt.Sprintf("> %s: %s -> %s", name, ann.FromZone, ann.ToZone)
		if ann.Cause != "" {
			s += fmt.Sprintf(" (%s)", ann.Cause)
		}
		return s
	case mtgalog.KindLifeChange:
		return fmt.Sprintf("@ player %d life %d -> %d (%+d)",
			ann.Player, ann.LifeFrom, ann.LifeTo, ann.LifeDelta)
	case mtgalog.KindTurnChange:
		return fmt.Sprintf("# turn %d, player %d active", ann.Turn, ann.ActivePlayer)
	case mtgalog.KindPhaseTransition:
		if ann.Step != "" {
			return fmt.Sprintf("# %s / %s", ann.Phase, ann.Step)
		}
		return fmt.Sprintf("# %s", ann.Phase)
	case mtgalog.KindCombat:
		name := ann.CardName
		if name == "" {
			name = fmt.Sprintf("object %d", ann.AttackerID)
		}
		// The damaged entity is an instance id: a creature, or a player's
		// seat when the damage went to their face.
		return fmt.Sprintf("! %s deals %d damage to target %d", name, ann.Damage, ann.ObjectID)
	case mtgalog.KindPermanentStateChange:
		state := "untaps"
		if ann.Tapped {
			state = "taps"
		}
		name := ann.CardName
		if name == "" {
			name = fmt.Sprintf("object %d", ann.ObjectID)
		}
		return fmt.Sprintf("= %s %s", name, state)
	case mtgalog.KindObjectRemoval:
		name := ann.CardName
		if name == "" {
			name = fmt.Sprintf("object %d", ann.ObjectID)
		}
		return fmt.Sprintf("- %s removed from the game", name)
	case mtgalog.KindEffectExpiration:
		return fmt.Sprintf("- effect %d expires", ann.ObjectID)
	case mtgalog.KindTimerUpdate:
		running := "paused"
		if ann.TimerRunning {
			running = "running"
		}
		return fmt.Sprintf("o player %d %s timer: %ds left (%s)",
			ann.Player, ann.TimerType, ann.RemainingMS/1000, running)
	case mtgalog.KindUserAction:
		if len(ann.Detail) > 0 {
			return fmt.Sprintf("* %s: %s", ann.Action, formatData(ann.Detail))
		}
		return fmt.Sprintf("* %s", ann.Action)
	default:
		return fmt.Sprintf("* %s", ann.Kind)
	}
}

// cardLines formats resolved cards as sorted "card <hint>: <name> <cost>" lines.
func cardLines(rec mtgalog.DisplayRecord) []string {
	if len(rec.Cards) == 0 {
		return nil
	}
	hints := make([]string, 0, len(rec.Cards))
	for h := range rec.Cards {
		hints = append(hints, h)
	}
	sort.Strings(hints)

	lines := make([]string, 0, len(hints))
	for _, h := range hints {
		c := rec.Cards[h]
		s := fmt.Sprintf("card %s: %s", quoteIfNeeded(h), c.Name)
		if c.ManaCost != "" {
			s += " " + c.ManaCost
		}
		if c.TypeLine != "" {
			s += " [" + c.TypeLine + "]"
		}
		lines = append(lines, s)
	}
	return lines
}

// formatData formats a map as sorted key=value pairs.
// Values are quoted if they contain spaces, equals signs, quotes, or control characters.
func formatData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(data))
	for _, k := range keys {
		v := data[k]
		parts = append(parts, fmt.Sprintf("%s=%s", quoteIfNeeded(k), quoteIfNeeded(v)))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded quotes a value if it contains special characters or control characters.
// Returns the value unchanged if no quoting is needed.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	// Check for characters that require quoting
	needsQuote := false
	for _, c := range v {
		// Quote if: space, equals, quote, backslash, or any control character (< 0x20 or DEL 0x7F)
		if c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	// Escape special characters
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			// Other control characters (including DEL): escape as \xNN
			sb.WriteString(fmt.Sprintf(`\x%02x`, c))
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
