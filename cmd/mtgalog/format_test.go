package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtgalog/mtgalog-go/pkg/mtgalog"
)

var fixedTime = time.Date(2026, 3, 14, 12, 30, 45, 0, time.UTC)

func TestOutputJSON(t *testing.T) {
	rec := mtgalog.DisplayRecord{
		Seq:        3,
		ReceivedAt: fixedTime,
		Annotations: []mtgalog.Annotation{
			{Kind: mtgalog.KindLifeChange, Timestamp: fixedTime, Player: 2, LifeFrom: 20, LifeTo: 17, LifeDelta: -3},
		},
	}

	var buf bytes.Buffer
	err := OutputJSON(rec, &buf)
	if err != nil {
		t.Fatalf("OutputJSON() error = %v", err)
	}

	// Verify it's valid JSON
	var decoded mtgalog.DisplayRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("OutputJSON() produced invalid JSON: %v", err)
	}

	if decoded.Seq != 3 {
		t.Errorf("decoded.Seq = %d, want 3", decoded.Seq)
	}
	if len(decoded.Annotations) != 1 || decoded.Annotations[0].LifeDelta != -3 {
		t.Errorf("decoded.Annotations = %+v, want one life change with delta -3", decoded.Annotations)
	}
}

func TestOutputPretty(t *testing.T) {
	tests := []struct {
		name     string
		rec      mtgalog.DisplayRecord
		contains string
	}{
		{
			name: "zone_transfer",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindZoneTransfer, CardName: "Lightning Bolt", FromZone: "hand", ToZone: "stack", Cause: "CastSpell"},
				},
			},
			contains: "> Lightning Bolt: hand -> stack (CastSpell)",
		},
		{
			name: "zone_transfer_unnamed",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindZoneTransfer, ObjectID: 42, FromZone: "library", ToZone: "hand"},
				},
			},
			contains: "> object 42: library -> hand",
		},
		{
			name: "life_change",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindLifeChange, Player: 2, LifeFrom: 20, LifeTo: 17, LifeDelta: -3},
				},
			},
			contains: "@ player 2 life 20 -> 17 (-3)",
		},
		{
			name: "turn_change",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindTurnChange, Turn: 5, ActivePlayer: 1},
				},
			},
			contains: "# turn 5, player 1 active",
		},
		{
			name: "phase_with_step",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindPhaseTransition, Phase: "Phase_Combat", Step: "Step_DeclareAttack"},
				},
			},
			contains: "# Phase_Combat / Step_DeclareAttack",
		},
		{
			name: "combat",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindCombat, CardName: "Grizzly Bears", Damage: 2, ObjectID: 2},
				},
			},
			contains: "! Grizzly Bears deals 2 damage to target 2",
		},
		{
			name: "tap",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindPermanentStateChange, CardName: "Island", Tapped: true},
				},
			},
			contains: "= Island taps",
		},
		{
			name: "removal",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindObjectRemoval, CardName: "Doom Blade"},
				},
			},
			contains: "- Doom Blade removed from the game",
		},
		{
			name: "user_action_with_detail",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindUserAction, Action: "deck_submit", Detail: map[string]string{"deck_id": "4a2b"}},
				},
			},
			contains: "* deck_submit: deck_id=4a2b",
		},
		{
			name: "resolved_card",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindZoneTransfer, CardName: "Shock", FromZone: "hand", ToZone: "stack"},
				},
				Cards: map[string]*mtgalog.Card{
					"Shock": {Name: "Shock", ManaCost: "{R}", TypeLine: "Instant"},
				},
			},
			contains: "card Shock: Shock {R} [Instant]",
		},
		{
			name: "unresolved_placeholder",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Annotations: []mtgalog.Annotation{
					{Kind: mtgalog.KindZoneTransfer, ObjectID: 9, FromZone: "library", ToZone: "battlefield"},
				},
				Unresolved: []string{"grpid:12345"},
				Degraded:   true,
			},
			contains: "card grpid:12345: (unresolved)",
		},
		{
			name: "follow_up",
			rec: mtgalog.DisplayRecord{
				ReceivedAt: fixedTime,
				Cards: map[string]*mtgalog.Card{
					"grpid:12345": {Name: "Opt", ManaCost: "{U}"},
				},
				FollowUp: true,
			},
			contains: "~ late card grpid:12345: Opt {U}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := OutputPretty(tt.rec, &buf)
			if err != nil {
				t.Fatalf("OutputPretty() error = %v", err)
			}

			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("OutputPretty() = %q, want to contain %q", buf.String(), tt.contains)
			}
		})
	}
}

func TestOutputRecord(t *testing.T) {
	rec := mtgalog.DisplayRecord{
		ReceivedAt: fixedTime,
		Annotations: []mtgalog.Annotation{
			{Kind: mtgalog.KindLifeChange, Player: 1, LifeFrom: 15, LifeTo: 18, LifeDelta: 3},
		},
	}

	tests := []struct {
		format    string
		wantErr   bool
		checkFunc func(string) bool
	}{
		{
			format:  "jsonl",
			wantErr: false,
			checkFunc: func(s string) bool {
				return strings.Contains(s, `"life_delta":3`)
			},
		},
		{
			format:  "pretty",
			wantErr: false,
			checkFunc: func(s string) bool {
				return strings.Contains(s, "@ player 1 life 15 -> 18 (+3)")
			},
		},
		{
			format:  "unknown",
			wantErr: true,
			checkFunc: func(s string) bool {
				return true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := OutputRecord(tt.format, rec, &buf)

			if (err != nil) != tt.wantErr {
				t.Errorf("OutputRecord() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && !tt.checkFunc(buf.String()) {
				t.Errorf("OutputRecord() output check failed: %q", buf.String())
			}
		})
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "hello", "hello"},
		{"empty", "", `""`},
		{"with_space", "hello world", `"hello world"`},
		{"with_equals", "a=b", `"a=b"`},
		{"with_quote", `say "hi"`, `"say \"hi\""`},
		{"with_backslash", `path\to`, `"path\\to"`},
		{"with_newline", "line1\nline2", `"line1\nline2"`},
		{"with_tab", "col1\tcol2", `"col1\tcol2"`},
		{"with_carriage_return", "a\rb", `"a\rb"`},
		{"with_null", "a\x00b", `"a\x00b"`},
		{"with_del", "a\x7fb", `"a\x7fb"`},
		{"unicode", "テスト", "テスト"},
		{"unicode_with_space", "日本語 テスト", `"日本語 テスト"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quoteIfNeeded(tt.input)
			if got != tt.want {
				t.Errorf("quoteIfNeeded(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatData(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]string
		want  string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, ""},
		{"single", map[string]string{"key": "value"}, "key=value"},
		{"multiple_sorted", map[string]string{"b": "2", "a": "1", "c": "3"}, "a=1 b=2 c=3"},
		{"with_spaces", map[string]string{"msg": "hello world"}, `msg="hello world"`},
		{"key_with_space", map[string]string{"key name": "value"}, `"key name"=value`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatData(tt.input)
			if got != tt.want {
				t.Errorf("formatData(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
