package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll feeds lines with synthetic offsets and collects emitted frames.
func feedAll(r *Reconstructor, lines ...string) []RawFrame {
	var out []RawFrame
	offset := int64(0)
	for _, l := range lines {
		offset += int64(len(l)) + 1
		out = append(out, r.Feed(Line{Text: l, EndOffset: offset})...)
	}
	return out
}

func TestSingleLineFrame(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`[UnityCrossThreadLogger]==> LogBusinessEvents {"id":12,"request":"Event_Join"}`,
	)
	require.Len(t, frames, 1)

	fr := frames[0]
	assert.Equal(t, Outbound, fr.Direction)
	assert.Equal(t, "LogBusinessEvents", fr.Header)
	assert.False(t, fr.Truncated)
	assert.False(t, fr.Unparsed)
	assert.Equal(t, 12, fr.Payload.Get("id").IntOr(0))
}

func TestMultiLinePayload(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`[UnityCrossThreadLogger]<== GreToClientEvent {`,
		`  "transactionId": "abc",`,
		`  "greToClientEvent": {`,
		`    "greToClientMessages": [{"type": "GREMessageType_GameStateMessage"}]`,
		`  }`,
		`}`,
	)
	require.Len(t, frames, 1)

	fr := frames[0]
	assert.Equal(t, Inbound, fr.Direction)
	assert.Equal(t, "GreToClientEvent", fr.Header)
	assert.Len(t, fr.Lines, 6)
	assert.Equal(t, "abc", fr.Payload.Get("transactionId").StrOr(""))
	assert.Equal(t, "GREMessageType_GameStateMessage",
		fr.Payload.Path("greToClientEvent").Get("greToClientMessages").At(0).Get("type").StrOr(""))
}

func TestInterleavedDirections(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`[UnityCrossThreadLogger]==> Req {"a":1}`,
		`[UnityCrossThreadLogger]<== Resp {"b":2}`,
		`[UnityCrossThreadLogger]==> Req {"c":3}`,
	)
	require.Len(t, frames, 3)
	assert.Equal(t, Outbound, frames[0].Direction)
	assert.Equal(t, Inbound, frames[1].Direction)
	assert.Equal(t, Outbound, frames[2].Direction)
}

func TestMarkerTerminatesUnbalancedFrame(t *testing.T) {
	r := New(DefaultConfig())

	// First frame never balances; the next marker cuts it off.
	frames := feedAll(r,
		`[UnityCrossThreadLogger]<== Broken {"x": 1,`,
		`[UnityCrossThreadLogger]==> Next {"y":2}`,
	)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].Unparsed, "partial payload should be tagged unparsed")
	assert.Equal(t, "Next", frames[1].Header)
	assert.False(t, frames[1].Unparsed)
}

func TestBlankLineTerminator(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`[UnityCrossThreadLogger]==> StateChanged MatchCompleted`,
		``,
	)
	require.Len(t, frames, 1)
	assert.Equal(t, "StateChanged MatchCompleted", frames[0].Header)
	assert.False(t, frames[0].Payload.IsValid())
}

func TestBracesInsideStringsIgnored(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`[UnityCrossThreadLogger]<== Msg {"text": "odd {braces} and \" quote [here"}`,
	)
	require.Len(t, frames, 1)
	assert.False(t, frames[0].Unparsed)
	assert.Equal(t, `odd {braces} and " quote [here`, frames[0].Payload.Get("text").StrOr(""))
}

func TestMaxFrameLinesForcesCut(t *testing.T) {
	r := New(Config{MaxFrameLines: 3, MaxFrameBytes: DefaultMaxFrameBytes})

	lines := []string{`[UnityCrossThreadLogger]<== Huge {`}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(`  "k%d": %d,`, i, i))
	}
	// After the cut, framing must resume at the next marker.
	lines = append(lines, `[UnityCrossThreadLogger]==> After {"ok":true}`)

	frames := feedAll(r, lines...)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].Truncated)
	assert.False(t, frames[0].Payload.IsValid())
	assert.Equal(t, "After", frames[1].Header)
	assert.False(t, frames[1].Truncated)
	ok, _ := frames[1].Payload.Get("ok").BoolVal()
	assert.True(t, ok)
}

func TestMaxFrameBytesForcesCut(t *testing.T) {
	r := New(Config{MaxFrameLines: DefaultMaxFrameLines, MaxFrameBytes: 64})

	frames := feedAll(r,
		`[UnityCrossThreadLogger]<== Big {`,
		`  "padding": "`+string(make([]byte, 128))+`",`,
		`[UnityCrossThreadLogger]==> Tail {"z":1}`,
	)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].Truncated)
	assert.Equal(t, "Tail", frames[1].Header)
}

func TestResetDiscardsPartialFrame(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r, `[UnityCrossThreadLogger]<== Partial {"a":`)
	require.Empty(t, frames)

	// Rotation: reset, then unrelated content follows from offset 0.
	r.Reset(0)
	frames = feedAll(r, `[UnityCrossThreadLogger]==> Fresh {"b":2}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "Fresh", frames[0].Header)
	assert.Len(t, frames[0].Lines, 1, "no splicing of pre-rotation lines")
}

func TestFlush(t *testing.T) {
	r := New(DefaultConfig())

	require.Nil(t, r.Flush())

	feedAll(r, `[UnityCrossThreadLogger]<== Pending {"a":`)
	fr := r.Flush()
	require.NotNil(t, fr)
	assert.True(t, fr.Truncated)
	require.Nil(t, r.Flush())
}

func TestInterstitialNoiseIgnored(t *testing.T) {
	r := New(DefaultConfig())

	frames := feedAll(r,
		`Unloading 5 unused Assets to reduce memory usage.`,
		`[UnityCrossThreadLogger]==> Ping {"n":1}`,
		`Some engine warning`,
		`[UnityCrossThreadLogger]==> Ping {"n":2}`,
	)
	require.Len(t, frames, 2)
	assert.Equal(t, 1, frames[0].Payload.Get("n").IntOr(0))
	assert.Equal(t, 2, frames[1].Payload.Get("n").IntOr(0))
}

func TestOffsetsAreFrameAligned(t *testing.T) {
	r := New(DefaultConfig())

	l1 := `[UnityCrossThreadLogger]==> A {"x":1}`
	l2 := `[UnityCrossThreadLogger]==> B {"y":2}`
	frames := feedAll(r, l1, l2)
	require.Len(t, frames, 2)

	assert.Equal(t, int64(0), frames[0].StartOffset)
	assert.Equal(t, int64(len(l1)+1), frames[0].EndOffset)
	assert.Equal(t, frames[0].EndOffset, frames[1].StartOffset)
	assert.Equal(t, int64(len(l1)+len(l2)+2), frames[1].EndOffset)
}

func TestMarkerTerminatedOffsetsAreFrameAligned(t *testing.T) {
	r := New(DefaultConfig())

	// Neither frame balances on its own line: the first has no payload at
	// all, the second is cut unbalanced by the third marker. Their end
	// offsets must still stop short of the marker line that cut them, so
	// resuming from a persisted end offset replays the next frame whole.
	l1 := `[UnityCrossThreadLogger]==> EventJoin`
	l2 := `[UnityCrossThreadLogger]<== Broken {"x": 1,`
	l3 := `[UnityCrossThreadLogger]==> Next {"y":2}`
	frames := feedAll(r, l1, l2, l3)
	require.Len(t, frames, 3)

	assert.Equal(t, int64(0), frames[0].StartOffset)
	assert.Equal(t, int64(len(l1)+1), frames[0].EndOffset)
	assert.Equal(t, frames[0].EndOffset, frames[1].StartOffset)
	assert.Equal(t, int64(len(l1)+len(l2)+2), frames[1].EndOffset)
	assert.Equal(t, frames[1].EndOffset, frames[2].StartOffset)
	assert.Equal(t, int64(len(l1)+len(l2)+len(l3)+3), frames[2].EndOffset)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "inbound", Inbound.String())
	assert.Equal(t, "outbound", Outbound.String())
	assert.Equal(t, "unknown", DirectionUnknown.String())
}
