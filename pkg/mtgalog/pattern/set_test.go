package pattern_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtgalog/mtgalog-go/pkg/mtgalog/pattern"
)

func mustSet(t *testing.T, yaml string) *pattern.Set {
	t.Helper()
	pf, err := pattern.LoadBytes([]byte(yaml))
	require.NoError(t, err)
	s, err := pattern.NewSet(pf)
	require.NoError(t, err)
	return s
}

func TestNewSet_Nil(t *testing.T) {
	_, err := pattern.NewSet(nil)
	require.Error(t, err)
}

func TestNewSet_InvalidRegex(t *testing.T) {
	pf, err := pattern.Load("testdata/invalid_regex.yaml")
	require.NoError(t, err)

	_, err = pattern.NewSet(pf)
	require.Error(t, err)
	var patErr *pattern.PatternError
	require.True(t, errors.As(err, &patErr))
	assert.Equal(t, "broken", patErr.ID)
}

func TestSet_MatchCaptureGroups(t *testing.T) {
	s := mustSet(t, `version: 1
patterns:
  - id: deck_submit
    action: deck_submit
    regex: 'EventSetDeckV2.*"DeckId":\s*"(?P<deck_id>[0-9a-f-]+)"'
`)

	action, detail, ok := s.Match(`EventSetDeckV2 {"DeckId": "4a2b-11"}`)
	require.True(t, ok)
	assert.Equal(t, "deck_submit", action)
	assert.Equal(t, "4a2b-11", detail["deck_id"])
}

func TestSet_FirstMatchWins(t *testing.T) {
	s := mustSet(t, `version: 1
patterns:
  - id: specific
    action: specific
    regex: 'EventJoin.*Ranked'
  - id: general
    action: general
    regex: 'EventJoin'
`)

	action, _, ok := s.Match("EventJoin Ranked_Bo1")
	require.True(t, ok)
	assert.Equal(t, "specific", action)

	action, _, ok = s.Match("EventJoin Play_Queue")
	require.True(t, ok)
	assert.Equal(t, "general", action)
}

func TestSet_NoMatch(t *testing.T) {
	s := mustSet(t, `version: 1
patterns:
  - id: join
    action: event_join
    regex: 'EventJoin'
`)

	action, detail, ok := s.Match("Unrelated line")
	assert.False(t, ok)
	assert.Empty(t, action)
	assert.Nil(t, detail)
}

func TestSet_NoNamedGroupsNilDetail(t *testing.T) {
	s := mustSet(t, `version: 1
patterns:
  - id: rank
    action: rank_update
    regex: 'RankGetCombinedRankInfo'
`)

	action, detail, ok := s.Match("RankGetCombinedRankInfo {}")
	require.True(t, ok)
	assert.Equal(t, "rank_update", action)
	assert.Nil(t, detail)
}

func TestSet_Len(t *testing.T) {
	s := mustSet(t, `version: 1
patterns:
  - id: a
    action: a
    regex: 'a'
  - id: b
    action: b
    regex: 'b'
`)
	assert.Equal(t, 2, s.Len())
}
