package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{
		"turnInfo": {"turnNumber": 3, "activePlayer": 1, "phase": "Phase_Main1"},
		"players": [
			{"systemSeatNumber": 1, "lifeTotal": 20},
			{"systemSeatNumber": 2, "lifeTotal": 17}
		],
		"negative": -4.0,
		"flag": true,
		"missingName": null
	}`))
	require.NoError(t, err)

	assert.Equal(t, Object, v.Kind())
	assert.Equal(t, 3, v.Path("turnInfo", "turnNumber").IntOr(0))
	assert.Equal(t, "Phase_Main1", v.Path("turnInfo", "phase").StrOr(""))

	players := v.Get("players")
	assert.Equal(t, 2, players.Len())
	assert.Equal(t, 17, players.At(1).Get("lifeTotal").IntOr(0))

	n, ok := v.Get("negative").Int()
	assert.True(t, ok)
	assert.Equal(t, -4, n)

	b, ok := v.Get("flag").BoolVal()
	assert.True(t, ok)
	assert.True(t, b)

	assert.Equal(t, Null, v.Get("missingName").Kind())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"unterminated": `))
	assert.Error(t, err)
}

func TestZeroValueNavigation(t *testing.T) {
	// Everything navigable from the zero Value must stay total.
	var v Value

	assert.False(t, v.IsValid())
	assert.False(t, v.Get("x").Path("y", "z").At(3).IsValid())
	assert.Equal(t, "fallback", v.Get("x").StrOr("fallback"))
	assert.Equal(t, 9, v.Get("x").IntOr(9))
	assert.Nil(t, v.Arr())
	assert.Nil(t, v.Keys())
	assert.Equal(t, 0, v.Len())

	_, ok := v.Str()
	assert.False(t, ok)
	_, ok = v.Int()
	assert.False(t, ok)
	_, ok = v.Float()
	assert.False(t, ok)
	_, ok = v.BoolVal()
	assert.False(t, ok)
}

func TestWrongShapeAccess(t *testing.T) {
	v, err := Parse([]byte(`{"ids": [1, "two", 3], "name": "Forest"}`))
	require.NoError(t, err)

	// Object access on a string, index access on an object.
	assert.False(t, v.Get("name").Get("sub").IsValid())
	assert.False(t, v.At(0).IsValid())

	// Non-numeric array elements are skipped, not errors.
	assert.Equal(t, []int{1, 3}, v.Get("ids").IntsOf())

	// String coercion does not apply to numbers.
	_, ok := v.Get("ids").At(0).Str()
	assert.False(t, ok)
}
