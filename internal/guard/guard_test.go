package guard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

var res = grounding.New(schemas.Screen{Width: 1920, Height: 1080}, 320)

func click(c schemas.Coord) schemas.Action {
	return schemas.Action{Kind: schemas.KindClick, Target: c}
}

func active(g *Guard) bool {
	_, ok := g.Region()
	return ok
}

func TestGuard_Lifecycle(t *testing.T) {
	g := New(0.08)
	assert.False(t, active(g))
	_, ok := g.Region()
	assert.False(t, ok)

	r := schemas.RectFromLTRB(800, 40, 860, 70)
	g.Set(r)
	got, ok := g.Region()
	require.True(t, ok)
	assert.Equal(t, r, got)

	replacement := schemas.RectFromLTRB(0, 0, 10, 10)
	g.Set(replacement)
	got, _ = g.Region()
	assert.Equal(t, replacement, got, "set replaces the previous region")

	g.Clear()
	assert.False(t, active(g))
}

func TestGuard_Expire(t *testing.T) {
	g := New(0.08)
	assert.False(t, g.Expire(0.5), "nothing to expire while unset")

	g.Set(schemas.RectFromLTRB(0, 0, 10, 10))
	assert.False(t, g.Expire(0.08), "the threshold itself keeps the region")
	assert.False(t, g.Expire(math.NaN()))
	assert.True(t, active(g))

	assert.True(t, g.Expire(0.0801))
	assert.False(t, active(g))
}

func TestGuard_Check(t *testing.T) {
	aim := schemas.RectFromLTRB(800, 40, 860, 70)

	t.Run("unset rejects every click", func(t *testing.T) {
		g := New(0.08)
		v := g.Check(click(schemas.PixelCoord{X: 830, Y: 55}), res)
		assert.False(t, v.Allowed)
		assert.Equal(t, ReasonWithoutAim, v.Reason)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		g := New(0.08)
		g.Set(aim)
		v := g.Check(schemas.Action{Kind: schemas.KindDoubleClick}, res)
		assert.False(t, v.Allowed)
		assert.Equal(t, ReasonMissingCoords, v.Reason)
	})

	t.Run("containment is half open", func(t *testing.T) {
		g := New(0.08)
		g.Set(aim)
		testCases := []struct {
			p       schemas.PixelCoord
			allowed bool
		}{
			{schemas.PixelCoord{X: 800, Y: 40}, true},
			{schemas.PixelCoord{X: 859, Y: 69}, true},
			{schemas.PixelCoord{X: 860, Y: 55}, false},
			{schemas.PixelCoord{X: 830, Y: 70}, false},
			{schemas.PixelCoord{X: 799, Y: 55}, false},
		}
		for _, tc := range testCases {
			v := g.Check(click(tc.p), res)
			assert.Equal(t, tc.allowed, v.Allowed, "%+v", tc.p)
			if !tc.allowed {
				assert.Equal(t, ReasonOutsideAim, v.Reason)
			}
		}
	})

	t.Run("bbox and normalized targets resolve before containment", func(t *testing.T) {
		g := New(0.08)
		g.Set(aim)

		v := g.Check(click(schemas.BBoxCoord{Box: aim}), res)
		require.True(t, v.Allowed)
		assert.Equal(t, schemas.Point{X: 830, Y: 55}, v.Point)

		v = g.Check(click(schemas.NormalizedCoord{X: 0.5, Y: 0.5}), res)
		assert.False(t, v.Allowed)
		assert.Equal(t, schemas.Point{X: 960, Y: 540}, v.Point)
	})

	t.Run("non click kinds are not gated here", func(t *testing.T) {
		g := New(0.08)
		v := g.Check(schemas.Action{Kind: schemas.KindMove, Target: schemas.PixelCoord{}}, res)
		assert.False(t, v.Allowed)
		assert.Equal(t, ReasonNotApplicable, v.Reason)
	})
}
