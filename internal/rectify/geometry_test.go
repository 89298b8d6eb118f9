package rectify

import (
	"testing"

	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		raw, want float64
	}{
		{-90, 0},
		{-80, 10},
		{-45.5, 44.5},
		{-45, -45},
		{-30, -30},
		{-0.5, -0.5},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, NormalizeAngle(tc.raw), 1e-12, "raw %v", tc.raw)
	}
}

func TestNormalizeAngle_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	raw := gen.Float64Range(-90, 0).SuchThat(func(v float64) bool { return v < 0 })

	properties.Property("result lies in [-45, 45)", prop.ForAll(
		func(a float64) bool {
			n := NormalizeAngle(a)
			return n >= -45 && n < 45
		},
		raw,
	))

	properties.Property("idempotent", prop.ForAll(
		func(a float64) bool {
			n := NormalizeAngle(a)
			return NormalizeAngle(n) == n
		},
		raw,
	))

	properties.TestingRun(t)
}

func TestRotationMatrix(t *testing.T) {
	m := RotationMatrix(50, 40, 30)

	cx, cy := m.Apply(50, 40)
	assert.InDelta(t, 50.0, cx, 1e-9, "centre is fixed")
	assert.InDelta(t, 40.0, cy, 1e-9)

	// counter-clockwise on screen: a point right of the centre moves up
	x, y := RotationMatrix(0, 0, 90).Apply(10, 0)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, -10.0, y, 1e-9)

	inv := m.Invert()
	for _, p := range [][2]float64{{0, 0}, {13, 77}, {-5, 12.5}} {
		tx, ty := m.Apply(p[0], p[1])
		bx, by := inv.Apply(tx, ty)
		assert.InDelta(t, p[0], bx, 1e-9)
		assert.InDelta(t, p[1], by, 1e-9)
	}

	assert.Equal(t, Affine{}, Affine{1, 2, 0, 2, 4, 0}.Invert())
}

func TestEstimateSkew(t *testing.T) {
	axis := []utils.Point{{X: 10, Y: 10}, {X: 110, Y: 10}, {X: 110, Y: 60}, {X: 10, Y: 60}}
	s := EstimateSkew(axis)
	assert.InDelta(t, -90.0, s.RawAngle, 1e-9)
	assert.InDelta(t, 0.0, s.Angle, 1e-9)
	assert.InDelta(t, 5000.0, s.Rect.Area(), 1e-6)
}
