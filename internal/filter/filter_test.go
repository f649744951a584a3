package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

func TestAccept_FirstFixSeedsState(t *testing.T) {
	state, ok := Accept(FixState{}, geom.Vec2{X: 1000, Y: -1000}, 5)
	require.True(t, ok)
	assert.True(t, state.HasFix)
	assert.Equal(t, geom.Vec2{X: 1000, Y: -1000}, state.Position)
}

func TestAccept_DisplacementBound(t *testing.T) {
	prev := FixState{Position: geom.Vec2{}, HasFix: true}

	state, ok := Accept(prev, geom.Vec2{X: 3, Y: 3}, 5.0)
	require.True(t, ok, "distance ~4.24 is within 5")
	assert.Equal(t, geom.Vec2{X: 3, Y: 3}, state.Position)

	rejected, ok := Accept(state, geom.Vec2{X: 10, Y: 10}, 5.0)
	assert.False(t, ok, "distance ~9.9 exceeds 5")
	assert.Equal(t, state, rejected, "a rejected fix never becomes the previous fix")
}

func TestAccept_BoundIsInclusive(t *testing.T) {
	prev := FixState{Position: geom.Vec2{}, HasFix: true}
	_, ok := Accept(prev, geom.Vec2{X: 3, Y: 4}, 5.0)
	assert.True(t, ok)
	_, ok = Accept(prev, geom.Vec2{X: 3, Y: 4.0001}, 5.0)
	assert.False(t, ok)
}

func TestAccept_Sequence(t *testing.T) {
	fixes := []geom.Vec2{{X: 0}, {X: 1}, {X: 50}, {X: 2}, {X: 2.5, Y: 1}, {X: -30}, {X: 3}}
	want := []bool{true, true, false, true, true, false, true}

	var state FixState
	for i, f := range fixes {
		var ok bool
		prevPos := state.Position
		state, ok = Accept(state, f, 2.0)
		assert.Equal(t, want[i], ok, "fix %d", i)
		if !ok {
			assert.Equal(t, prevPos, state.Position, "fix %d", i)
		}
	}
	assert.Equal(t, geom.Vec2{X: 3}, state.Position)
}

func TestHeadingBetween(t *testing.T) {
	h, ok := HeadingBetween(geom.Vec2{}, geom.Vec2{X: 1, Y: 1})
	require.True(t, ok)
	assert.InDelta(t, math.Pi/4, h, 1e-12)

	_, ok = HeadingBetween(geom.Vec2{X: 10, Y: 20}, geom.Vec2{X: 10, Y: 20})
	assert.False(t, ok)
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name                         string
		previous, heading, threshold float64
		want                         bool
	}{
		{"same", 0.5, 0.5, 0.1, true},
		{"edge", 0.5, 0.6, 0.1 + 1e-12, true},
		{"outside", 0.5, 0.7, 0.1, false},
		{"across seam", math.Pi - 0.05, -math.Pi + 0.05, 0.2, true},
		{"across seam outside", math.Pi - 0.05, -math.Pi + 0.3, 0.2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinTolerance(tt.previous, tt.heading, tt.threshold))
		})
	}
}

func TestGateHeading(t *testing.T) {
	state, ok := GateHeading(FixState{}, 1.0, 0.1)
	require.True(t, ok, "first heading is accepted")
	assert.True(t, state.HasHeading)

	state, ok = GateHeading(state, 1.05, 0.1)
	require.True(t, ok)
	assert.Equal(t, 1.05, state.Heading)

	turned, ok := GateHeading(state, 2.0, 0.1)
	assert.False(t, ok)
	assert.Equal(t, 2.0, turned.Heading, "out of tolerance still becomes the reference")
	assert.Equal(t, state.Position, turned.Position)

	_, ok = GateHeading(turned, 2.02, 0.1)
	assert.True(t, ok, "next heading is compared against the turned one")
}

func TestRemap_Scenario(t *testing.T) {
	r := DefaultRemapper()
	assert.Equal(t, 25.0, r.Remap(0.0049))
	assert.Equal(t, 0.0049, r.Remap(25.0))
	assert.Equal(t, 2.0, r.Remap(2.0))
	assert.Equal(t, 25.0, r.Remap(1.0))
}

func TestRemap_Involution(t *testing.T) {
	r := DefaultRemapper()
	for _, v := range []float64{DefaultSmallVariance, DefaultLargeVariance} {
		assert.Equal(t, v, r.Remap(r.Remap(v)))
	}
	for _, v := range []float64{0, 0.1, 2, 24.9, 100, -1} {
		assert.Equal(t, v, r.Remap(v), "identity outside the bands")
	}
}

func TestRemap_CustomBands(t *testing.T) {
	r := Remapper{SmallBand: []float64{0.25}, LargeBand: 9, Tolerance: 0.01}
	require.NoError(t, r.Validate())
	assert.Equal(t, 9.0, r.Remap(0.255))
	assert.Equal(t, 0.25, r.Remap(9.0))
}

func TestRemapper_Validate(t *testing.T) {
	assert.NoError(t, DefaultRemapper().Validate())
	assert.Error(t, Remapper{LargeBand: 25}.Validate())
	assert.Error(t, Remapper{SmallBand: []float64{25}, LargeBand: 25}.Validate())
	assert.Error(t, Remapper{SmallBand: []float64{1}, LargeBand: 25, Tolerance: -1}.Validate())
}

func TestRemapPositionCovariance(t *testing.T) {
	var cov [36]float64
	cov[0], cov[7], cov[14] = 0.0049, 0.0049, 2.0
	cov[21] = 25 // orientation variances are left alone

	DefaultRemapper().RemapPositionCovariance(&cov)
	assert.Equal(t, 25.0, cov[0])
	assert.Equal(t, 25.0, cov[7])
	assert.Equal(t, 2.0, cov[14])
	assert.Equal(t, 25.0, cov[21])
}
