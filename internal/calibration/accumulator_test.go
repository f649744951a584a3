package calibration

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

func TestAccumulator_ConstantSamples(t *testing.T) {
	a := NewAccumulator(100)
	for i := 0; i < 100; i++ {
		a.AddOriginSample(10.0, 20.0)
		a.AddHeadingSample(0.5)
	}

	require.True(t, a.IsComplete())
	res, err := a.Result()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.HeadingBias, 1e-12)
	assert.InDelta(t, 10.0, res.Origin.X, 1e-12)
	assert.InDelta(t, 20.0, res.Origin.Y, 1e-12)
}

func TestAccumulator_HeadingMeanIsArithmetic(t *testing.T) {
	a := NewAccumulator(2)
	a.AddOriginSample(0, 0)
	a.AddOriginSample(0, 0)
	a.AddHeadingSample(3.1)
	require.True(t, a.AddHeadingSample(-3.1))

	res, err := a.Result()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.HeadingBias, 1e-12)
}

func TestAccumulator_MeanOfFirstNOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := NewAccumulator(50)

	var sum float64
	for i := 0; i < 50; i++ {
		v := rng.Float64()*2 - 1
		sum += v
		a.AddHeadingSample(v)
	}
	assert.Equal(t, Finalized, a.HeadingState())
	assert.Equal(t, Accumulating, a.OriginState())
	assert.False(t, a.IsComplete())

	// Later samples are ignored.
	for i := 0; i < 20; i++ {
		a.AddHeadingSample(100)
	}
	for i := 0; i < 50; i++ {
		a.AddOriginSample(1, 2)
	}

	res, err := a.Result()
	require.NoError(t, err)
	assert.InDelta(t, sum/50, res.HeadingBias, 1e-12)
	assert.Equal(t, 50, a.Progress().HeadingCount)
}

func TestAccumulator_NotReady(t *testing.T) {
	a := NewAccumulator(3)
	_, err := a.Result()
	assert.ErrorIs(t, err, ErrNotReady)

	for i := 0; i < 3; i++ {
		a.AddOriginSample(1, 1)
	}
	_, err = a.Result()
	assert.ErrorIs(t, err, ErrNotReady, "heading track still accumulating")
}

func TestAccumulator_CompletesExactlyOnce(t *testing.T) {
	a := NewAccumulator(2)
	completions := 0
	wasComplete := false
	feed := func(done bool) {
		if done {
			completions++
		}
		if wasComplete {
			assert.True(t, a.IsComplete(), "IsComplete must be monotonic")
		}
		wasComplete = a.IsComplete()
	}

	for i := 0; i < 10; i++ {
		feed(a.AddHeadingSample(float64(i)))
		feed(a.AddOriginSample(float64(i), float64(-i)))
	}
	assert.Equal(t, 1, completions)

	first, err := a.Result()
	require.NoError(t, err)
	second, err := a.Result()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, Result{HeadingBias: 0.5, Origin: geom.Vec2{X: 0.5, Y: -0.5}}, first)
}

func TestAccumulator_IgnoresNonFinite(t *testing.T) {
	a := NewAccumulator(1)
	a.AddHeadingSample(math.NaN())
	a.AddOriginSample(math.Inf(1), 0)
	p := a.Progress()
	assert.Equal(t, 0, p.HeadingCount)
	assert.Equal(t, 0, p.OriginCount)
}

func TestNewAccumulator_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultSampleThreshold, NewAccumulator(0).Progress().Threshold)
}

func TestResult_Correct(t *testing.T) {
	r := Result{HeadingBias: math.Pi / 2, Origin: geom.Vec2{X: 10, Y: 20}}

	got := r.Correct(geom.Vec3{X: 10, Y: 25, Z: 3})
	// (0,5) rotated by -90° is (5,0).
	assert.InDelta(t, 5.0, got.X, 1e-9)
	assert.InDelta(t, 0.0, got.Y, 1e-9)
	assert.InDelta(t, 3.0, got.Z, 1e-9)

	q := r.CorrectOrientation(geom.QuaternionFromYaw(math.Pi / 2))
	assert.InDelta(t, 0.0, q.Yaw(), 1e-9)

	pos, rot := r.Pose()
	assert.Equal(t, 10.0, pos.X)
	assert.InDelta(t, math.Pi/2, rot.Yaw(), 1e-9)
}

func TestProgress_JSONRoundTrip(t *testing.T) {
	acc := NewAccumulator(1)
	acc.AddOriginSample(1, 2)

	raw, err := json.Marshal(acc.Progress())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"origin_state":"finalized"`)

	var p Progress
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, acc.Progress(), p)

	var s TrackState
	assert.Error(t, s.UnmarshalText([]byte("done")))
}
