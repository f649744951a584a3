// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration averages the first samples of a run into a fixed
// origin offset and heading bias.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// DefaultSampleThreshold is the number of samples each track averages.
const DefaultSampleThreshold = 100

// ErrNotReady is returned by Result before both tracks are finalized.
var ErrNotReady = errors.New("calibration not complete")

// TrackState is the lifecycle of one accumulation track.
type TrackState int

const (
	Accumulating TrackState = iota
	Finalized
)

func (s TrackState) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s TrackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state written by MarshalText.
func (s *TrackState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "accumulating":
		*s = Accumulating
	case "finalized":
		*s = Finalized
	default:
		return fmt.Errorf("unknown track state %q", text)
	}
	return nil
}

// Result is the immutable outcome of calibration.
type Result struct {
	HeadingBias float64   `json:"heading_bias"` // radians
	Origin      geom.Vec2 `json:"origin"`
}

// Pose renders the result the way it is published on the calibration
// channel: the origin as position and the heading bias as a yaw.
func (r Result) Pose() (geom.Vec3, geom.Quaternion) {
	return geom.Vec3{X: r.Origin.X, Y: r.Origin.Y}, geom.QuaternionFromYaw(r.HeadingBias)
}

// Correct maps a body-frame position into the calibrated frame: subtract
// the origin, then rotate by -HeadingBias.
func (r Result) Correct(p geom.Vec3) geom.Vec3 {
	xy := geom.RotateXY(geom.Vec2{X: p.X - r.Origin.X, Y: p.Y - r.Origin.Y}, -r.HeadingBias)
	return geom.Vec3{X: xy.X, Y: xy.Y, Z: p.Z}
}

// CorrectOrientation removes the heading bias from an orientation.
func (r Result) CorrectOrientation(q geom.Quaternion) geom.Quaternion {
	return geom.QuaternionFromYaw(-r.HeadingBias).Mul(q.Normalize()).Normalize()
}

// track is a running sum over one or two dimensions.
type track struct {
	state TrackState
	sum   [2]float64
	count int
	mean  [2]float64
}

func (t *track) add(threshold int, values ...float64) bool {
	if t.state == Finalized {
		return false
	}
	for i, v := range values {
		t.sum[i] += v
	}
	t.count++
	if t.count >= threshold {
		for i := range values {
			t.mean[i] = t.sum[i] / float64(t.count)
		}
		t.state = Finalized
		return true
	}
	return false
}

// Progress is a snapshot of both tracks.
type Progress struct {
	Threshold    int        `json:"threshold"`
	HeadingCount int        `json:"heading_count"`
	HeadingState TrackState `json:"heading_state"`
	OriginCount  int        `json:"origin_count"`
	OriginState  TrackState `json:"origin_state"`
	Complete     bool       `json:"complete"`
}

// Accumulator owns the heading and origin tracks. It is not safe for
// concurrent use; the alignment loop is its only caller.
type Accumulator struct {
	threshold int
	heading   track
	origin    track
	result    *Result
}

// NewAccumulator returns an accumulator that finalizes each track after
// threshold samples. Non-positive thresholds fall back to the default.
func NewAccumulator(threshold int) *Accumulator {
	if threshold <= 0 {
		threshold = DefaultSampleThreshold
	}
	return &Accumulator{threshold: threshold}
}

// AddHeadingSample feeds one heading (radians). It reports whether this
// sample completed the whole calibration. The track mean is the arithmetic
// mean of the raw angles, so headings straddling ±π (3.1 and -3.1) average
// to about 0 rather than π.
func (a *Accumulator) AddHeadingSample(angle float64) bool {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return false
	}
	if !a.heading.add(a.threshold, angle) {
		return false
	}
	return a.finalize()
}

// AddOriginSample feeds one planar position. It reports whether this
// sample completed the whole calibration.
func (a *Accumulator) AddOriginSample(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return false
	}
	if !a.origin.add(a.threshold, x, y) {
		return false
	}
	return a.finalize()
}

func (a *Accumulator) finalize() bool {
	if a.result != nil || a.heading.state != Finalized || a.origin.state != Finalized {
		return false
	}
	a.result = &Result{
		HeadingBias: a.heading.mean[0],
		Origin:      geom.Vec2{X: a.origin.mean[0], Y: a.origin.mean[1]},
	}
	return true
}

// HeadingState returns the state of the heading track.
func (a *Accumulator) HeadingState() TrackState { return a.heading.state }

// OriginState returns the state of the origin track.
func (a *Accumulator) OriginState() TrackState { return a.origin.state }

// IsComplete reports whether both tracks are finalized.
func (a *Accumulator) IsComplete() bool {
	return a.result != nil
}

// Result returns the calibration, or ErrNotReady.
func (a *Accumulator) Result() (Result, error) {
	if a.result == nil {
		return Result{}, ErrNotReady
	}
	return *a.result, nil
}

// Progress returns the current counts of both tracks.
func (a *Accumulator) Progress() Progress {
	return Progress{
		Threshold:    a.threshold,
		HeadingCount: a.heading.count,
		HeadingState: a.heading.state,
		OriginCount:  a.origin.count,
		OriginState:  a.origin.state,
		Complete:     a.IsComplete(),
	}
}
