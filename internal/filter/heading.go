// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import (
	"math"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// minHeadingBaseline is the shortest displacement between two accepted
// fixes that still yields a usable bearing (metres).
const minHeadingBaseline = 1e-6

// HeadingBetween returns the bearing from one accepted fix to the next. ok
// is false when the two fixes coincide and no bearing exists.
func HeadingBetween(from, to geom.Vec2) (heading float64, ok bool) {
	if geom.Distance(from, to) < minHeadingBaseline {
		return 0, false
	}
	return geom.Bearing(from, to), true
}

// WithinTolerance reports whether heading lies in
// [previous-threshold, previous+threshold], comparing across the ±π seam.
func WithinTolerance(previous, heading, threshold float64) bool {
	return math.Abs(geom.AngleDiff(heading, previous)) <= threshold
}

// GateHeading checks heading against the last computed heading held in
// state and reports whether it is within threshold. The returned state
// always carries heading as the new reference, in or out of tolerance.
// With no previous heading the sample is within tolerance.
func GateHeading(state FixState, heading, threshold float64) (FixState, bool) {
	ok := !state.HasHeading || WithinTolerance(state.Heading, heading, threshold)
	state.Heading = heading
	state.HasHeading = true
	return state, ok
}
