// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import (
	"errors"
	"math"
)

// Variance band markers reported by the satellite receiver. The small band
// comes from the unfiltered single-point solution, the large band from the
// smoothed one.
const (
	DefaultSmallVariance = 0.0049
	DefaultUnitVariance  = 1.0
	DefaultLargeVariance = 25.0
	DefaultBandTolerance = 1e-6
)

// Remapper swaps the two variance bands so the smoothed stream is reported
// with the low variance and the unfiltered stream with the high one.
type Remapper struct {
	// SmallBand lists the values recognised as the small band. The first
	// entry is what large-band values are rewritten to.
	SmallBand []float64
	// LargeBand is the value recognised as the large band and the value
	// small-band inputs are rewritten to.
	LargeBand float64
	// Tolerance is the absolute slack when matching a band marker.
	Tolerance float64
}

// DefaultRemapper returns the receiver's factory band markers.
func DefaultRemapper() Remapper {
	return Remapper{
		SmallBand: []float64{DefaultSmallVariance, DefaultUnitVariance},
		LargeBand: DefaultLargeVariance,
		Tolerance: DefaultBandTolerance,
	}
}

// Validate checks that the bands are usable and do not overlap.
func (r Remapper) Validate() error {
	if len(r.SmallBand) == 0 {
		return errors.New("remap: small band is empty")
	}
	if r.Tolerance < 0 {
		return errors.New("remap: negative tolerance")
	}
	for _, v := range r.SmallBand {
		if math.Abs(v-r.LargeBand) <= r.Tolerance {
			return errors.New("remap: small and large bands overlap")
		}
	}
	return nil
}

func (r Remapper) matches(a, b float64) bool {
	return math.Abs(a-b) <= r.Tolerance
}

// Remap returns the corrected variance for one reported value. Values in
// neither band pass through.
func (r Remapper) Remap(v float64) float64 {
	for _, s := range r.SmallBand {
		if r.matches(v, s) {
			return r.LargeBand
		}
	}
	if r.matches(v, r.LargeBand) && len(r.SmallBand) > 0 {
		return r.SmallBand[0]
	}
	return v
}

// RemapPositionCovariance remaps the x, y and z variances of a row-major
// 6x6 pose covariance in place.
func (r Remapper) RemapPositionCovariance(cov *[36]float64) {
	for _, i := range []int{0, 7, 14} {
		cov[i] = r.Remap(cov[i])
	}
}
