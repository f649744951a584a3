// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter holds the per-fix heuristics applied to the satellite
// position stream: distance gating, heading gating and variance remapping.
package filter

import (
	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// FixState is the memory carried between position fixes: the last accepted
// fix and the last computed heading. It is passed in and returned by value
// so callers decide when to commit it.
type FixState struct {
	Position   geom.Vec2 `json:"position"`
	HasFix     bool      `json:"has_fix"`
	Heading    float64   `json:"heading"`
	HasHeading bool      `json:"has_heading"`
}

// Accept decides whether candidate is a plausible next fix given prev.
// The first fix is always accepted. On rejection the returned state is prev
// unchanged; on acceptance it carries candidate as the new last fix (the
// heading fields are left for the heading gate to update).
func Accept(prev FixState, candidate geom.Vec2, maxDisplacement float64) (FixState, bool) {
	if !prev.HasFix {
		next := prev
		next.Position = candidate
		next.HasFix = true
		return next, true
	}
	if geom.Distance(prev.Position, candidate) > maxDisplacement {
		return prev, false
	}
	next := prev
	next.Position = candidate
	return next, true
}
