// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tf

import (
	"fmt"
	"time"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// Resolver answers frame queries for the alignment pipeline.
type Resolver interface {
	// Resolve returns target_T_source at stamp, or an error wrapping
	// ErrFrameUnavailable. It never waits for data to arrive.
	Resolve(source, target string, stamp time.Time) (geom.Transform, error)
}

// Resolve walks both frames up to their common ancestor and composes the
// edges along the way. A zero stamp means "latest known".
func (d *Directory) Resolve(source, target string, stamp time.Time) (geom.Transform, error) {
	if source == target {
		return geom.Identity(), nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	// ancestor frame -> ancestor_T_source
	fromSource := map[string]geom.Transform{source: geom.Identity()}
	acc := geom.Identity()
	var stale error
	for f := source; ; {
		e, ok := d.edges[f]
		if !ok {
			break
		}
		t, ok := d.lookupEdge(e, stamp)
		if !ok {
			// The target may still be below this edge.
			stale = fmt.Errorf("%s -> %s at %s: %w", f, e.parent, stamp.Format(time.RFC3339Nano), ErrFrameUnavailable)
			break
		}
		acc = t.Compose(acc)
		f = e.parent
		fromSource[f] = acc
	}

	accTarget := geom.Identity() // ancestor_T_target
	for f := target; ; {
		if srcT, ok := fromSource[f]; ok {
			// target_T_source = (ancestor_T_target)^-1 * ancestor_T_source
			return accTarget.Inverse().Compose(srcT), nil
		}
		e, ok := d.edges[f]
		if !ok {
			if stale != nil {
				return geom.Transform{}, stale
			}
			return geom.Transform{}, fmt.Errorf("%s and %s are not connected: %w", source, target, ErrFrameUnavailable)
		}
		t, ok := d.lookupEdge(e, stamp)
		if !ok {
			return geom.Transform{}, fmt.Errorf("%s -> %s at %s: %w", f, e.parent, stamp.Format(time.RFC3339Nano), ErrFrameUnavailable)
		}
		accTarget = t.Compose(accTarget)
		f = e.parent
	}
}
