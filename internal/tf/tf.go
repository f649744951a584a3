// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tf keeps the tree of coordinate frames published by the transform
// broadcasters and answers "where is frame A relative to frame B at time t"
// without ever blocking.
package tf

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// ErrFrameUnavailable is returned when the requested frame pair cannot be
// resolved yet: a frame was never published, the frames are in different
// trees, or the stamp lies outside the buffered history.
var ErrFrameUnavailable = errors.New("frame transform not available")

// StampedTransform is one edge of the frame tree: the pose of Child
// expressed in Parent (parent_T_child) at Stamp.
type StampedTransform struct {
	Stamp     time.Time      `json:"stamp"`
	Parent    string         `json:"parent"`
	Child     string         `json:"child"`
	Transform geom.Transform `json:"transform"`
	Static    bool           `json:"static,omitempty"`
}

// Message is the wire payload on the tf topics.
type Message struct {
	Transforms []StampedTransform `json:"transforms"`
}

// edge holds the history of one child→parent link.
type edge struct {
	parent  string
	static  bool
	samples []StampedTransform // sorted by Stamp
}

// Directory is an in-memory frame tree. Writers are the transport
// callbacks; readers are the alignment loop.
type Directory struct {
	mu        sync.RWMutex
	edges     map[string]*edge // keyed by child frame
	retention time.Duration
	tolerance time.Duration
}

// NewDirectory creates a directory that keeps retention worth of dynamic
// samples per edge and tolerates lookups up to tolerance outside of the
// buffered range.
func NewDirectory(retention, tolerance time.Duration) *Directory {
	return &Directory{
		edges:     make(map[string]*edge),
		retention: retention,
		tolerance: tolerance,
	}
}

// Add inserts a transform into the tree.
func (d *Directory) Add(st StampedTransform) error {
	if st.Parent == "" || st.Child == "" {
		return fmt.Errorf("tf: empty frame name (parent=%q child=%q)", st.Parent, st.Child)
	}
	if st.Parent == st.Child {
		return fmt.Errorf("tf: frame %q cannot be its own parent", st.Child)
	}
	st.Transform.Rotation = st.Transform.Rotation.Normalize()

	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.edges[st.Child]
	if !ok {
		if d.createsCycle(st.Parent, st.Child) {
			return fmt.Errorf("tf: %s -> %s would create a cycle", st.Child, st.Parent)
		}
		e = &edge{parent: st.Parent, static: st.Static}
		d.edges[st.Child] = e
	}
	if e.parent != st.Parent {
		return fmt.Errorf("tf: frame %q already has parent %q, got %q", st.Child, e.parent, st.Parent)
	}

	if st.Static || e.static {
		e.static = true
		e.samples = []StampedTransform{st}
		return nil
	}

	i := sort.Search(len(e.samples), func(i int) bool {
		return !e.samples[i].Stamp.Before(st.Stamp)
	})
	if i < len(e.samples) && e.samples[i].Stamp.Equal(st.Stamp) {
		e.samples[i] = st
	} else {
		e.samples = append(e.samples, StampedTransform{})
		copy(e.samples[i+1:], e.samples[i:])
		e.samples[i] = st
	}
	d.prune(e)
	return nil
}

// AddMessage inserts every transform of m, returning the first error.
func (d *Directory) AddMessage(m Message) error {
	var first error
	for _, st := range m.Transforms {
		if err := d.Add(st); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Frames returns the known child frames, sorted.
func (d *Directory) Frames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.edges))
	for child := range d.edges {
		out = append(out, child)
	}
	sort.Strings(out)
	return out
}

// createsCycle reports whether linking child under parent would loop.
// Caller holds the write lock.
func (d *Directory) createsCycle(parent, child string) bool {
	for f := parent; ; {
		if f == child {
			return true
		}
		e, ok := d.edges[f]
		if !ok {
			return false
		}
		f = e.parent
	}
}

// prune drops dynamic samples older than the retention window, measured
// from the newest sample. At least one sample is always kept.
func (d *Directory) prune(e *edge) {
	if d.retention <= 0 || len(e.samples) < 2 {
		return
	}
	cutoff := e.samples[len(e.samples)-1].Stamp.Add(-d.retention)
	i := 0
	for i < len(e.samples)-1 && e.samples[i].Stamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.samples = append(e.samples[:0], e.samples[i:]...)
	}
}

// lookupEdge returns parent_T_child at stamp. Caller holds the read lock.
func (d *Directory) lookupEdge(e *edge, stamp time.Time) (geom.Transform, bool) {
	n := len(e.samples)
	if n == 0 {
		return geom.Transform{}, false
	}
	if e.static || stamp.IsZero() {
		return e.samples[n-1].Transform, true
	}

	first, last := e.samples[0], e.samples[n-1]
	switch {
	case stamp.Before(first.Stamp):
		if first.Stamp.Sub(stamp) > d.tolerance {
			return geom.Transform{}, false
		}
		return first.Transform, true
	case stamp.After(last.Stamp):
		if stamp.Sub(last.Stamp) > d.tolerance {
			return geom.Transform{}, false
		}
		return last.Transform, true
	}

	i := sort.Search(n, func(i int) bool {
		return !e.samples[i].Stamp.Before(stamp)
	})
	if e.samples[i].Stamp.Equal(stamp) {
		return e.samples[i].Transform, true
	}
	a, b := e.samples[i-1], e.samples[i]
	f := float64(stamp.Sub(a.Stamp)) / float64(b.Stamp.Sub(a.Stamp))
	return geom.Interpolate(a.Transform, b.Transform, f), true
}
