// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

type mockSource struct {
	start   time.Time
	frameID string
	now     func() time.Time
}

// NewMockSource creates a mock orientation source that generates a slowly
// yawing, gently rocking sensor in frameID.
func NewMockSource(frameID string) Source {
	return newMockSource(frameID, time.Now)
}

func newMockSource(frameID string, now func() time.Time) *mockSource {
	return &mockSource{start: now(), frameID: frameID, now: now}
}

func (m *mockSource) Next() (Reading, error) {
	t := m.now()
	elapsed := t.Sub(m.start).Seconds()

	roll := 2 * math.Pi / 180 * math.Sin(elapsed)
	pitch := 1.5 * math.Pi / 180 * math.Cos(elapsed*0.7)
	yaw := geom.NormalizeAngle(0.05 * elapsed)

	return Reading{
		Stamp:              t,
		FrameID:            m.frameID,
		Orientation:        geom.QuaternionFromRPY(roll, pitch, yaw),
		AngularVelocity:    geom.Vec3{Z: 0.05},
		LinearAcceleration: geom.Vec3{Z: 9.81},
	}, nil
}
