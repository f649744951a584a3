// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package odometry defines the pose-with-covariance message shared by the
// satellite position stream and the point-cloud odometry stream.
package odometry

import (
	"time"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

// Covariance indices of the position variances in the row-major 6x6 pose
// covariance (x y z roll pitch yaw).
const (
	VarX = 0
	VarY = 7
	VarZ = 14
)

// Pose is a position and orientation.
type Pose struct {
	Position    geom.Vec3       `json:"position"`
	Orientation geom.Quaternion `json:"orientation"`
}

// Twist is a linear and angular velocity.
type Twist struct {
	Linear  geom.Vec3 `json:"linear"`
	Angular geom.Vec3 `json:"angular"`
}

// Odometry is the pose of ChildFrameID expressed in FrameID at Stamp.
type Odometry struct {
	Stamp        time.Time   `json:"stamp"`
	FrameID      string      `json:"frame_id"`
	ChildFrameID string      `json:"child_frame_id"`
	Pose         Pose        `json:"pose"`
	Covariance   [36]float64 `json:"covariance"`
	Twist        Twist       `json:"twist"`
}

// Transformed returns o with its pose mapped through t and its covariance
// re-expressed in the rotated frame. Velocities are rotated as well.
func (o Odometry) Transformed(t geom.Transform) Odometry {
	out := o
	out.Pose.Position = t.Apply(o.Pose.Position)
	out.Pose.Orientation = t.ApplyRotation(o.Pose.Orientation)
	out.Covariance = geom.RotateCovariance6(o.Covariance, t.Rotation)
	out.Twist.Linear = t.Rotation.Rotate(o.Twist.Linear)
	out.Twist.Angular = t.Rotation.Rotate(o.Twist.Angular)
	return out
}

// PositionVariance returns the x, y and z variances.
func (o Odometry) PositionVariance() geom.Vec3 {
	return geom.Vec3{X: o.Covariance[VarX], Y: o.Covariance[VarY], Z: o.Covariance[VarZ]}
}
