// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geom holds the small amount of rigid-body math the alignment node
// needs: vectors, unit quaternions, rigid transforms and covariance rotation.
// Quaternion algebra is delegated to gonum's num/quat and spatial/r3.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec2 is a planar position, used for fixes and the calibrated origin.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a position or direction in a named frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY drops the vertical component.
func (v Vec3) XY() Vec2 {
	return Vec2{X: v.X, Y: v.Y}
}

func (v Vec3) vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromVec(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return fromVec(r3.Add(v.vec(), o.vec()))
}

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return fromVec(r3.Sub(v.vec(), o.vec()))
}

// Scale returns f*v.
func (v Vec3) Scale(f float64) Vec3 {
	return fromVec(r3.Scale(f, v.vec()))
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return r3.Norm(v.vec())
}

// Distance returns the planar Euclidean distance between a and b.
func Distance(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Bearing returns atan2(Δy, Δx) of the segment from a to b, in radians.
func Bearing(a, b Vec2) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	switch {
	case a > math.Pi:
		a -= 2 * math.Pi
	case a <= -math.Pi:
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the signed smallest difference a-b, wrapped into (-π, π].
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(a - b)
}

// RotateXY rotates a planar vector by angle radians about +Z.
func RotateXY(v Vec2, angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{
		X: cos*v.X - sin*v.Y,
		Y: sin*v.X + cos*v.Y,
	}
}

// Quaternion is a unit quaternion in x, y, z, w order, the layout used on
// the wire by the sensor drivers.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion is the zero rotation.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// QuaternionFromYaw returns a rotation of yaw radians about +Z.
func QuaternionFromYaw(yaw float64) Quaternion {
	return QuaternionFromAxisAngle(Vec3{Z: 1}, yaw)
}

// QuaternionFromAxisAngle returns a rotation of angle radians about axis.
func QuaternionFromAxisAngle(axis Vec3, angle float64) Quaternion {
	return fromNumber(quat.Number(r3.NewRotation(angle, axis.vec())))
}

// QuaternionFromRPY builds a rotation from roll, pitch and yaw (radians),
// applied in Z-Y-X order.
func QuaternionFromRPY(roll, pitch, yaw float64) Quaternion {
	qz := QuaternionFromAxisAngle(Vec3{Z: 1}, yaw)
	qy := QuaternionFromAxisAngle(Vec3{Y: 1}, pitch)
	qx := QuaternionFromAxisAngle(Vec3{X: 1}, roll)
	return qz.Mul(qy).Mul(qx)
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// IsZero reports whether q is the all-zero value, which drivers send when
// they have no orientation.
func (q Quaternion) IsZero() bool {
	return q == Quaternion{}
}

// Normalize returns q scaled to unit length. The zero quaternion maps to
// the identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.number()
	abs := quat.Abs(n)
	if abs == 0 {
		return IdentityQuaternion()
	}
	return fromNumber(quat.Scale(1/abs, n))
}

// Mul returns the Hamilton product q*p (apply p, then q).
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), p.number()))
}

// Conj returns the conjugate, the inverse of a unit quaternion.
func (q Quaternion) Conj() Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	return fromVec(r3.Rotation(q.Normalize().number()).Rotate(v.vec()))
}

// Dot returns the 4D inner product of q and p.
func (q Quaternion) Dot(p Quaternion) float64 {
	return q.X*p.X + q.Y*p.Y + q.Z*p.Z + q.W*p.W
}

// Yaw returns the heading component of q (rotation about +Z), in radians.
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// Slerp interpolates along the shortest arc from a (t=0) to b (t=1).
func Slerp(a, b Quaternion, t float64) Quaternion {
	a, b = a.Normalize(), b.Normalize()
	if a.Dot(b) < 0 {
		b = Quaternion{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
	}
	delta := quat.Mul(quat.Conj(a.number()), b.number())
	return fromNumber(quat.Mul(a.number(), quat.PowReal(delta, t))).Normalize()
}
