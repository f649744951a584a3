// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geom

import (
	"gonum.org/v1/gonum/mat"
)

// Transform is a rigid-body transform: rotate, then translate.
// A Transform named target_T_source maps coordinates expressed in the
// source frame into the target frame.
type Transform struct {
	Translation Vec3       `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// Identity returns the transform that leaves every point unchanged.
func Identity() Transform {
	return Transform{Rotation: IdentityQuaternion()}
}

// Apply maps point p through t.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Rotation.Rotate(p).Add(t.Translation)
}

// ApplyRotation maps orientation q through the rotational part of t.
func (t Transform) ApplyRotation(q Quaternion) Quaternion {
	return t.Rotation.Normalize().Mul(q.Normalize()).Normalize()
}

// Compose returns t∘o, the transform that applies o first and then t.
func (t Transform) Compose(o Transform) Transform {
	return Transform{
		Translation: t.Apply(o.Translation),
		Rotation:    t.Rotation.Normalize().Mul(o.Rotation.Normalize()).Normalize(),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Normalize().Conj()
	return Transform{
		Translation: inv.Rotate(t.Translation).Scale(-1),
		Rotation:    inv,
	}
}

// Interpolate blends a and b; translation is linear and rotation is slerped.
func Interpolate(a, b Transform, f float64) Transform {
	return Transform{
		Translation: a.Translation.Add(b.Translation.Sub(a.Translation).Scale(f)),
		Rotation:    Slerp(a.Rotation, b.Rotation, f),
	}
}

// RotationMatrix returns the 3x3 rotation matrix of q.
func RotationMatrix(q Quaternion) *mat.Dense {
	q = q.Normalize()
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// RotateCovariance6 re-expresses a row-major 6x6 pose covariance
// (x y z roll pitch yaw) in a frame rotated by q: C' = R C Rᵀ with
// R = diag(Rq, Rq).
func RotateCovariance6(cov [36]float64, q Quaternion) [36]float64 {
	rq := RotationMatrix(q)
	r := mat.NewDense(6, 6, nil)
	r.Slice(0, 3, 0, 3).(*mat.Dense).Copy(rq)
	r.Slice(3, 6, 3, 6).(*mat.Dense).Copy(rq)

	c := mat.NewDense(6, 6, cov[:])
	var out mat.Dense
	out.Product(r, c, r.T())

	var res [36]float64
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			res[i*6+j] = out.At(i, j)
		}
	}
	return res
}

// RotateCovariance3 is RotateCovariance6 for a row-major 3x3 covariance.
func RotateCovariance3(cov [9]float64, q Quaternion) [9]float64 {
	rq := RotationMatrix(q)
	c := mat.NewDense(3, 3, cov[:])
	var out mat.Dense
	out.Product(rq, c, rq.T())

	var res [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			res[i*3+j] = out.At(i, j)
		}
	}
	return res
}
