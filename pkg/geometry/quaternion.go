// Package geometry provides the rotation and reciprocal-space mesh
// calculations used throughout the diffraction pipeline: quaternion and
// rotation-matrix conversions, symmetric reciprocal meshes, and generators
// for uniform and random orientation sets.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a unit quaternion encoding a 3D rotation, stored
// scalar-first as (w, x, y, z). All components are float64; orientation
// data must keep full precision end to end because the slice resampling
// step is numerically sensitive to it.
type Quaternion [4]float64

// Norm returns the Euclidean norm of the quaternion.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalize returns the quaternion scaled to unit norm.
// A zero quaternion normalizes to the identity rotation.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Quaternion{1, 0, 0, 0}
	}
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Mul composes two rotations: the result applies r first, then q.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	a := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	b := quat.Number{Real: r[0], Imag: r[1], Jmag: r[2], Kmag: r[3]}
	c := quat.Mul(a, b)
	return Quaternion{c.Real, c.Imag, c.Jmag, c.Kmag}
}

// Conjugate returns the quaternion of the inverse rotation.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q[0], -q[1], -q[2], -q[3]}
}

// Rotation is a 3x3 rotation matrix in row-major layout.
type Rotation [3][3]float64

// RotationMatrix converts the quaternion to a 3D rotation matrix using
// the standard product expansion. The quaternion must be unit norm.
func (q Quaternion) RotationMatrix() Rotation {
	q01 := q[0] * q[1]
	q02 := q[0] * q[2]
	q03 := q[0] * q[3]
	q11 := q[1] * q[1]
	q12 := q[1] * q[2]
	q13 := q[1] * q[3]
	q22 := q[2] * q[2]
	q23 := q[2] * q[3]
	q33 := q[3] * q[3]

	return Rotation{
		{1 - 2*(q22+q33), 2 * (q12 - q03), 2 * (q13 + q02)},
		{2 * (q12 + q03), 1 - 2*(q11+q33), 2 * (q23 - q01)},
		{2 * (q13 - q02), 2 * (q23 + q01), 1 - 2*(q11+q22)},
	}
}

// Apply rotates the vector v by the rotation matrix.
func (r Rotation) Apply(v [3]float64) [3]float64 {
	return [3]float64{
		r[0][0]*v[0] + r[0][1]*v[1] + r[0][2]*v[2],
		r[1][0]*v[0] + r[1][1]*v[1] + r[1][2]*v[2],
		r[2][0]*v[0] + r[2][1]*v[1] + r[2][2]*v[2],
	}
}

// Inverse returns the inverse rotation. For a rotation matrix the
// inverse is the transpose.
func (r Rotation) Inverse() Rotation {
	var t Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r[j][i]
		}
	}
	return t
}

// Quaternion converts the rotation matrix back to a quaternion using the
// trace method, branching on the dominant diagonal element for numerical
// stability.
func (r Rotation) Quaternion() Quaternion {
	tr := r[0][0] + r[1][1] + r[2][2]
	var q Quaternion
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q[0] = 0.25 * s
		q[1] = (r[2][1] - r[1][2]) / s
		q[2] = (r[0][2] - r[2][0]) / s
		q[3] = (r[1][0] - r[0][1]) / s
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := math.Sqrt(1+r[0][0]-r[1][1]-r[2][2]) * 2
		q[0] = (r[2][1] - r[1][2]) / s
		q[1] = 0.25 * s
		q[2] = (r[0][1] + r[1][0]) / s
		q[3] = (r[0][2] + r[2][0]) / s
	case r[1][1] > r[2][2]:
		s := math.Sqrt(1+r[1][1]-r[0][0]-r[2][2]) * 2
		q[0] = (r[0][2] - r[2][0]) / s
		q[1] = (r[0][1] + r[1][0]) / s
		q[2] = 0.25 * s
		q[3] = (r[1][2] + r[2][1]) / s
	default:
		s := math.Sqrt(1+r[2][2]-r[0][0]-r[1][1]) * 2
		q[0] = (r[1][0] - r[0][1]) / s
		q[1] = (r[0][2] + r[2][0]) / s
		q[2] = (r[1][2] + r[2][1]) / s
		q[3] = 0.25 * s
	}
	return q
}

// AngleAxisQuaternion builds the quaternion for a right-handed rotation of
// theta radians about the given axis. The axis does not need to be
// normalized.
func AngleAxisQuaternion(axis [3]float64, theta float64) (Quaternion, error) {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 {
		return Quaternion{}, fmt.Errorf("rotation axis must be non-zero")
	}
	half := theta / 2
	s := math.Sin(half) / n
	return Quaternion{math.Cos(half), s * axis[0], s * axis[1], s * axis[2]}, nil
}

// NamedAxis returns the unit vector for an axis name "x", "y" or "z".
func NamedAxis(name string) ([3]float64, error) {
	switch name {
	case "x", "X":
		return [3]float64{1, 0, 0}, nil
	case "y", "Y":
		return [3]float64{0, 1, 0}, nil
	case "z", "Z":
		return [3]float64{0, 0, 1}, nil
	default:
		return [3]float64{}, fmt.Errorf("invalid axis: %s (must be x, y, or z)", name)
	}
}
