package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// MulElem multiplies two vectors component by component.
//
// Parameters:
//   - a: the left-hand vector
//   - b: the right-hand vector
//
// Returns:
//   - mgl32.Vec3: the component-wise product
func MulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// IsUnitScale reports whether every component of a scale vector is within tolerance of one.
//
// Parameters:
//   - s: the scale vector
//   - tolerance: the allowed deviation from one
//
// Returns:
//   - bool: true if s is (1,1,1) within tolerance
func IsUnitScale(s mgl32.Vec3, tolerance float32) bool {
	return s.ApproxEqualThreshold(mgl32.Vec3{1, 1, 1}, tolerance)
}

// vectorLength computes the length of a 3D vector.
func vectorLength(x, y, z float32) float32 {
	return math32.Sqrt(x*x + y*y + z*z)
}

func abs32(v float32) float32 {
	return math32.Abs(v)
}

// matrixToQuaternion converts a 3x3 rotation matrix to a quaternion.
// Matrix is in row-major order: [r00, r01, r02, r10, r11, r12, r20, r21, r22].
func matrixToQuaternion(m [9]float32) mgl32.Quat {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[3], m[4], m[5]
	r20, r21, r22 := m[6], m[7], m[8]

	trace := r00 + r11 + r22

	var x, y, z, w float32

	if trace > 0 {
		s := math32.Sqrt(trace+1.0) * 2
		w = 0.25 * s
		x = (r21 - r12) / s
		y = (r02 - r20) / s
		z = (r10 - r01) / s
	} else if r00 > r11 && r00 > r22 {
		s := math32.Sqrt(1.0+r00-r11-r22) * 2
		w = (r21 - r12) / s
		x = 0.25 * s
		y = (r01 + r10) / s
		z = (r02 + r20) / s
	} else if r11 > r22 {
		s := math32.Sqrt(1.0+r11-r00-r22) * 2
		w = (r02 - r20) / s
		x = (r01 + r10) / s
		y = 0.25 * s
		z = (r12 + r21) / s
	} else {
		s := math32.Sqrt(1.0+r22-r00-r11) * 2
		w = (r10 - r01) / s
		x = (r02 + r20) / s
		y = (r12 + r21) / s
		z = 0.25 * s
	}

	q := mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}}
	if q.Len() > 0.0001 {
		q = q.Normalize()
	}
	return q
}
