package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a decomposed translation/rotation/scale transform.
// Composition follows the child-then-parent convention: a.Mul(b) applies a first, then b.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns the transform with zero translation, identity rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Translation: mgl32.Vec3{0, 0, 0},
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
}

// Mul composes t with a parent transform. The result maps a point first through t and then through parent.
// Non-uniform parent scale combined with child rotation cannot be represented exactly in TRS form; in that
// case the result matches the usual engine approximation (component-wise scale product).
//
// Parameters:
//   - parent: the transform applied after t
//
// Returns:
//   - Transform: the composed transform
func (t Transform) Mul(parent Transform) Transform {
	scaled := MulElem(parent.Scale, t.Translation)
	return Transform{
		Translation: parent.Rotation.Rotate(scaled).Add(parent.Translation),
		Rotation:    parent.Rotation.Mul(t.Rotation).Normalize(),
		Scale:       MulElem(parent.Scale, t.Scale),
	}
}

// Mat4 returns the column-major matrix T * R * S for this transform.
//
// Returns:
//   - mgl32.Mat4: the transform matrix
func (t Transform) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Inverse returns the transform that undoes t, computed through the matrix form.
//
// Returns:
//   - Transform: the inverse transform
func (t Transform) Inverse() Transform {
	return TransformFromMat4(t.Mat4().Inv())
}

// ApproxEqual reports whether two transforms match within the given threshold.
// Quaternions q and -q describe the same rotation and compare equal.
//
// Parameters:
//   - other: the transform to compare against
//   - threshold: the per-component tolerance
//
// Returns:
//   - bool: true if every component lies within the threshold
func (t Transform) ApproxEqual(other Transform, threshold float32) bool {
	if !t.Translation.ApproxEqualThreshold(other.Translation, threshold) {
		return false
	}
	if !t.Scale.ApproxEqualThreshold(other.Scale, threshold) {
		return false
	}
	q := other.Rotation
	if t.Rotation.Dot(q) < 0 {
		q = q.Scale(-1)
	}
	return t.Rotation.ApproxEqualThreshold(q, threshold)
}

// TransformFromMat4 decomposes a column-major matrix into translation, rotation and scale.
// Shear is discarded. A negative determinant is folded into the X scale axis.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - Transform: the decomposed transform
func TransformFromMat4(m mgl32.Mat4) Transform {
	var t Transform

	t.Translation = mgl32.Vec3{m[12], m[13], m[14]}

	sx := vectorLength(m[0], m[1], m[2])
	sy := vectorLength(m[4], m[5], m[6])
	sz := vectorLength(m[8], m[9], m[10])
	if m.Det() < 0 {
		sx = -sx
	}
	t.Scale = mgl32.Vec3{sx, sy, sz}

	// Avoid division by zero
	if abs32(sx) < 0.0001 {
		sx = 1
	}
	if abs32(sy) < 0.0001 {
		sy = 1
	}
	if abs32(sz) < 0.0001 {
		sz = 1
	}

	// Rotation matrix in row-major order built from the normalized columns.
	r := [9]float32{
		m[0] / sx, m[4] / sy, m[8] / sz,
		m[1] / sx, m[5] / sy, m[9] / sz,
		m[2] / sx, m[6] / sy, m[10] / sz,
	}
	t.Rotation = matrixToQuaternion(r)

	return t
}
