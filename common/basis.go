package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBasis converts values from glTF space (right-handed, +Y up, meters) into a consumer space.
// The basis must be a rotation or a reflection; Scale multiplies every translation and position.
type SceneBasis struct {
	basis   mgl32.Mat4
	inverse mgl32.Mat4
	scale   float32
	ident   bool
}

// NewSceneBasis creates a converter from a basis matrix and a scale factor.
//
// Parameters:
//   - basis: the change-of-basis matrix (column-major, no translation)
//   - scale: the unit scale applied to positions and translations
//
// Returns:
//   - SceneBasis: the converter
func NewSceneBasis(basis mgl32.Mat4, scale float32) SceneBasis {
	return SceneBasis{
		basis:   basis,
		inverse: basis.Inv(),
		scale:   scale,
		ident:   basis == mgl32.Ident4() && scale == 1,
	}
}

// IdentityBasis returns the converter that leaves every value unchanged.
//
// Returns:
//   - SceneBasis: the identity converter
func IdentityBasis() SceneBasis {
	return NewSceneBasis(mgl32.Ident4(), 1)
}

// IsIdentity reports whether the converter is a no-op.
//
// Returns:
//   - bool: true if basis is identity and scale is one
func (b SceneBasis) IsIdentity() bool {
	return b.ident
}

// Scale returns the unit scale factor.
//
// Returns:
//   - float32: the scale
func (b SceneBasis) Scale() float32 {
	return b.scale
}

// Matrix converts a transform matrix: B * M * B^-1, with the translation column scaled.
//
// Parameters:
//   - m: the matrix in glTF space
//
// Returns:
//   - mgl32.Mat4: the matrix in consumer space
func (b SceneBasis) Matrix(m mgl32.Mat4) mgl32.Mat4 {
	if b.ident {
		return m
	}
	out := b.basis.Mul4(m).Mul4(b.inverse)
	out[12] *= b.scale
	out[13] *= b.scale
	out[14] *= b.scale
	return out
}

// Position converts a point or translation: B * v * scale.
//
// Parameters:
//   - v: the vector in glTF space
//
// Returns:
//   - mgl32.Vec3: the vector in consumer space
func (b SceneBasis) Position(v mgl32.Vec3) mgl32.Vec3 {
	if b.ident {
		return v
	}
	return b.basis.Mul4x1(v.Vec4(0)).Vec3().Mul(b.scale)
}

// Direction converts a direction vector (normals, tangents) without scaling.
//
// Parameters:
//   - v: the direction in glTF space
//
// Returns:
//   - mgl32.Vec3: the direction in consumer space
func (b SceneBasis) Direction(v mgl32.Vec3) mgl32.Vec3 {
	if b.ident {
		return v
	}
	return b.basis.Mul4x1(v.Vec4(0)).Vec3()
}

// Rotation converts a rotation quaternion through its conjugated rotation matrix.
//
// Parameters:
//   - q: the rotation in glTF space
//
// Returns:
//   - mgl32.Quat: the rotation in consumer space
func (b SceneBasis) Rotation(q mgl32.Quat) mgl32.Quat {
	if b.ident {
		return q
	}
	return mgl32.Mat4ToQuat(b.basis.Mul4(q.Normalize().Mat4()).Mul4(b.inverse)).Normalize()
}

// Transform converts a TRS transform through its matrix form.
//
// Parameters:
//   - t: the transform in glTF space
//
// Returns:
//   - Transform: the transform in consumer space
func (b SceneBasis) Transform(t Transform) Transform {
	if b.ident {
		return t
	}
	return TransformFromMat4(b.Matrix(t.Mat4()))
}
