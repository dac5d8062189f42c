package common

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = float32(1e-5)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.Truef(t, want.ApproxEqualThreshold(got, tol), "want %v, got %v", want, got)
}

func TestTransformMulAppliesChildThenParent(t *testing.T) {
	child := IdentityTransform()
	child.Translation = mgl32.Vec3{1, 0, 0}

	parent := IdentityTransform()
	parent.Translation = mgl32.Vec3{0, 5, 0}
	parent.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})

	world := child.Mul(parent)
	assertVec3(t, mgl32.Vec3{0, 6, 0}, world.Translation)

	// The matrix form must agree with TRS composition.
	p := parent.Mat4().Mul4(child.Mat4()).Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	assertVec3(t, p, world.Translation)
}

func TestTransformMulScalesChildTranslation(t *testing.T) {
	child := IdentityTransform()
	child.Translation = mgl32.Vec3{1, 2, 3}

	parent := IdentityTransform()
	parent.Scale = mgl32.Vec3{2, 2, 2}

	world := child.Mul(parent)
	assertVec3(t, mgl32.Vec3{2, 4, 6}, world.Translation)
	assertVec3(t, mgl32.Vec3{2, 2, 2}, world.Scale)
}

func TestTransformMat4RoundTrip(t *testing.T) {
	in := Transform{
		Translation: mgl32.Vec3{1, -2, 3},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{1, 1, 0}.Normalize()),
		Scale:       mgl32.Vec3{2, 3, 4},
	}
	out := TransformFromMat4(in.Mat4())
	assert.True(t, in.ApproxEqual(out, 1e-4), "round trip changed %v into %v", in, out)
}

func TestTransformInverse(t *testing.T) {
	in := Transform{
		Translation: mgl32.Vec3{4, 0, -1},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
	assert.True(t, in.Mul(in.Inverse()).ApproxEqual(IdentityTransform(), 1e-4))
}

func TestApproxEqualTreatsNegatedQuaternionAsEqual(t *testing.T) {
	a := IdentityTransform()
	a.Rotation = mgl32.QuatRotate(1, mgl32.Vec3{0, 0, 1})
	b := a
	b.Rotation = a.Rotation.Scale(-1)
	assert.True(t, a.ApproxEqual(b, tol))
}

func TestSceneBasisZUp(t *testing.T) {
	zUp := mgl32.Mat4{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, -1, 0, 0,
		0, 0, 0, 1,
	}
	b := NewSceneBasis(zUp, 2)
	require.False(t, b.IsIdentity())

	assertVec3(t, mgl32.Vec3{0, 0, 2}, b.Position(mgl32.Vec3{0, 1, 0}))
	assertVec3(t, mgl32.Vec3{0, -2, 0}, b.Position(mgl32.Vec3{0, 0, 1}))
	assertVec3(t, mgl32.Vec3{0, 0, 1}, b.Direction(mgl32.Vec3{0, 1, 0}))

	tr := IdentityTransform()
	tr.Translation = mgl32.Vec3{0, 3, 0}
	assertVec3(t, mgl32.Vec3{0, 0, 6}, b.Transform(tr).Translation)

	// A rotation about glTF +Y becomes a rotation about +Z.
	q := b.Rotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	assertVec3(t, mgl32.Vec3{0, 1, 0}, q.Rotate(mgl32.Vec3{1, 0, 0}))
}

func TestIdentityBasisIsNoOp(t *testing.T) {
	b := IdentityBasis()
	assert.True(t, b.IsIdentity())
	v := mgl32.Vec3{1, 2, 3}
	assert.Equal(t, v, b.Position(v))
	m := mgl32.Translate3D(1, 2, 3)
	assert.Equal(t, m, b.Matrix(m))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrResource, cause, "buffer %d", 3)
	assert.ErrorIs(t, err, ErrResource)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "buffer 3")

	assert.ErrorIs(t, NewError(ErrConfig, "x"), ErrConfig)
	assert.ErrorIs(t, ErrFieldNotPresent, ErrSchema)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}
