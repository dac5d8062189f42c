package model

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBestFrames(t *testing.T) {
	times := []float32{0, 1, 2}
	cases := []struct {
		name           string
		at             float32
		first, second  int
		wantedFraction float32
	}{
		{"before first", -1, 0, 0, 0},
		{"at first", 0, 0, 0, 0},
		{"between", 0.5, 0, 1, 0.5},
		{"on interior key", 1, 1, 2, 0},
		{"at last", 2, 2, 2, 0},
		{"after last", 3, 2, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, second, fraction := FindBestFrames(times, tc.at)
			assert.Equal(t, tc.first, first)
			assert.Equal(t, tc.second, second)
			assert.InDelta(t, tc.wantedFraction, fraction, 1e-6)
		})
	}
}

func TestFindBestFramesDegenerate(t *testing.T) {
	first, second, fraction := FindBestFrames(nil, 1)
	assert.Equal(t, [3]any{0, 0, float32(0)}, [3]any{first, second, fraction})

	// Repeated timestamps have zero span and must not divide by zero.
	first, second, fraction = FindBestFrames([]float32{0, 1, 1, 2}, 1.5)
	assert.Equal(t, 2, first)
	assert.Equal(t, 3, second)
	assert.InDelta(t, 0.5, fraction, 1e-6)
}

func TestFindBestFramesIsTotal(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	timeLists := [][]float32{
		{0, 1, 2},
		{0, 1, 1, 2},
		{1, 1, 1},
		{0, 0},
		{5},
		{0, nan, 2},
	}
	queries := []float32{nan, inf, -inf, -1, 0, 0.5, 1, 1.5, 2, 3, math.MaxFloat32, -math.MaxFloat32}

	for _, times := range timeLists {
		for _, at := range queries {
			first, second, fraction := FindBestFrames(times, at)
			assert.Truef(t, 0 <= first && first <= second && second < len(times),
				"times %v at %v: indices (%d, %d) out of bounds", times, at, first, second)
			assert.Truef(t, fraction >= 0 && fraction <= 1, "times %v at %v: fraction %v", times, at, fraction)
		}
	}

	first, second, fraction := FindBestFrames([]float32{0, 1, 2}, nan)
	assert.Equal(t, [3]any{0, 0, float32(0)}, [3]any{first, second, fraction})
	first, second, _ = FindBestFrames([]float32{0, 1, 2}, inf)
	assert.Equal(t, [2]int{2, 2}, [2]int{first, second})
}

func TestSampleVector(t *testing.T) {
	track := &VectorTrack{
		Times:         []float32{0, 2},
		Values:        []mgl32.Vec3{{0, 0, 0}, {2, 4, 6}},
		Interpolation: InterpolationLinear,
	}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, SampleVector(track, 1, mgl32.Vec3{}))

	track.Interpolation = InterpolationStep
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, SampleVector(track, 1.9, mgl32.Vec3{}))

	fallback := mgl32.Vec3{9, 9, 9}
	assert.Equal(t, fallback, SampleVector(nil, 1, fallback))
}

func TestSampleQuaternionTakesShortPath(t *testing.T) {
	a := mgl32.QuatIdent()
	b := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	track := &QuaternionTrack{
		Times:         []float32{0, 1},
		Values:        []mgl32.Quat{a, b.Scale(-1)},
		Interpolation: InterpolationLinear,
	}
	got := SampleQuaternion(track, 0.5, mgl32.QuatIdent())
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 1, abs(got.Dot(want)), 1e-5)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestChannelSampleKeepsRestForUndrivenTracks(t *testing.T) {
	rest := common.IdentityTransform()
	rest.Scale = mgl32.Vec3{2, 2, 2}
	ch := AnimationChannel{
		Translation: &VectorTrack{Times: []float32{0, 1, 3}, Values: []mgl32.Vec3{{}, {1, 0, 0}, {3, 0, 0}}},
	}
	got := ch.Sample(2, rest)
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, got.Translation)
	assert.Equal(t, rest.Rotation, got.Rotation)
	assert.Equal(t, rest.Scale, got.Scale)
	assert.Equal(t, 3, ch.Frames())
	assert.Equal(t, float32(3), ch.EndTime())
}

func newChain(scales ...mgl32.Vec3) *Skeleton {
	s := &Skeleton{BoneNameToIndex: map[string]int{}}
	for i, scale := range scales {
		tr := common.IdentityTransform()
		tr.Scale = scale
		if i > 0 {
			tr.Translation = mgl32.Vec3{1, 1, 1}
		}
		s.Bones = append(s.Bones, Bone{Name: string(rune('a' + i)), ParentIndex: i - 1, LocalTransform: tr})
		s.BoneNameToIndex[s.Bones[i].Name] = i
	}
	return s
}

func TestNormalizeScale(t *testing.T) {
	s := newChain(mgl32.Vec3{2, 1, 1}, mgl32.Vec3{1, 3, 1}, mgl32.Vec3{1, 1, 1})
	// root translation stays untouched
	s.Bones[0].LocalTransform.Translation = mgl32.Vec3{5, 5, 5}

	s.NormalizeScale()

	assert.Equal(t, mgl32.Vec3{5, 5, 5}, s.Bones[0].LocalTransform.Translation)
	assert.Equal(t, mgl32.Vec3{2, 1, 1}, s.Bones[1].LocalTransform.Translation)
	assert.Equal(t, mgl32.Vec3{2, 3, 1}, s.Bones[2].LocalTransform.Translation)
	for _, b := range s.Bones {
		assert.Equal(t, mgl32.Vec3{1, 1, 1}, b.LocalTransform.Scale)
	}
}

func TestNormalizeScaleChildTranslation(t *testing.T) {
	s := newChain(mgl32.Vec3{2, 1, 1}, mgl32.Vec3{1, 1, 1})
	s.Bones[1].LocalTransform.Translation = mgl32.Vec3{1, 0, 0}
	s.NormalizeScale()
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, s.Bones[1].LocalTransform.Translation)
}

func TestNormalizeScaleKeepsBindPoseInverse(t *testing.T) {
	s := newChain(mgl32.Vec3{2, 1, 1}, mgl32.Vec3{1, 1, 1})
	s.Bones[1].LocalTransform.Translation = mgl32.Vec3{1, 0, 0}
	s.Bones[0].InverseBindMatrix = mgl32.Scale3D(2, 1, 1).Inv()
	s.Bones[1].InverseBindMatrix = mgl32.Translate3D(2, 0, 0).Mul4(mgl32.Scale3D(2, 1, 1)).Inv()

	s.NormalizeScale()

	for i, world := range s.BindPose() {
		got := world.Mat4().Mul4(s.Bones[i].InverseBindMatrix)
		assert.Truef(t, got.ApproxEqualThreshold(mgl32.Ident4(), 1e-5), "bone %d: bind * inverse = %v", i, got)
	}
	assert.True(t, s.Bones[1].InverseBindMatrix.ApproxEqualThreshold(mgl32.Translate3D(-2, 0, 0), 1e-5))
}

func TestSkeletonQueries(t *testing.T) {
	s := newChain(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1})
	assert.Equal(t, 1, s.BoneIndex("b"))
	assert.Equal(t, NoIndex, s.BoneIndex("missing"))
	assert.Equal(t, []int{1}, s.Children(0))
	assert.Empty(t, s.Children(2))

	pose := s.BindPose()
	require.Len(t, pose, 3)
	assert.True(t, pose[2].Translation.ApproxEqualThreshold(mgl32.Vec3{2, 2, 2}, 1e-6))
}

func TestModelFromImport(t *testing.T) {
	m := NewModelFromImport(&ImportedModel{
		Name:       "hero",
		Skeletons:  []*Skeleton{nil, newChain(mgl32.Vec3{1, 1, 1})},
		Animations: []*AnimationClip{{Name: "walk"}, {Name: "run"}},
	})
	assert.Equal(t, "hero", m.Name())
	assert.True(t, m.Skinned())
	assert.Nil(t, m.Skeleton(0))
	assert.Nil(t, m.Skeleton(5))
	assert.Equal(t, []string{"walk", "run"}, m.AnimationNames())
	assert.Equal(t, 1, m.GetAnimationIndex("run"))
	assert.Equal(t, -1, m.GetAnimationIndex("jump"))
	assert.NoError(t, m.Errors())
}
