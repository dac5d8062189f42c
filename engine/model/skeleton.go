package model

import (
	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
)

// NormalizeScale folds every bone's scale into the translations of its descendants so that all local
// scales become (1,1,1). Each bone's translation is multiplied component-wise by the accumulated scale of
// its ancestors; the bone's own scale then joins that accumulation. Bones must be ordered parent-first.
// The inverse bind matrices are rebuilt from the normalized bind pose.
func (s *Skeleton) NormalizeScale() {
	accumulated := make([]mgl32.Vec3, len(s.Bones))
	for i := range s.Bones {
		bone := &s.Bones[i]
		parentScale := mgl32.Vec3{1, 1, 1}
		if bone.ParentIndex != NoIndex {
			parentScale = accumulated[bone.ParentIndex]
		}
		bone.LocalTransform.Translation = common.MulElem(bone.LocalTransform.Translation, parentScale)
		accumulated[i] = common.MulElem(parentScale, bone.LocalTransform.Scale)
		bone.LocalTransform.Scale = mgl32.Vec3{1, 1, 1}
	}
	s.RebuildInverseBindMatrices()
}

// RebuildInverseBindMatrices sets every bone's inverse bind matrix to the inverse of its bind pose, so
// that BindPose()[i].Mat4() * InverseBindMatrix is the identity for every bone.
func (s *Skeleton) RebuildInverseBindMatrices() {
	for i, world := range s.BindPose() {
		s.Bones[i].InverseBindMatrix = world.Mat4().Inv()
	}
}

// BoneIndex returns the index of the named bone, or NoIndex.
//
// Parameters:
//   - name: the bone name
//
// Returns:
//   - int: the bone index, or NoIndex
func (s *Skeleton) BoneIndex(name string) int {
	if idx, ok := s.BoneNameToIndex[name]; ok {
		return idx
	}
	return NoIndex
}

// Children returns the indices of the bones whose parent is the given bone.
//
// Parameters:
//   - boneIndex: the parent bone
//
// Returns:
//   - []int: the child bone indices in skeleton order
func (s *Skeleton) Children(boneIndex int) []int {
	var children []int
	for i := range s.Bones {
		if s.Bones[i].ParentIndex == boneIndex {
			children = append(children, i)
		}
	}
	return children
}

// BindPose returns the model-space bind transform of every bone, composed from the local transforms.
//
// Returns:
//   - []common.Transform: one world transform per bone
func (s *Skeleton) BindPose() []common.Transform {
	world := make([]common.Transform, len(s.Bones))
	for i := range s.Bones {
		local := s.Bones[i].LocalTransform
		if p := s.Bones[i].ParentIndex; p != NoIndex {
			world[i] = local.Mul(world[p])
		} else {
			world[i] = local
		}
	}
	return world
}
