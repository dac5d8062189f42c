package model

import (
	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
)

// NoIndex marks an absent node, mesh, skin or parent reference.
const NoIndex = -1

// --- Scene Graph Types ---

// Node is a single entry of the document's node hierarchy.
// Parent links are derived from the children lists and stored as indices, never pointers.
type Node struct {
	// Index is the node's position in the document's node list.
	Index int

	// Name is the node's name (may be empty).
	Name string

	// Transform is the node's transform relative to its parent.
	Transform common.Transform

	// MeshIndex references the node's mesh, or NoIndex.
	MeshIndex int

	// SkinIndex references the node's skin, or NoIndex.
	SkinIndex int

	// ChildrenIndices are the node's children in document order.
	ChildrenIndices []int

	// ParentIndex is the node's parent, or NoIndex for roots.
	ParentIndex int
}

// Scene is a named set of root nodes.
type Scene struct {
	// Index is the scene's position in the document's scene list.
	Index int

	// Name is the scene's name (may be empty).
	Name string

	// RootNodesIndices are the scene's root nodes.
	RootNodesIndices []int
}

// --- Skeleton Types ---

// Bone represents a single bone in a skeleton hierarchy.
type Bone struct {
	// Name is the bone's unique identifier within the skeleton.
	Name string

	// NodeIndex is the document node this bone was built from.
	NodeIndex int

	// ParentIndex is the index of the parent bone (NoIndex for the root bone).
	ParentIndex int

	// InverseBindMatrix transforms from mesh space to bone space at bind pose.
	// Identity for bones without a matching inverse bind matrix.
	InverseBindMatrix mgl32.Mat4

	// LocalTransform is the bone's bind pose relative to its parent. Scale is always (1,1,1).
	LocalTransform common.Transform
}

// Socket is a named attachment point parented to a bone.
type Socket struct {
	// Name is the socket's identifier.
	Name string

	// BoneName is the bone the socket is attached to.
	BoneName string

	// BoneIndex is the index of BoneName in the skeleton.
	BoneIndex int

	// Transform is the socket's transform relative to the bone.
	Transform common.Transform
}

// Skeleton represents a rooted bone hierarchy. Bones are ordered so that every parent precedes its children.
type Skeleton struct {
	// Bones is the array of all bones in the skeleton.
	Bones []Bone

	// RootBoneIndex is the index of the single root bone (always 0 for non-empty skeletons).
	RootBoneIndex int

	// BoneNameToIndex maps bone names to their indices.
	BoneNameToIndex map[string]int

	// NodeToBone maps document node indices to bone indices.
	NodeToBone map[int]int

	// Sockets are caller-defined attachment points.
	Sockets []Socket
}

// --- Animation Types ---

// Interpolation is a keyframe interpolation mode.
type Interpolation string

const (
	// InterpolationLinear blends linearly (spherically for rotations) between keyframes.
	InterpolationLinear Interpolation = "LINEAR"

	// InterpolationStep holds the previous keyframe's value.
	InterpolationStep Interpolation = "STEP"

	// InterpolationCubicSpline marks tracks sourced from cubic spline samplers. Only the keyframe values are
	// retained, so sampling falls back to linear.
	InterpolationCubicSpline Interpolation = "CUBICSPLINE"
)

// VectorTrack is a time-ordered sequence of 3D vector keyframes.
type VectorTrack struct {
	// Times are the keyframe timestamps in seconds, strictly increasing.
	Times []float32

	// Values are the keyframe values, one per timestamp.
	Values []mgl32.Vec3

	// Interpolation is the sampler's interpolation mode.
	Interpolation Interpolation
}

// QuaternionTrack is a time-ordered sequence of rotation keyframes.
type QuaternionTrack struct {
	// Times are the keyframe timestamps in seconds, strictly increasing.
	Times []float32

	// Values are the keyframe rotations, one per timestamp.
	Values []mgl32.Quat

	// Interpolation is the sampler's interpolation mode.
	Interpolation Interpolation
}

// AnimationChannel contains the keyframe tracks for a single bone.
// Tracks that the animation does not drive are nil.
type AnimationChannel struct {
	// NodeIndex is the animated document node.
	NodeIndex int

	// BoneIndex is the animated bone, or NoIndex when no skeleton was supplied.
	BoneIndex int

	// BoneName is the bone name (or node name) the channel drives.
	BoneName string

	// Translation is the translation track.
	Translation *VectorTrack

	// Rotation is the rotation track.
	Rotation *QuaternionTrack

	// Scale is the scale track.
	Scale *VectorTrack
}

// RootMotionTrack is the root displacement removed from an in-place animation.
// Deltas are relative to the first frame of the root tracks.
type RootMotionTrack struct {
	// NodeIndex is the root node whose motion was extracted.
	NodeIndex int

	// TranslationTimes are the timestamps of TranslationDeltas.
	TranslationTimes []float32

	// TranslationDeltas are per-frame offsets from the first translation keyframe.
	TranslationDeltas []mgl32.Vec3

	// RotationTimes are the timestamps of RotationDeltas.
	RotationTimes []float32

	// RotationDeltas are per-frame rotations relative to the first rotation keyframe.
	RotationDeltas []mgl32.Quat
}

// AnimationClip represents a single animation (walk, run, attack, etc.).
type AnimationClip struct {
	// Name is the animation identifier.
	Name string

	// Duration is the largest keyframe time across all tracks, in seconds.
	Duration float32

	// NumFrames is the keyframe count of the densest track.
	NumFrames int

	// Channels contains animation data for each animated bone.
	Channels []AnimationChannel

	// RootMotion holds the extracted root displacement, or nil when root motion was preserved.
	RootMotion *RootMotionTrack
}

// --- Geometry Types ---

// Primitive is the decoded vertex and index data of a single mesh primitive.
type Primitive struct {
	// Positions are vertex positions.
	Positions []mgl32.Vec3

	// Normals are vertex normals (may be empty).
	Normals []mgl32.Vec3

	// Tangents are vertex tangents with handedness in W (may be empty).
	Tangents []mgl32.Vec4

	// UVs holds one coordinate set per TEXCOORD_n attribute.
	UVs [][]mgl32.Vec2

	// Colors holds one RGBA set per COLOR_n attribute.
	Colors [][]mgl32.Vec4

	// Indices are triangle indices; generated sequentially when the primitive is not indexed.
	Indices []uint32

	// Joints holds one joint index set per JOINTS_n attribute.
	Joints [][][4]uint16

	// Weights holds one weight set per WEIGHTS_n attribute.
	Weights [][]mgl32.Vec4

	// MaterialIndex references the primitive's material, or NoIndex.
	MaterialIndex int
}

// --- Import Types ---

// ImportedModel is everything the importer could extract from a single document.
type ImportedModel struct {
	// Name is the model identifier.
	Name string

	// Nodes is the full node hierarchy.
	Nodes []Node

	// Scenes are the document's scenes.
	Scenes []Scene

	// Meshes holds the decoded primitives per mesh index.
	Meshes [][]Primitive

	// Skeletons holds one skeleton per skin index (nil where the skin failed to build).
	Skeletons []*Skeleton

	// Animations are all animation clips that built successfully.
	Animations []*AnimationClip

	// Errors accumulates failures of individual entities that were skipped.
	Errors error
}
