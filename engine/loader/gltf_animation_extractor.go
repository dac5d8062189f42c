package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	"github.com/go-gl/mathgl/mgl32"
)

// RootMotionMode selects what happens to the root node's translation and rotation tracks.
type RootMotionMode int

const (
	// RootMotionPreserve keeps the root tracks unchanged.
	RootMotionPreserve RootMotionMode = iota

	// RootMotionRemove pins the root to its first keyframe and reports the removed motion as per-frame
	// deltas in AnimationClip.RootMotion.
	RootMotionRemove
)

func (m RootMotionMode) String() string {
	switch m {
	case RootMotionPreserve:
		return "preserve"
	case RootMotionRemove:
		return "remove"
	default:
		return fmt.Sprintf("RootMotionMode(%d)", int(m))
	}
}

// AnimationConfig controls how an animation is turned into tracks.
type AnimationConfig struct {
	// Skeleton restricts channels to the skeleton's bones and names them after the bones.
	// When nil, every node channel is kept and named after its node.
	Skeleton *model.Skeleton

	// RootNode overrides the root node used for root motion handling.
	RootNode *int

	// RootMotion selects the root motion handling.
	RootMotion RootMotionMode
}

var rotationComponentTypes = []ComponentType{
	ComponentTypeFloat,
	ComponentTypeByte,
	ComponentTypeUnsignedByte,
	ComponentTypeShort,
	ComponentTypeUnsignedShort,
}

// gltfAnimationExtractorImpl is the implementation of the gltfAnimationExtractor interface.
type gltfAnimationExtractorImpl struct {
	parser *gltfParserImpl
}

// gltfAnimationExtractor defines the animation building operations the parser delegates to.
// Clips are built all-or-nothing: any failing channel fails the whole animation.
type gltfAnimationExtractor interface {
	// ExtractAnimation builds one animation.
	//
	// Parameters:
	//   - animIndex: the index of the animation in the document
	//   - config: the target skeleton, root node and root-motion mode
	//
	// Returns:
	//   - *model.AnimationClip: the extracted animation clip
	//   - error: ErrResource, ErrSchema or ErrConfig
	ExtractAnimation(animIndex int, config AnimationConfig) (*model.AnimationClip, error)

	// AnimationsTargetingNodes returns the indices of the animations with at least one channel targeting
	// one of the given nodes.
	//
	// Parameters:
	//   - nodes: the node set
	//
	// Returns:
	//   - []int: the animation indices in document order
	AnimationsTargetingNodes(nodes map[int]int) []int
}

var _ gltfAnimationExtractor = &gltfAnimationExtractorImpl{}

// newGLTFAnimationExtractor creates an animation extractor bound to a parser.
//
// Parameters:
//   - parser: the parser owning the document
//
// Returns:
//   - *gltfAnimationExtractorImpl: the animation extractor
func newGLTFAnimationExtractor(parser *gltfParserImpl) *gltfAnimationExtractorImpl {
	return &gltfAnimationExtractorImpl{parser: parser}
}

func (e *gltfAnimationExtractorImpl) ExtractAnimation(animIndex int, config AnimationConfig) (*model.AnimationClip, error) {
	clip, err := e.extractAnimation(animIndex, config)
	if err != nil {
		return nil, fmt.Errorf("animation %d: %w", animIndex, err)
	}
	return clip, nil
}

func (e *gltfAnimationExtractorImpl) extractAnimation(animIndex int, config AnimationConfig) (*model.AnimationClip, error) {
	p := e.parser
	doc := p.document
	if animIndex < 0 || animIndex >= len(doc.Animations) {
		return nil, common.NewError(common.ErrResource, "animation index %d out of range (%d animations)", animIndex, len(doc.Animations))
	}
	if config.RootMotion != RootMotionPreserve && config.RootMotion != RootMotionRemove {
		return nil, common.NewError(common.ErrConfig, "unknown root motion mode %d", int(config.RootMotion))
	}

	nodes, err := p.loadAllNodes()
	if err != nil {
		return nil, err
	}
	if config.RootNode != nil && (*config.RootNode < 0 || *config.RootNode >= len(nodes)) {
		return nil, common.NewError(common.ErrConfig, "root node %d out of range", *config.RootNode)
	}

	anim := &doc.Animations[animIndex]
	clip := &model.AnimationClip{
		Name: common.Coalesce(anim.Name, fmt.Sprintf("animation_%d", animIndex)),
	}

	// Channels are grouped per node in order of first appearance.
	channelByNode := make(map[int]int)

	for i := range anim.Channels {
		ch := &anim.Channels[i]
		if ch.Target.Node == nil {
			continue
		}
		nodeIndex := *ch.Target.Node
		if nodeIndex < 0 || nodeIndex >= len(nodes) {
			return nil, common.NewError(common.ErrResource, "channel %d: target node %d out of range", i, nodeIndex)
		}

		switch ch.Target.Path {
		case gltfAnimPathTranslation, gltfAnimPathRotation, gltfAnimPathScale:
		case gltfAnimPathWeights:
			p.logger.Debugw("skipping morph target weights channel", "animation", clip.Name, "channel", i)
			continue
		default:
			p.logger.Warnw("skipping channel with unknown target path", "animation", clip.Name, "channel", i, "path", ch.Target.Path)
			continue
		}

		boneIndex := model.NoIndex
		boneName := common.Coalesce(nodes[nodeIndex].Name, fmt.Sprintf("node_%d", nodeIndex))
		if config.Skeleton != nil {
			idx, ok := config.Skeleton.NodeToBone[nodeIndex]
			if !ok {
				continue
			}
			boneIndex = idx
			boneName = config.Skeleton.Bones[idx].Name
		}

		if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
			return nil, common.NewError(common.ErrResource, "channel %d: sampler %d out of range", i, ch.Sampler)
		}
		sampler := &anim.Samplers[ch.Sampler]

		interpolation, err := samplerInterpolation(sampler.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}

		times, err := p.ReadScalarAccessor(sampler.Input)
		if err != nil {
			return nil, fmt.Errorf("channel %d times: %w", i, err)
		}
		if err := validateKeyframeTimes(times); err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}

		pos, ok := channelByNode[nodeIndex]
		if !ok {
			pos = len(clip.Channels)
			channelByNode[nodeIndex] = pos
			clip.Channels = append(clip.Channels, model.AnimationChannel{
				NodeIndex: nodeIndex,
				BoneIndex: boneIndex,
				BoneName:  boneName,
			})
		}
		channel := &clip.Channels[pos]

		switch ch.Target.Path {
		case gltfAnimPathTranslation, gltfAnimPathScale:
			filter := p.basis.Position
			if ch.Target.Path == gltfAnimPathScale {
				filter = nil
			}
			values, err := DecodeAccessor(p, sampler.Output,
				AccessorConstraints{Arities: []int{3}, ComponentTypes: floatOnly}, assembleVec3, filter)
			if err != nil {
				return nil, fmt.Errorf("channel %d values: %w", i, err)
			}
			values, err = keyframeValues(values, len(times), interpolation)
			if err != nil {
				return nil, fmt.Errorf("channel %d: %w", i, err)
			}
			track := &model.VectorTrack{Times: times, Values: values, Interpolation: interpolation}
			if ch.Target.Path == gltfAnimPathTranslation {
				channel.Translation = track
			} else {
				channel.Scale = track
			}

		case gltfAnimPathRotation:
			values, err := DecodeAccessor(p, sampler.Output,
				AccessorConstraints{Arities: []int{4}, ComponentTypes: rotationComponentTypes, Normalized: true},
				assembleQuat, func(q mgl32.Quat) mgl32.Quat { return p.basis.Rotation(q.Normalize()) })
			if err != nil {
				return nil, fmt.Errorf("channel %d values: %w", i, err)
			}
			values, err = keyframeValues(values, len(times), interpolation)
			if err != nil {
				return nil, fmt.Errorf("channel %d: %w", i, err)
			}
			channel.Rotation = &model.QuaternionTrack{Times: times, Values: values, Interpolation: interpolation}
		}
	}

	for i := range clip.Channels {
		clip.Duration = max(clip.Duration, clip.Channels[i].EndTime())
		clip.NumFrames = max(clip.NumFrames, clip.Channels[i].Frames())
	}

	if config.RootMotion == RootMotionRemove {
		if err := e.removeRootMotion(clip, config); err != nil {
			return nil, err
		}
	}

	return clip, nil
}

func (e *gltfAnimationExtractorImpl) AnimationsTargetingNodes(nodes map[int]int) []int {
	var indices []int
	for animIdx := range e.parser.document.Animations {
		for _, ch := range e.parser.document.Animations[animIdx].Channels {
			if ch.Target.Node == nil {
				continue
			}
			if _, ok := nodes[*ch.Target.Node]; ok {
				indices = append(indices, animIdx)
				break
			}
		}
	}
	return indices
}

// removeRootMotion pins the root channel to its first keyframe and records the removed motion.
func (e *gltfAnimationExtractorImpl) removeRootMotion(clip *model.AnimationClip, config AnimationConfig) error {
	root, err := e.rootMotionNode(clip, config)
	if err != nil {
		return err
	}
	motion := &model.RootMotionTrack{NodeIndex: root}
	clip.RootMotion = motion

	var channel *model.AnimationChannel
	for i := range clip.Channels {
		if clip.Channels[i].NodeIndex == root {
			channel = &clip.Channels[i]
			break
		}
	}
	if channel == nil {
		return nil
	}

	if track := channel.Translation; track != nil && len(track.Values) > 0 {
		first := track.Values[0]
		motion.TranslationTimes = append([]float32(nil), track.Times...)
		motion.TranslationDeltas = make([]mgl32.Vec3, len(track.Values))
		for i, v := range track.Values {
			motion.TranslationDeltas[i] = v.Sub(first)
			track.Values[i] = first
		}
	}
	if track := channel.Rotation; track != nil && len(track.Values) > 0 {
		inverseFirst := track.Values[0].Inverse()
		first := track.Values[0]
		motion.RotationTimes = append([]float32(nil), track.Times...)
		motion.RotationDeltas = make([]mgl32.Quat, len(track.Values))
		for i, q := range track.Values {
			motion.RotationDeltas[i] = q.Mul(inverseFirst).Normalize()
			track.Values[i] = first
		}
	}
	return nil
}

// rootMotionNode resolves the root node: the override, then the skeleton's root bone, then the
// common root of every animated node.
func (e *gltfAnimationExtractorImpl) rootMotionNode(clip *model.AnimationClip, config AnimationConfig) (int, error) {
	if config.RootNode != nil {
		return *config.RootNode, nil
	}
	if config.Skeleton != nil && len(config.Skeleton.Bones) > 0 {
		return config.Skeleton.Bones[config.Skeleton.RootBoneIndex].NodeIndex, nil
	}
	if len(clip.Channels) == 0 {
		return model.NoIndex, nil
	}
	animated := make([]int, len(clip.Channels))
	for i := range clip.Channels {
		animated[i] = clip.Channels[i].NodeIndex
	}
	return e.parser.FindCommonRoot(animated)
}

func samplerInterpolation(value string) (model.Interpolation, error) {
	switch value {
	case "", gltfAnimInterpolationLinear:
		return model.InterpolationLinear, nil
	case gltfAnimInterpolationStep:
		return model.InterpolationStep, nil
	case gltfAnimInterpolationCubicSpline:
		return model.InterpolationCubicSpline, nil
	default:
		return "", common.NewError(common.ErrSchema, "unknown interpolation %q", value)
	}
}

func validateKeyframeTimes(times []float32) error {
	if len(times) == 0 {
		return common.NewError(common.ErrSchema, "sampler has no keyframes")
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return common.NewError(common.ErrSchema, "keyframe times not strictly increasing at %d (%g after %g)", i, times[i], times[i-1])
		}
	}
	return nil
}

// keyframeValues checks the value count against the keyframe count. Cubic spline samplers store
// (in-tangent, value, out-tangent) triplets; only the values are kept.
func keyframeValues[T any](values []T, frames int, interpolation model.Interpolation) ([]T, error) {
	if interpolation != model.InterpolationCubicSpline {
		if len(values) != frames {
			return nil, common.NewError(common.ErrSchema, "%d values for %d keyframes", len(values), frames)
		}
		return values, nil
	}

	if len(values) != frames*3 {
		return nil, common.NewError(common.ErrSchema, "%d cubic spline values for %d keyframes", len(values), frames)
	}
	kept := make([]T, frames)
	for i := range kept {
		kept[i] = values[i*3+1]
	}
	return kept, nil
}
