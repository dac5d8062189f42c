package loader

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tiendc/go-deepcopy"
)

// SkeletonConfig controls how a skin is turned into a skeleton. The zero value selects the root
// automatically and applies no overrides.
type SkeletonConfig struct {
	// RootNode forces the skeleton root. It must be an ancestor-or-self of every joint.
	RootNode *int

	// CustomSkeleton replaces the bind-pose local transform of the named bones.
	CustomSkeleton map[string]common.Transform

	// Sockets adds named attachment points to existing bones.
	Sockets map[string]SocketConfig
}

// SocketConfig attaches a socket to a bone.
type SocketConfig struct {
	// BoneName is the bone the socket is parented to.
	BoneName string

	// Transform is relative to the bone.
	Transform common.Transform
}

// isDefault reports whether the config can share the memoized skeleton.
func (c SkeletonConfig) isDefault() bool {
	return c.RootNode == nil && len(c.CustomSkeleton) == 0 && len(c.Sockets) == 0
}

// gltfSkeletonExtractorImpl builds skeletons from skins and memoizes the default-config result per skin.
type gltfSkeletonExtractorImpl struct {
	parser *gltfParserImpl
	cache  map[int]*model.Skeleton
}

// gltfSkeletonExtractor defines the skeleton building operations the parser delegates to.
type gltfSkeletonExtractor interface {
	// ExtractSkeleton builds the skeleton of a skin.
	//
	// Parameters:
	//   - skinIndex: the skin index
	//   - config: the root override, bone overrides and sockets
	//
	// Returns:
	//   - *model.Skeleton: a skeleton owned by the caller
	//   - error: ErrResource, ErrSchema, ErrStructural or ErrConfig
	ExtractSkeleton(skinIndex int, config SkeletonConfig) (*model.Skeleton, error)

	// FindSkinForMesh returns the skin of the first node instancing the mesh with a skin, or model.NoIndex.
	//
	// Parameters:
	//   - meshIndex: the mesh index
	//
	// Returns:
	//   - int: the skin index, or model.NoIndex
	FindSkinForMesh(meshIndex int) int
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a skeleton extractor bound to a parser.
//
// Parameters:
//   - parser: the parser owning the document
//
// Returns:
//   - *gltfSkeletonExtractorImpl: the skeleton extractor
func newGLTFSkeletonExtractor(parser *gltfParserImpl) *gltfSkeletonExtractorImpl {
	return &gltfSkeletonExtractorImpl{parser: parser, cache: make(map[int]*model.Skeleton)}
}

func (e *gltfSkeletonExtractorImpl) ExtractSkeleton(skinIndex int, config SkeletonConfig) (*model.Skeleton, error) {
	if config.isDefault() {
		if cached, ok := e.cache[skinIndex]; ok {
			return copySkeleton(cached)
		}
	}

	skeleton, err := e.buildSkeleton(skinIndex, config)
	if err != nil {
		return nil, fmt.Errorf("skin %d: %w", skinIndex, err)
	}

	if config.isDefault() {
		e.cache[skinIndex] = skeleton
		return copySkeleton(skeleton)
	}
	return skeleton, nil
}

func (e *gltfSkeletonExtractorImpl) FindSkinForMesh(meshIndex int) int {
	for _, node := range e.parser.document.Nodes {
		if node.Mesh != nil && *node.Mesh == meshIndex && node.Skin != nil {
			return *node.Skin
		}
	}
	return model.NoIndex
}

func (e *gltfSkeletonExtractorImpl) buildSkeleton(skinIndex int, config SkeletonConfig) (*model.Skeleton, error) {
	p := e.parser
	doc := p.document
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, common.NewError(common.ErrResource, "skin index %d out of range (%d skins)", skinIndex, len(doc.Skins))
	}
	skin := &doc.Skins[skinIndex]
	if len(skin.Joints) == 0 {
		return nil, common.NewError(common.ErrSchema, "skin has no joints")
	}

	nodes, err := p.loadAllNodes()
	if err != nil {
		return nil, err
	}

	isJoint := make(map[int]bool, len(skin.Joints))
	for _, joint := range skin.Joints {
		if joint < 0 || joint >= len(nodes) {
			return nil, common.NewError(common.ErrResource, "joint node %d out of range", joint)
		}
		if isJoint[joint] {
			return nil, common.NewError(common.ErrSchema, "joint node %d listed twice", joint)
		}
		isJoint[joint] = true
	}

	inverseBindMatrices := make(map[int]mgl32.Mat4, len(skin.Joints))
	if skin.InverseBindMatrices != nil {
		matrices, err := DecodeAccessor(p, *skin.InverseBindMatrices,
			AccessorConstraints{Arities: []int{16}, ComponentTypes: floatOnly}, assembleMat4, p.basis.Matrix)
		if err != nil {
			return nil, fmt.Errorf("inverse bind matrices: %w", err)
		}
		if len(matrices) < len(skin.Joints) {
			return nil, common.NewError(common.ErrSchema, "%d inverse bind matrices for %d joints", len(matrices), len(skin.Joints))
		}
		for i, joint := range skin.Joints {
			inverseBindMatrices[joint] = matrices[i]
		}
	}

	root, err := e.selectRoot(skin, config)
	if err != nil {
		return nil, err
	}

	skeleton := &model.Skeleton{
		Bones:           make([]model.Bone, 0, len(skin.Joints)+1),
		RootBoneIndex:   0,
		BoneNameToIndex: make(map[string]int, len(skin.Joints)+1),
		NodeToBone:      make(map[int]int, len(skin.Joints)+1),
	}
	usedNames := make(map[string]int, len(skin.Joints)+1)

	// Depth-first from the root, descending only into joints; parents are appended before children.
	var visit func(nodeIndex, parentBone int, parentWorld mgl32.Mat4)
	visit = func(nodeIndex, parentBone int, parentWorld mgl32.Mat4) {
		node := &nodes[nodeIndex]

		var local common.Transform
		var world mgl32.Mat4
		if ibm, ok := inverseBindMatrices[nodeIndex]; ok {
			world = ibm.Inv()
			local = common.TransformFromMat4(parentWorld.Inv().Mul4(world))
		} else {
			local = node.Transform
			world = parentWorld.Mul4(local.Mat4())
		}

		name := ensureUniqueBoneName(common.Coalesce(node.Name, fmt.Sprintf("bone_%d", nodeIndex)), usedNames)
		boneIndex := len(skeleton.Bones)
		skeleton.Bones = append(skeleton.Bones, model.Bone{
			Name:              name,
			NodeIndex:         nodeIndex,
			ParentIndex:       parentBone,
			InverseBindMatrix: world.Inv(),
			LocalTransform:    local,
		})
		skeleton.BoneNameToIndex[name] = boneIndex
		skeleton.NodeToBone[nodeIndex] = boneIndex

		for _, child := range node.ChildrenIndices {
			if isJoint[child] {
				visit(child, boneIndex, world)
			}
		}
	}
	visit(root, model.NoIndex, mgl32.Ident4())

	for _, joint := range skin.Joints {
		if _, ok := skeleton.NodeToBone[joint]; !ok {
			return nil, common.NewError(common.ErrStructural, "joint node %d is not reachable from root node %d through joints", joint, root)
		}
	}

	for name, transform := range config.CustomSkeleton {
		boneIndex, ok := skeleton.BoneNameToIndex[name]
		if !ok {
			return nil, common.NewError(common.ErrConfig, "custom skeleton references unknown bone %q", name)
		}
		skeleton.Bones[boneIndex].LocalTransform = transform
	}

	socketNames := make([]string, 0, len(config.Sockets))
	for name := range config.Sockets {
		socketNames = append(socketNames, name)
	}
	slices.Sort(socketNames)
	for _, name := range socketNames {
		socket := config.Sockets[name]
		boneIndex, ok := skeleton.BoneNameToIndex[socket.BoneName]
		if !ok {
			return nil, common.NewError(common.ErrConfig, "socket %q references unknown bone %q", name, socket.BoneName)
		}
		skeleton.Sockets = append(skeleton.Sockets, model.Socket{
			Name:      name,
			BoneName:  socket.BoneName,
			BoneIndex: boneIndex,
			Transform: socket.Transform,
		})
	}

	skeleton.NormalizeScale()

	p.logger.Debugw("built skeleton", "skin", skinIndex, "root", root, "bones", len(skeleton.Bones))
	return skeleton, nil
}

// selectRoot picks the skeleton root: the configured override, then the skin's skeleton hint when it
// covers every joint, then the joints' common root.
func (e *gltfSkeletonExtractorImpl) selectRoot(skin *gltfSkin, config SkeletonConfig) (int, error) {
	p := e.parser

	if config.RootNode != nil {
		root := *config.RootNode
		if root < 0 || root >= len(p.nodes) {
			return model.NoIndex, common.NewError(common.ErrConfig, "root node %d out of range", root)
		}
		for _, joint := range skin.Joints {
			if !p.hasRoot(joint, root) {
				return model.NoIndex, common.NewError(common.ErrConfig, "root node %d is not an ancestor of joint node %d", root, joint)
			}
		}
		return root, nil
	}

	if hint := skin.Skeleton; hint != nil && *hint >= 0 && *hint < len(p.nodes) {
		covers := true
		for _, joint := range skin.Joints {
			if !p.hasRoot(joint, *hint) {
				covers = false
				break
			}
		}
		if covers {
			return *hint, nil
		}
		p.logger.Warnw("skin skeleton hint does not cover every joint; ignoring it", "hint", *hint)
	}

	return p.FindCommonRoot(skin.Joints)
}

// ensureUniqueBoneName returns name, or name with the lowest free "_N" suffix when it is already taken.
func ensureUniqueBoneName(name string, used map[string]int) string {
	if _, ok := used[name]; !ok {
		used[name] = 1
		return name
	}
	for {
		n := used[name]
		used[name] = n + 1
		candidate := fmt.Sprintf("%s_%d", name, n)
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
	}
}

func copySkeleton(src *model.Skeleton) (*model.Skeleton, error) {
	out := &model.Skeleton{}
	if err := deepcopy.Copy(out, src); err != nil {
		return nil, err
	}
	return out, nil
}
