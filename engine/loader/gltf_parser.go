package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	json "github.com/goccy/go-json"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Parse failures; each wraps common.ErrResource or common.ErrSchema.
var (
	errInvalidGLTFVersion = common.NewError(common.ErrSchema, "invalid glTF version: must be 2.x")
	errInvalidGLBMagic    = common.NewError(common.ErrResource, "invalid GLB magic number")
	errInvalidGLBVersion  = common.NewError(common.ErrResource, "invalid GLB version: must be 2")
	errMissingJSONChunk   = common.NewError(common.ErrResource, "GLB file missing JSON chunk")
	errTruncatedGLB       = common.NewError(common.ErrResource, "GLB file truncated")
)

// gltfParserImpl is the implementation of the Parser interface.
// It owns the parsed document and every cache derived from it. It performs no internal locking.
type gltfParserImpl struct {
	document       *gltfDocument
	glbBinaryChunk []byte
	bufferLoader   BufferLoader
	logger         *zap.SugaredLogger
	basis          common.SceneBasis
	basisMatrix    mgl32.Mat4
	sceneScale     float32

	// buffers memoizes resolved buffer bytes by buffer index.
	buffers map[int][]byte

	// nodes is the fully built node list; nil until the first node query.
	nodes []model.Node

	skeletons  *gltfSkeletonExtractorImpl
	animations *gltfAnimationExtractorImpl
	primitives *gltfPrimitiveExtractorImpl
}

// Parser is a decoder bound to one parsed glTF document.
// Structural queries are answered lazily: buffers, nodes and default skeletons are built on first use and
// memoized for the lifetime of the Parser. A Parser must not be used from multiple goroutines at once;
// use one Parser per goroutine or guard it externally.
type Parser interface {
	AccessorSource

	// GetBuffer returns the bytes of a buffer, resolving its URI or the GLB binary chunk on first use.
	// Repeated calls return the same cached slice, which must not be modified.
	//
	// Parameters:
	//   - index: the buffer index
	//
	// Returns:
	//   - []byte: the buffer bytes
	//   - error: ErrResource if the index is out of range or the source cannot be read
	GetBuffer(index int) ([]byte, error)

	// GetBufferView returns the byte range of a buffer view and its stride (0 when tightly packed).
	//
	// Parameters:
	//   - index: the buffer view index
	//
	// Returns:
	//   - []byte: the view bytes, aliasing the buffer cache
	//   - int: the declared byte stride, or 0
	//   - error: ErrResource if the view is out of range or exceeds its buffer
	GetBufferView(index int) ([]byte, int, error)

	// ReadScalarAccessor reads float scalars, e.g. animation times.
	ReadScalarAccessor(index int) ([]float32, error)

	// ReadVec3Accessor reads float vec3 elements.
	ReadVec3Accessor(index int) ([]mgl32.Vec3, error)

	// ReadVec2Accessor reads vec2 elements from floats or normalized unsigned bytes/shorts, e.g. texture coordinates.
	ReadVec2Accessor(index int) ([]mgl32.Vec2, error)

	// ReadVec4Accessor reads vec4 elements from floats or normalized unsigned bytes/shorts, e.g. skin weights.
	ReadVec4Accessor(index int) ([]mgl32.Vec4, error)

	// ReadJointsAccessor reads unsigned byte or short joint index quadruples.
	ReadJointsAccessor(index int) ([][4]uint16, error)

	// ReadMat4Accessor reads float 4x4 matrices, e.g. inverse bind matrices.
	ReadMat4Accessor(index int) ([]mgl32.Mat4, error)

	// ReadIndicesAccessor reads unsigned integer indices of any width as uint32.
	ReadIndicesAccessor(index int) ([]uint32, error)

	// LoadNode returns a copy of one node with its parent link resolved.
	//
	// Parameters:
	//   - index: the node index
	//
	// Returns:
	//   - model.Node: the node
	//   - error: ErrResource for a bad index, ErrStructural if the graph is not a tree
	LoadNode(index int) (model.Node, error)

	// LoadNodeByName returns the first node with the given name.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - model.Node: the node
	//   - bool: false if no node has that name
	//   - error: failures from building the node graph
	LoadNodeByName(name string) (model.Node, bool, error)

	// LoadAllNodes returns a copy of every node in document order.
	//
	// Returns:
	//   - []model.Node: the nodes
	//   - error: ErrResource or ErrStructural if the graph cannot be built
	LoadAllNodes() ([]model.Node, error)

	// LoadScene returns one scene.
	LoadScene(index int) (model.Scene, error)

	// LoadScenes returns every scene in document order.
	LoadScenes() ([]model.Scene, error)

	// DefaultSceneIndex returns the document's default scene, 0 when unset, or model.NoIndex without scenes.
	DefaultSceneIndex() int

	// ComposeTransformUpward composes a node's transform with every ancestor up to the top root.
	//
	// Parameters:
	//   - index: the node index
	//
	// Returns:
	//   - common.Transform: the node's world transform
	//   - error: node graph failures
	ComposeTransformUpward(index int) (common.Transform, error)

	// ComposeTransformBetween composes a node's transform with its ancestors up to, but excluding, an ancestor.
	// The result expresses the node in the ancestor's space; from == to yields identity.
	//
	// Parameters:
	//   - from: the descendant node
	//   - to: the ancestor node
	//
	// Returns:
	//   - common.Transform: the relative transform
	//   - error: ErrStructural if to is not an ancestor of from
	ComposeTransformBetween(from, to int) (common.Transform, error)

	// FindTopRoot follows parent links to the node's top-level ancestor.
	FindTopRoot(index int) (int, error)

	// HasRoot reports whether root is index itself or one of its ancestors.
	HasRoot(index, root int) (bool, error)

	// FindCommonRoot returns the lowest node that is an ancestor-or-self of every index.
	// If the indices live in disconnected hierarchies it logs a warning and returns the top root of the
	// first index.
	//
	// Parameters:
	//   - indices: the nodes to cover
	//
	// Returns:
	//   - int: the common root
	//   - error: ErrResource for bad indices or an empty list
	FindCommonRoot(indices []int) (int, error)

	// BuildSkeleton builds the bone hierarchy for a skin.
	//
	// Parameters:
	//   - skinIndex: the skin index
	//   - config: the root override, bone overrides and sockets
	//
	// Returns:
	//   - *model.Skeleton: the skeleton, owned by the caller
	//   - error: ErrResource, ErrSchema, ErrStructural or ErrConfig
	BuildSkeleton(skinIndex int, config SkeletonConfig) (*model.Skeleton, error)

	// BuildAnimationTracks builds the tracks of one animation.
	//
	// Parameters:
	//   - animationIndex: the animation index
	//   - config: the target skeleton, root node and root-motion mode
	//
	// Returns:
	//   - *model.AnimationClip: the clip
	//   - error: ErrResource, ErrSchema or ErrConfig
	BuildAnimationTracks(animationIndex int, config AnimationConfig) (*model.AnimationClip, error)

	// BuildAnimationsForSkin builds every animation that targets at least one joint of a skin.
	// When config.Skeleton is nil the skin's default skeleton is used.
	//
	// Parameters:
	//   - skinIndex: the skin index
	//   - config: the animation config applied to every clip
	//
	// Returns:
	//   - []*model.AnimationClip: the clips in document order
	//   - error: the first skeleton or animation failure
	BuildAnimationsForSkin(skinIndex int, config AnimationConfig) ([]*model.AnimationClip, error)

	// FindAnimationByName returns the index of the first animation with the given name, or model.NoIndex.
	FindAnimationByName(name string) int

	// LoadPrimitives decodes the primitives of a mesh.
	//
	// Parameters:
	//   - meshIndex: the mesh index
	//
	// Returns:
	//   - []model.Primitive: the decoded primitives
	//   - error: ErrResource or ErrSchema
	LoadPrimitives(meshIndex int) ([]model.Primitive, error)

	// FindMeshByName returns the index of the first mesh with the given name, or model.NoIndex.
	FindMeshByName(name string) int

	// Stats returns the entity counts of the document.
	Stats() DocumentStats
}

// DocumentStats summarizes the entity counts of a parsed document.
type DocumentStats struct {
	Generator   string
	Version     string
	Scenes      int
	Nodes       int
	Meshes      int
	Accessors   int
	BufferViews int
	Buffers     int
	Skins       int
	Animations  int
}

var _ Parser = &gltfParserImpl{}

// ParseFile reads a .gltf or .glb file. Relative buffer URIs are resolved against the file's directory
// unless WithBufferLoader overrides the loader.
//
// Parameters:
//   - path: the file path
//   - options: parser options
//
// Returns:
//   - Parser: the parser bound to the document
//   - error: ErrResource if the file cannot be read, ErrSchema if it is not a glTF 2.x document
func ParseFile(path string, options ...ParserBuilderOption) (Parser, error) {
	p, err := parseFile(path, options...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parseFile(path string, options ...ParserBuilderOption) (*gltfParserImpl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapError(common.ErrResource, err, "failed to read %q", path)
	}

	opts := append([]ParserBuilderOption{WithBufferLoader(NewFileBufferLoader(filepath.Dir(path)))}, options...)
	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") || hasGLBMagic(data)
	return newParser(data, isGLB, opts...)
}

// ParseReader parses a glTF document from a reader. Without WithBufferLoader only data URIs and the GLB
// binary chunk can be resolved.
//
// Parameters:
//   - r: the reader containing glTF JSON or GLB data
//   - isGLB: true if the data is in GLB format
//   - options: parser options
//
// Returns:
//   - Parser: the parser bound to the document
//   - error: ErrResource or ErrSchema
func ParseReader(r io.Reader, isGLB bool, options ...ParserBuilderOption) (Parser, error) {
	p, err := parseReader(r, isGLB, options...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parseReader(r io.Reader, isGLB bool, options ...ParserBuilderOption) (*gltfParserImpl, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, common.WrapError(common.ErrResource, err, "failed to read data")
	}
	return newParser(data, isGLB, options...)
}

// NewParser parses an in-memory glTF JSON or GLB document, detecting GLB by its magic number.
//
// Parameters:
//   - data: the document bytes
//   - options: parser options
//
// Returns:
//   - Parser: the parser bound to the document
//   - error: ErrResource or ErrSchema
func NewParser(data []byte, options ...ParserBuilderOption) (Parser, error) {
	p, err := newParser(data, hasGLBMagic(data), options...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newParser(data []byte, isGLB bool, options ...ParserBuilderOption) (*gltfParserImpl, error) {
	p := &gltfParserImpl{
		logger:      zap.NewNop().Sugar(),
		buffers:     make(map[int][]byte),
		basisMatrix: mgl32.Ident4(),
		sceneScale:  1,
	}
	for _, opt := range options {
		opt(p)
	}
	p.basis = common.NewSceneBasis(p.basisMatrix, p.sceneScale)
	p.skeletons = newGLTFSkeletonExtractor(p)
	p.animations = newGLTFAnimationExtractor(p)
	p.primitives = newGLTFPrimitiveExtractor(p)

	var err error
	if isGLB {
		err = p.parseGLB(data)
	} else {
		err = p.parseGLTF(data)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func hasGLBMagic(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic
}

// parseGLTF parses a glTF JSON document.
func (p *gltfParserImpl) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return common.WrapError(common.ErrSchema, err, "failed to parse glTF JSON")
	}

	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	for _, ext := range doc.ExtensionsRequired {
		p.logger.Warnw("required extension is not supported; dependent data is ignored", "extension", ext)
	}

	p.document = &doc
	p.logger.Debugw("parsed glTF document",
		"generator", doc.Asset.Generator,
		"nodes", len(doc.Nodes),
		"meshes", len(doc.Meshes),
		"skins", len(doc.Skins),
		"animations", len(doc.Animations),
	)
	return nil
}

// parseGLB splits a GLB container into its JSON and BIN chunks.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParserImpl) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errTruncatedGLB
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return common.WrapError(common.ErrResource, err, "failed to read GLB header")
	}
	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return common.WrapError(common.ErrResource, err, "failed to read GLB chunk header")
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return fmt.Errorf("%w: chunk of %d bytes exceeds remaining %d", errTruncatedGLB, chunkHeader.ChunkLength, r.Len())
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return common.WrapError(common.ErrResource, err, "failed to read GLB chunk")
		}

		switch chunkHeader.ChunkType {
		case gltfGLBChunkJSON:
			if jsonData == nil {
				jsonData = chunkData
			}
		case gltfGLBChunkBIN:
			if p.glbBinaryChunk == nil {
				p.glbBinaryChunk = chunkData
			}
		default:
			p.logger.Debugw("skipping unknown GLB chunk", "type", chunkHeader.ChunkType)
		}
	}

	if jsonData == nil {
		return errMissingJSONChunk
	}
	return p.parseGLTF(jsonData)
}

func (p *gltfParserImpl) Stats() DocumentStats {
	d := p.document
	return DocumentStats{
		Generator:   d.Asset.Generator,
		Version:     d.Asset.Version,
		Scenes:      len(d.Scenes),
		Nodes:       len(d.Nodes),
		Meshes:      len(d.Meshes),
		Accessors:   len(d.Accessors),
		BufferViews: len(d.BufferViews),
		Buffers:     len(d.Buffers),
		Skins:       len(d.Skins),
		Animations:  len(d.Animations),
	}
}

func (p *gltfParserImpl) BuildSkeleton(skinIndex int, config SkeletonConfig) (*model.Skeleton, error) {
	return p.skeletons.ExtractSkeleton(skinIndex, config)
}

func (p *gltfParserImpl) BuildAnimationTracks(animationIndex int, config AnimationConfig) (*model.AnimationClip, error) {
	return p.animations.ExtractAnimation(animationIndex, config)
}

func (p *gltfParserImpl) BuildAnimationsForSkin(skinIndex int, config AnimationConfig) ([]*model.AnimationClip, error) {
	if config.Skeleton == nil {
		skeleton, err := p.BuildSkeleton(skinIndex, SkeletonConfig{})
		if err != nil {
			return nil, err
		}
		config.Skeleton = skeleton
	}

	var clips []*model.AnimationClip
	for _, animIndex := range p.animations.AnimationsTargetingNodes(config.Skeleton.NodeToBone) {
		clip, err := p.BuildAnimationTracks(animIndex, config)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

func (p *gltfParserImpl) FindAnimationByName(name string) int {
	for i := range p.document.Animations {
		if p.document.Animations[i].Name == name {
			return i
		}
	}
	return model.NoIndex
}

func (p *gltfParserImpl) LoadPrimitives(meshIndex int) ([]model.Primitive, error) {
	return p.primitives.ExtractPrimitives(meshIndex)
}

func (p *gltfParserImpl) FindMeshByName(name string) int {
	for i := range p.document.Meshes {
		if p.document.Meshes[i].Name == name {
			return i
		}
	}
	return model.NoIndex
}
