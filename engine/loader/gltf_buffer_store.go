package loader

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
)

// BufferLoader resolves an external (non data:) buffer URI to its bytes.
type BufferLoader interface {
	// LoadBuffer reads the resource a URI points to.
	//
	// Parameters:
	//   - uri: the buffer URI as written in the document
	//
	// Returns:
	//   - []byte: the resource bytes
	//   - error: error if the resource cannot be read
	LoadBuffer(uri string) ([]byte, error)
}

// BufferLoaderFunc adapts a function to the BufferLoader interface.
type BufferLoaderFunc func(uri string) ([]byte, error)

// LoadBuffer calls f(uri).
func (f BufferLoaderFunc) LoadBuffer(uri string) ([]byte, error) {
	return f(uri)
}

// fileBufferLoader reads relative URIs from a base directory.
type fileBufferLoader struct {
	baseDir string
}

// NewFileBufferLoader creates a BufferLoader that reads URIs relative to baseDir.
// URIs that escape baseDir are rejected.
//
// Parameters:
//   - baseDir: the directory the document was loaded from
//
// Returns:
//   - BufferLoader: the file loader
func NewFileBufferLoader(baseDir string) BufferLoader {
	return &fileBufferLoader{baseDir: baseDir}
}

func (l *fileBufferLoader) LoadBuffer(uri string) ([]byte, error) {
	if strings.Contains(uri, "://") {
		return nil, fmt.Errorf("unsupported URI scheme in %q", uri)
	}
	rel := filepath.Clean(filepath.FromSlash(uri))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("URI %q escapes the document directory", uri)
	}
	return os.ReadFile(filepath.Join(l.baseDir, rel))
}

func (p *gltfParserImpl) GetBuffer(index int) ([]byte, error) {
	if data, ok := p.buffers[index]; ok {
		return data, nil
	}
	if index < 0 || index >= len(p.document.Buffers) {
		return nil, common.NewError(common.ErrResource, "buffer %d out of range (%d buffers)", index, len(p.document.Buffers))
	}

	buf := &p.document.Buffers[index]
	var data []byte
	switch {
	case buf.URI == "":
		// Only the first buffer may refer to the GLB binary chunk.
		if index != 0 || p.glbBinaryChunk == nil {
			return nil, common.NewError(common.ErrResource, "buffer %d has no URI and no GLB binary chunk", index)
		}
		data = p.glbBinaryChunk
	case strings.HasPrefix(buf.URI, "data:"):
		decoded, err := decodeDataURI(buf.URI)
		if err != nil {
			return nil, fmt.Errorf("buffer %d: %w", index, err)
		}
		data = decoded
	default:
		if p.bufferLoader == nil {
			return nil, common.NewError(common.ErrResource, "buffer %d: no loader for external URI %q", index, buf.URI)
		}
		loaded, err := p.bufferLoader.LoadBuffer(buf.URI)
		if err != nil {
			return nil, common.WrapError(common.ErrResource, err, "buffer %d: failed to load %q", index, buf.URI)
		}
		data = loaded
	}

	if len(data) < buf.ByteLength {
		return nil, common.NewError(common.ErrResource, "buffer %d: %d bytes available, %d declared", index, len(data), buf.ByteLength)
	}
	if buf.ByteLength > 0 {
		data = data[:buf.ByteLength]
	}

	p.buffers[index] = data
	return data, nil
}

func (p *gltfParserImpl) GetBufferView(index int) ([]byte, int, error) {
	if index < 0 || index >= len(p.document.BufferViews) {
		return nil, 0, common.NewError(common.ErrResource, "buffer view %d out of range (%d views)", index, len(p.document.BufferViews))
	}
	view := &p.document.BufferViews[index]

	buf, err := p.GetBuffer(view.Buffer)
	if err != nil {
		return nil, 0, fmt.Errorf("buffer view %d: %w", index, err)
	}
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > len(buf) {
		return nil, 0, common.NewError(common.ErrResource, "buffer view %d: range [%d, %d) exceeds buffer %d of %d bytes",
			index, view.ByteOffset, view.ByteOffset+view.ByteLength, view.Buffer, len(buf))
	}

	stride := 0
	if view.ByteStride != nil {
		stride = *view.ByteStride
	}
	return buf[view.ByteOffset : view.ByteOffset+view.ByteLength], stride, nil
}

// maxAccessorCount bounds the element count of a single accessor.
const maxAccessorCount = 1 << 26

func (p *gltfParserImpl) Accessor(index int) (AccessorView, error) {
	if index < 0 || index >= len(p.document.Accessors) {
		return AccessorView{}, common.NewError(common.ErrResource, "accessor %d out of range (%d accessors)", index, len(p.document.Accessors))
	}
	acc := &p.document.Accessors[index]

	if acc.Sparse != nil {
		return AccessorView{}, common.NewError(common.ErrSchema, "accessor %d: sparse accessors are not supported", index)
	}
	arity := gltfAccessorTypeArity(acc.Type)
	if arity == 0 {
		return AccessorView{}, common.NewError(common.ErrSchema, "accessor %d: unknown type %q", index, acc.Type)
	}
	size := acc.ComponentType.Size()
	if size == 0 {
		return AccessorView{}, common.NewError(common.ErrSchema, "accessor %d: unknown component type %d", index, int(acc.ComponentType))
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return AccessorView{}, common.NewError(common.ErrSchema, "accessor %d: negative count or offset", index)
	}

	elementSize := arity * size
	view := AccessorView{
		Index:         index,
		ComponentType: acc.ComponentType,
		Arity:         arity,
		Count:         acc.Count,
		Stride:        elementSize,
		Normalized:    acc.Normalized,
	}

	if acc.Count > maxAccessorCount {
		return AccessorView{}, common.NewError(common.ErrResource, "accessor %d: count %d exceeds the limit of %d elements", index, acc.Count, maxAccessorCount)
	}

	// Accessors without a buffer view are all zeros: every element reads the same zeroed bytes.
	if acc.BufferView == nil {
		view.Bytes = make([]byte, elementSize)
		view.Stride = 0
		return view, nil
	}

	data, stride, err := p.GetBufferView(*acc.BufferView)
	if err != nil {
		return AccessorView{}, fmt.Errorf("accessor %d: %w", index, err)
	}
	if stride != 0 {
		if stride < elementSize {
			return AccessorView{}, common.NewError(common.ErrSchema, "accessor %d: stride %d smaller than element size %d", index, stride, elementSize)
		}
		view.Stride = stride
	}
	if acc.ByteOffset > len(data) {
		return AccessorView{}, common.NewError(common.ErrResource, "accessor %d: offset %d exceeds view of %d bytes", index, acc.ByteOffset, len(data))
	}
	data = data[acc.ByteOffset:]

	if acc.Count > 0 {
		if end := (acc.Count-1)*view.Stride + elementSize; end > len(data) {
			return AccessorView{}, common.NewError(common.ErrResource, "accessor %d: %d elements need %d bytes, view has %d", index, acc.Count, end, len(data))
		}
	}
	view.Bytes = data
	return view, nil
}

// decodeDataURI decodes a base64 data URI: data:[<mediatype>];base64,<data>
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, common.NewError(common.ErrResource, "malformed data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, common.NewError(common.ErrResource, "unsupported data URI encoding %q", header)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, common.WrapError(common.ErrResource, err, "malformed base64 payload")
	}
	return data, nil
}

// --- Typed Accessor Reads ---

var (
	floatOnly       = []ComponentType{ComponentTypeFloat}
	unsignedIndices = []ComponentType{ComponentTypeUnsignedByte, ComponentTypeUnsignedShort, ComponentTypeUnsignedInt}

	// float or unsigned normalized integers, e.g. texture coordinates and weights
	unitComponentTypes  = []ComponentType{ComponentTypeFloat, ComponentTypeUnsignedByte, ComponentTypeUnsignedShort}
	jointComponentTypes = []ComponentType{ComponentTypeUnsignedByte, ComponentTypeUnsignedShort}
)

func (p *gltfParserImpl) ReadScalarAccessor(index int) ([]float32, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{1}, ComponentTypes: floatOnly}, assembleScalar, nil)
}

func (p *gltfParserImpl) ReadVec3Accessor(index int) ([]mgl32.Vec3, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{3}, ComponentTypes: floatOnly}, assembleVec3, nil)
}

func (p *gltfParserImpl) ReadVec2Accessor(index int) ([]mgl32.Vec2, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{2}, ComponentTypes: unitComponentTypes, Normalized: true}, assembleVec2, nil)
}

func (p *gltfParserImpl) ReadVec4Accessor(index int) ([]mgl32.Vec4, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{4}, ComponentTypes: unitComponentTypes, Normalized: true}, assembleVec4, nil)
}

func (p *gltfParserImpl) ReadJointsAccessor(index int) ([][4]uint16, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{4}, ComponentTypes: jointComponentTypes}, assembleJoints, nil)
}

func (p *gltfParserImpl) ReadMat4Accessor(index int) ([]mgl32.Mat4, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{16}, ComponentTypes: floatOnly}, assembleMat4, nil)
}

func (p *gltfParserImpl) ReadIndicesAccessor(index int) ([]uint32, error) {
	return DecodeAccessor(p, index, AccessorConstraints{Arities: []int{1}, ComponentTypes: unsignedIndices}, assembleUint32, nil)
}
