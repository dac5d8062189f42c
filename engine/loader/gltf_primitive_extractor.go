package loader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	"github.com/go-gl/mathgl/mgl32"
)

// gltfPrimitiveExtractorImpl decodes mesh primitives into vertex attribute arrays.
type gltfPrimitiveExtractorImpl struct {
	parser *gltfParserImpl
}

// gltfPrimitiveExtractor defines the primitive decoding operations the parser delegates to.
type gltfPrimitiveExtractor interface {
	// ExtractPrimitives decodes every primitive of a mesh. Any failing primitive fails the mesh.
	//
	// Parameters:
	//   - meshIndex: the mesh index
	//
	// Returns:
	//   - []model.Primitive: one entry per primitive
	//   - error: ErrResource or ErrSchema
	ExtractPrimitives(meshIndex int) ([]model.Primitive, error)
}

var _ gltfPrimitiveExtractor = &gltfPrimitiveExtractorImpl{}

// newGLTFPrimitiveExtractor creates a primitive extractor bound to a parser.
func newGLTFPrimitiveExtractor(parser *gltfParserImpl) *gltfPrimitiveExtractorImpl {
	return &gltfPrimitiveExtractorImpl{parser: parser}
}

func (e *gltfPrimitiveExtractorImpl) ExtractPrimitives(meshIndex int) ([]model.Primitive, error) {
	doc := e.parser.document
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, common.NewError(common.ErrResource, "mesh index %d out of range (%d meshes)", meshIndex, len(doc.Meshes))
	}

	mesh := &doc.Meshes[meshIndex]
	primitives := make([]model.Primitive, 0, len(mesh.Primitives))
	for primIdx := range mesh.Primitives {
		prim, err := e.extractPrimitive(&mesh.Primitives[primIdx])
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIdx, err)
		}
		primitives = append(primitives, prim)
	}
	return primitives, nil
}

func (e *gltfPrimitiveExtractorImpl) extractPrimitive(prim *gltfPrimitive) (model.Primitive, error) {
	p := e.parser
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return model.Primitive{}, common.NewError(common.ErrSchema, "unsupported primitive mode %d (only triangles)", *prim.Mode)
	}

	out := model.Primitive{MaterialIndex: model.NoIndex}
	if prim.Material != nil {
		out.MaterialIndex = *prim.Material
	}

	var err error
	out.Positions, err = DecodeAccessorField(p, prim.Attributes, "POSITION",
		AccessorConstraints{Arities: []int{3}, ComponentTypes: floatOnly}, assembleVec3, p.basis.Position)
	if err != nil {
		return model.Primitive{}, err
	}

	out.Normals, err = optional(DecodeAccessorField(p, prim.Attributes, "NORMAL",
		AccessorConstraints{Arities: []int{3}, ComponentTypes: floatOnly}, assembleVec3,
		func(n mgl32.Vec3) mgl32.Vec3 { return p.basis.Direction(n) }))
	if err != nil {
		return model.Primitive{}, err
	}

	out.Tangents, err = optional(DecodeAccessorField(p, prim.Attributes, "TANGENT",
		AccessorConstraints{Arities: []int{4}, ComponentTypes: floatOnly}, assembleVec4,
		func(t mgl32.Vec4) mgl32.Vec4 { return p.basis.Direction(t.Vec3()).Vec4(t[3]) }))
	if err != nil {
		return model.Primitive{}, err
	}

	out.UVs, err = attributeSets(prim.Attributes, "TEXCOORD", p.ReadVec2Accessor)
	if err != nil {
		return model.Primitive{}, err
	}

	out.Colors, err = attributeSets(prim.Attributes, "COLOR", func(index int) ([]mgl32.Vec4, error) {
		return DecodeAccessor(p, index,
			AccessorConstraints{Arities: []int{3, 4}, ComponentTypes: unitComponentTypes, Normalized: true}, assembleColor, nil)
	})
	if err != nil {
		return model.Primitive{}, err
	}

	out.Joints, err = attributeSets(prim.Attributes, "JOINTS", p.ReadJointsAccessor)
	if err != nil {
		return model.Primitive{}, err
	}

	out.Weights, err = attributeSets(prim.Attributes, "WEIGHTS", p.ReadVec4Accessor)
	if err != nil {
		return model.Primitive{}, err
	}

	if prim.Indices != nil {
		out.Indices, err = p.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return model.Primitive{}, fmt.Errorf("indices: %w", err)
		}
		for i, idx := range out.Indices {
			if int(idx) >= len(out.Positions) {
				return model.Primitive{}, common.NewError(common.ErrResource, "index %d at %d exceeds %d vertices", idx, i, len(out.Positions))
			}
		}
	} else {
		out.Indices = make([]uint32, len(out.Positions))
		for i := range out.Indices {
			out.Indices[i] = uint32(i)
		}
	}

	return out, nil
}

// optional maps a missing attribute to no data.
func optional[T any](values []T, err error) ([]T, error) {
	if errors.Is(err, common.ErrFieldNotPresent) {
		return nil, nil
	}
	return values, err
}

// attributeSets reads PREFIX_0, PREFIX_1, ... until the first missing set.
func attributeSets[T any](attributes map[string]int, prefix string, read func(index int) ([]T, error)) ([][]T, error) {
	var sets [][]T
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s_%d", prefix, n)
		index, ok := attributes[name]
		if !ok {
			return sets, nil
		}
		values, err := read(index)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sets = append(sets, values)
	}
}
