package loader

import (
	"testing"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addMesh(f *gltfFixture, name string, primitive map[string]any) int {
	return f.add("meshes", map[string]any{"name": name, "primitives": []any{primitive}})
}

func TestLoadPrimitivesFullVertex(t *testing.T) {
	f := newFixture()
	pos := f.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	nrm := f.floats(gltfAccessorTypeVec3, 0, 0, 1, 0, 0, 1, 0, 0, 1)
	uv := f.accessor(f.view([]byte{0, 0, 255, 0, 0, 255}, 0), ComponentTypeUnsignedByte, gltfAccessorTypeVec2, 3, map[string]any{"normalized": true})
	color := f.floats(gltfAccessorTypeVec3, 1, 0, 0, 0, 1, 0, 0, 0, 1)
	joints := f.accessor(f.view([]byte{0, 1, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}, 0), ComponentTypeUnsignedByte, gltfAccessorTypeVec4, 3, nil)
	weights := f.floats(gltfAccessorTypeVec4, 1, 0, 0, 0, 0.5, 0.5, 0, 0, 1, 0, 0, 0)
	indices := f.accessor(f.view(u16Bytes(0, 1, 2), 0), ComponentTypeUnsignedShort, gltfAccessorTypeScalar, 3, nil)
	addMesh(f, "tri", map[string]any{
		"attributes": map[string]int{
			"POSITION": pos, "NORMAL": nrm, "TEXCOORD_0": uv, "COLOR_0": color, "JOINTS_0": joints, "WEIGHTS_0": weights,
		},
		"indices":  indices,
		"material": 3,
	})
	p := f.parse(t)

	prims, err := p.LoadPrimitives(0)
	require.NoError(t, err)
	require.Len(t, prims, 1)
	prim := prims[0]

	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, prim.Positions)
	assert.Len(t, prim.Normals, 3)
	assert.Empty(t, prim.Tangents)
	require.Len(t, prim.UVs, 1)
	assert.Equal(t, []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}}, prim.UVs[0])
	require.Len(t, prim.Colors, 1)
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, prim.Colors[0][1])
	require.Len(t, prim.Joints, 1)
	assert.Equal(t, [4]uint16{2, 0, 0, 0}, prim.Joints[0][2])
	require.Len(t, prim.Weights, 1)
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 0, 0}, prim.Weights[0][1])
	assert.Equal(t, []uint32{0, 1, 2}, prim.Indices)
	assert.Equal(t, 3, prim.MaterialIndex)

	assert.Equal(t, 0, p.FindMeshByName("tri"))
	assert.Equal(t, model.NoIndex, p.FindMeshByName("quad"))
}

func TestLoadPrimitivesGeneratesIndices(t *testing.T) {
	f := newFixture()
	pos := f.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	addMesh(f, "", map[string]any{"attributes": map[string]int{"POSITION": pos}})

	prims, err := f.parse(t).LoadPrimitives(0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, prims[0].Indices)
	assert.Equal(t, model.NoIndex, prims[0].MaterialIndex)
	assert.Nil(t, prims[0].UVs)
}

func TestLoadPrimitivesSceneBasis(t *testing.T) {
	zUp := mgl32.Mat4{1, 0, 0, 0, 0, 0, 1, 0, 0, -1, 0, 0, 0, 0, 0, 1}
	f := newFixture()
	pos := f.floats(gltfAccessorTypeVec3, 0, 1, 0)
	nrm := f.floats(gltfAccessorTypeVec3, 0, 1, 0)
	addMesh(f, "", map[string]any{"attributes": map[string]int{"POSITION": pos, "NORMAL": nrm}})

	prims, err := f.parse(t, WithSceneBasis(zUp), WithSceneScale(2)).LoadPrimitives(0)
	require.NoError(t, err)
	assert.True(t, prims[0].Positions[0].ApproxEqualThreshold(mgl32.Vec3{0, 0, 2}, 1e-6))
	assert.True(t, prims[0].Normals[0].ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-6))
}

func TestLoadPrimitivesErrors(t *testing.T) {
	f := newFixture()
	pos := f.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	badIndices := f.accessor(f.view(u16Bytes(0, 1, 5), 0), ComponentTypeUnsignedShort, gltfAccessorTypeScalar, 3, nil)
	floatJoints := f.floats(gltfAccessorTypeVec4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	addMesh(f, "bad indices", map[string]any{"attributes": map[string]int{"POSITION": pos}, "indices": badIndices})
	addMesh(f, "no position", map[string]any{"attributes": map[string]int{"NORMAL": pos}})
	addMesh(f, "lines", map[string]any{"attributes": map[string]int{"POSITION": pos}, "mode": 1})
	addMesh(f, "float joints", map[string]any{"attributes": map[string]int{"POSITION": pos, "JOINTS_0": floatJoints}})
	p := f.parse(t)

	_, err := p.LoadPrimitives(0)
	assert.ErrorIs(t, err, common.ErrResource)
	_, err = p.LoadPrimitives(1)
	assert.ErrorIs(t, err, common.ErrFieldNotPresent)
	_, err = p.LoadPrimitives(2)
	assert.ErrorIs(t, err, common.ErrSchema)
	_, err = p.LoadPrimitives(3)
	assert.ErrorIs(t, err, common.ErrSchema)
	_, err = p.LoadPrimitives(4)
	assert.ErrorIs(t, err, common.ErrResource)
}
