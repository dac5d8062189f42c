// gltf_types.go holds the subset of the glTF 2.0 JSON schema the decoder reads.
// Materials, textures, images, cameras and extensions are ignored by the JSON decoder.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
package loader

// gltfDocument is the root object of a glTF document. It is never mutated after parsing.
type gltfDocument struct {
	Asset       gltfAsset        `json:"asset"`
	Scene       *int             `json:"scene,omitempty"`
	Scenes      []gltfScene      `json:"scenes,omitempty"`
	Nodes       []gltfNode       `json:"nodes,omitempty"`
	Meshes      []gltfMesh       `json:"meshes,omitempty"`
	Accessors   []gltfAccessor   `json:"accessors,omitempty"`
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`
	Buffers     []gltfBuffer     `json:"buffers,omitempty"`
	Skins       []gltfSkin       `json:"skins,omitempty"`
	Animations  []gltfAnimation  `json:"animations,omitempty"`

	// ExtensionsRequired lists extensions the asset cannot be loaded without.
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
}

// gltfAsset is the document metadata; only Version is checked.
type gltfAsset struct {
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
	Generator  string `json:"generator,omitempty"`
}

// gltfScene lists the root nodes of a scene.
type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

// gltfNode is a node of the hierarchy. Matrix and TRS are mutually exclusive.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-node
type gltfNode struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`
	Skin     *int   `json:"skin,omitempty"`

	// Matrix is column-major.
	Matrix *[16]float32 `json:"matrix,omitempty"`

	Translation *[3]float32 `json:"translation,omitempty"`

	// Rotation is a quaternion in (x, y, z, w) order.
	Rotation *[4]float32 `json:"rotation,omitempty"`

	Scale *[3]float32 `json:"scale,omitempty"`
}

// gltfMesh is a named set of primitives.
type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive maps attribute semantics (POSITION, NORMAL, TEXCOORD_0, JOINTS_0, ...) to accessor indices.
type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`

	// Mode defaults to triangles when absent.
	Mode *int `json:"mode,omitempty"`
}

// gltfPrimitiveModeTriangles is the only primitive topology the decoder accepts.
const gltfPrimitiveModeTriangles = 4

// gltfAccessor describes a typed run of elements inside a buffer view.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-accessor
type gltfAccessor struct {
	Name string `json:"name,omitempty"`

	// BufferView is nil for accessors whose elements are all zero.
	BufferView *int `json:"bufferView,omitempty"`

	ByteOffset    int           `json:"byteOffset,omitempty"`
	ComponentType ComponentType `json:"componentType"`
	Normalized    bool          `json:"normalized,omitempty"`
	Count         int           `json:"count"`

	// Type is SCALAR, VEC2, VEC3, VEC4, MAT2, MAT3 or MAT4.
	Type string `json:"type"`

	// Sparse is only inspected to reject sparse accessors.
	Sparse *struct {
		Count int `json:"count"`
	} `json:"sparse,omitempty"`
}

// Accessor element types
const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
	gltfAccessorTypeMat2   = "MAT2"
	gltfAccessorTypeMat3   = "MAT3"
	gltfAccessorTypeMat4   = "MAT4"
)

// gltfBufferView is a byte range of a buffer.
type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset,omitempty"`
	ByteLength int `json:"byteLength"`

	// ByteStride is nil (or 0) for tightly packed data.
	ByteStride *int `json:"byteStride,omitempty"`
}

// gltfBuffer is a block of binary data. URI is empty for the GLB BIN chunk.
type gltfBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
}

// gltfSkin binds a joint list to inverse bind matrices.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-skin
type gltfSkin struct {
	Name                string `json:"name,omitempty"`
	InverseBindMatrices *int   `json:"inverseBindMatrices,omitempty"`

	// Skeleton is an optional hint for the skeleton root node.
	Skeleton *int  `json:"skeleton,omitempty"`
	Joints   []int `json:"joints"`
}

// gltfAnimation is a set of channels sharing a sampler list.
type gltfAnimation struct {
	Name     string            `json:"name,omitempty"`
	Channels []gltfAnimChannel `json:"channels"`
	Samplers []gltfAnimSampler `json:"samplers"`
}

// gltfAnimChannel connects a sampler to a node property.
type gltfAnimChannel struct {
	Sampler int `json:"sampler"`
	Target  struct {
		Node *int   `json:"node,omitempty"`
		Path string `json:"path"`
	} `json:"target"`
}

// gltfAnimSampler pairs a time accessor (Input) with a value accessor (Output).
type gltfAnimSampler struct {
	Input         int    `json:"input"`
	Output        int    `json:"output"`
	Interpolation string `json:"interpolation,omitempty"`
}

// Animation interpolation modes
const (
	gltfAnimInterpolationLinear      = "LINEAR"
	gltfAnimInterpolationStep        = "STEP"
	gltfAnimInterpolationCubicSpline = "CUBICSPLINE"
)

// Animation target paths
const (
	gltfAnimPathTranslation = "translation"
	gltfAnimPathRotation    = "rotation"
	gltfAnimPathScale       = "scale"
	gltfAnimPathWeights     = "weights"
)

// gltfGLBHeader is the 12-byte GLB file header.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
type gltfGLBHeader struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

// gltfGLBChunkHeader precedes every GLB chunk.
type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32
}

const (
	gltfGLBMagic     = 0x46546C67 // "glTF"
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON"
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0"
)
