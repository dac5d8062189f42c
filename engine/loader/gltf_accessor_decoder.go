package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
)

// ComponentType is a glTF accessor component encoding.
type ComponentType int

// Component encodings, using the glTF numeric codes.
const (
	ComponentTypeByte          ComponentType = 5120
	ComponentTypeUnsignedByte  ComponentType = 5121
	ComponentTypeShort         ComponentType = 5122
	ComponentTypeUnsignedShort ComponentType = 5123
	ComponentTypeUnsignedInt   ComponentType = 5125
	ComponentTypeFloat         ComponentType = 5126
)

// Size returns the byte size of a single component, or 0 for unknown encodings.
//
// Returns:
//   - int: the component size in bytes
func (c ComponentType) Size() int {
	switch c {
	case ComponentTypeByte, ComponentTypeUnsignedByte:
		return 1
	case ComponentTypeShort, ComponentTypeUnsignedShort:
		return 2
	case ComponentTypeUnsignedInt, ComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func (c ComponentType) String() string {
	switch c {
	case ComponentTypeByte:
		return "BYTE"
	case ComponentTypeUnsignedByte:
		return "UNSIGNED_BYTE"
	case ComponentTypeShort:
		return "SHORT"
	case ComponentTypeUnsignedShort:
		return "UNSIGNED_SHORT"
	case ComponentTypeUnsignedInt:
		return "UNSIGNED_INT"
	case ComponentTypeFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("ComponentType(%d)", int(c))
	}
}

// AccessorView is a resolved accessor: its descriptor plus the bytes of the buffer view starting at the
// accessor's offset. Bytes is shared with the buffer cache and must not be modified.
type AccessorView struct {
	// Index is the accessor index in the document.
	Index int

	// ComponentType is the component encoding.
	ComponentType ComponentType

	// Arity is the number of components per element (1, 2, 3, 4, 9 or 16).
	Arity int

	// Count is the number of elements.
	Count int

	// Stride is the distance in bytes between the starts of consecutive elements.
	Stride int

	// Normalized reports whether the accessor declares normalized integer data.
	Normalized bool

	// Bytes holds the element data; element i starts at i*Stride.
	Bytes []byte
}

// AccessorConstraints declares what a caller accepts from an accessor.
type AccessorConstraints struct {
	// Arities are the accepted element arities.
	Arities []int

	// ComponentTypes are the accepted component encodings.
	ComponentTypes []ComponentType

	// Normalized requests normalization of integer encodings. Accessors that declare
	// normalized data are normalized regardless.
	Normalized bool
}

// AccessorSource resolves accessor indices into views. The Parser implements it.
type AccessorSource interface {
	// Accessor resolves an accessor index.
	//
	// Parameters:
	//   - index: the accessor index
	//
	// Returns:
	//   - AccessorView: the resolved accessor
	//   - error: ErrResource or ErrSchema if the accessor cannot be resolved
	Accessor(index int) (AccessorView, error)
}

// DecodeAccessor decodes every element of an accessor into T.
// For each element, the components are converted to float64 per the component encoding and passed to
// assemble; the components slice is reused between elements, so assemble must copy what it keeps.
// filter post-processes each assembled element before it is appended and may be nil for identity.
// Nothing is returned on failure.
//
// Parameters:
//   - src: the accessor source
//   - index: the accessor index
//   - constraints: the accepted arities and encodings and the normalization request
//   - assemble: builds an element from its components
//   - filter: transforms an element after assembly (nil for identity)
//
// Returns:
//   - []T: the decoded elements
//   - error: ErrResource or ErrSchema wrapped with context
func DecodeAccessor[T any](src AccessorSource, index int, constraints AccessorConstraints, assemble func(components []float64) T, filter func(T) T) ([]T, error) {
	view, err := src.Accessor(index)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(constraints.Arities, view.Arity) {
		return nil, common.NewError(common.ErrSchema, "accessor %d: unsupported element arity %d (allowed %v)", index, view.Arity, constraints.Arities)
	}
	if !slices.Contains(constraints.ComponentTypes, view.ComponentType) {
		return nil, common.NewError(common.ErrSchema, "accessor %d: unsupported component type %s", index, view.ComponentType)
	}

	normalized := constraints.Normalized || view.Normalized
	size := view.ComponentType.Size()
	components := make([]float64, view.Arity)
	result := make([]T, 0, view.Count)

	for elementIndex := 0; elementIndex < view.Count; elementIndex++ {
		base := elementIndex * view.Stride
		for i := 0; i < view.Arity; i++ {
			components[i] = decodeComponent(view.Bytes[base+i*size:], view.ComponentType, normalized)
		}
		value := assemble(components)
		if filter != nil {
			value = filter(value)
		}
		result = append(result, value)
	}

	return result, nil
}

// DecodeAccessorField decodes the accessor referenced by a named field of an attribute map.
// A missing field yields common.ErrFieldNotPresent so callers can treat it as "no data".
//
// Parameters:
//   - src: the accessor source
//   - fields: the owning object's field-to-accessor map
//   - name: the field name
//   - constraints: the accepted arities and encodings and the normalization request
//   - assemble: builds an element from its components
//   - filter: transforms an element after assembly (nil for identity)
//
// Returns:
//   - []T: the decoded elements
//   - error: common.ErrFieldNotPresent, ErrResource or ErrSchema
func DecodeAccessorField[T any](src AccessorSource, fields map[string]int, name string, constraints AccessorConstraints, assemble func(components []float64) T, filter func(T) T) ([]T, error) {
	index, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrFieldNotPresent, name)
	}
	values, err := DecodeAccessor(src, index, constraints, assemble, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return values, nil
}

// decodeComponent converts one little-endian component to float64.
// Signed normalized values are clamped at -1 because the most negative integer maps slightly below it.
func decodeComponent(b []byte, componentType ComponentType, normalized bool) float64 {
	switch componentType {
	case ComponentTypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case ComponentTypeByte:
		v := float64(int8(b[0]))
		if normalized {
			return math.Max(v/127.0, -1.0)
		}
		return v
	case ComponentTypeUnsignedByte:
		v := float64(b[0])
		if normalized {
			return v / 255.0
		}
		return v
	case ComponentTypeShort:
		v := float64(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return math.Max(v/32767.0, -1.0)
		}
		return v
	case ComponentTypeUnsignedShort:
		v := float64(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535.0
		}
		return v
	case ComponentTypeUnsignedInt:
		return float64(binary.LittleEndian.Uint32(b))
	default:
		return 0
	}
}

// gltfAccessorTypeArity returns the number of components for an accessor type, or 0 if unknown.
func gltfAccessorTypeArity(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4, gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}

// --- Element Assemblers ---

func assembleScalar(c []float64) float32 {
	return float32(c[0])
}

func assembleVec2(c []float64) mgl32.Vec2 {
	return mgl32.Vec2{float32(c[0]), float32(c[1])}
}

func assembleVec3(c []float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(c[0]), float32(c[1]), float32(c[2])}
}

func assembleVec4(c []float64) mgl32.Vec4 {
	return mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

// assembleColor widens RGB colors to RGBA with opaque alpha.
func assembleColor(c []float64) mgl32.Vec4 {
	if len(c) == 3 {
		return mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), 1}
	}
	return assembleVec4(c)
}

// assembleQuat reads glTF (x, y, z, w) order.
func assembleQuat(c []float64) mgl32.Quat {
	return mgl32.Quat{W: float32(c[3]), V: mgl32.Vec3{float32(c[0]), float32(c[1]), float32(c[2])}}
}

// assembleMat4 reads a column-major matrix, matching both glTF and mgl32 layouts.
func assembleMat4(c []float64) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = float32(c[i])
	}
	return m
}

func assembleUint32(c []float64) uint32 {
	return uint32(c[0])
}

func assembleJoints(c []float64) [4]uint16 {
	return [4]uint16{uint16(c[0]), uint16(c[1]), uint16(c[2]), uint16(c[3])}
}
