package loader

import (
	"encoding/base64"
	"encoding/binary"
	"maps"
	"math"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// gltfFixture assembles small glTF documents in memory. Every buffer view lives in buffer 0.
type gltfFixture struct {
	doc map[string]any
	bin []byte
}

func newFixture() *gltfFixture {
	return &gltfFixture{doc: map[string]any{
		"asset": map[string]any{"version": "2.0", "generator": "fixture"},
	}}
}

// add appends obj to the named top-level array and returns its index.
func (f *gltfFixture) add(key string, obj map[string]any) int {
	list, _ := f.doc[key].([]any)
	f.doc[key] = append(list, obj)
	return len(list)
}

// get returns a previously added object for further editing.
func (f *gltfFixture) get(key string, index int) map[string]any {
	return f.doc[key].([]any)[index].(map[string]any)
}

func (f *gltfFixture) view(data []byte, stride int) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	v := map[string]any{"buffer": 0, "byteOffset": len(f.bin), "byteLength": len(data)}
	if stride > 0 {
		v["byteStride"] = stride
	}
	f.bin = append(f.bin, data...)
	return f.add("bufferViews", v)
}

// accessor adds an accessor; view < 0 omits the bufferView.
func (f *gltfFixture) accessor(view int, componentType ComponentType, typ string, count int, extra map[string]any) int {
	a := map[string]any{"componentType": int(componentType), "type": typ, "count": count}
	if view >= 0 {
		a["bufferView"] = view
	}
	maps.Copy(a, extra)
	return f.add("accessors", a)
}

func (f *gltfFixture) floats(typ string, values ...float32) int {
	count := len(values) / gltfAccessorTypeArity(typ)
	return f.accessor(f.view(f32Bytes(values...), 0), ComponentTypeFloat, typ, count, nil)
}

func (f *gltfFixture) node(name string, translation []float32, children ...int) int {
	n := map[string]any{}
	if name != "" {
		n["name"] = name
	}
	if translation != nil {
		n["translation"] = translation
	}
	if len(children) > 0 {
		n["children"] = children
	}
	return f.add("nodes", n)
}

func (f *gltfFixture) document() map[string]any {
	doc := maps.Clone(f.doc)
	if _, ok := doc["buffers"]; !ok && len(f.bin) > 0 {
		doc["buffers"] = []any{map[string]any{
			"byteLength": len(f.bin),
			"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(f.bin),
		}}
	}
	return doc
}

func (f *gltfFixture) gltfJSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(f.document())
	require.NoError(t, err)
	return data
}

func (f *gltfFixture) glb(t *testing.T) []byte {
	t.Helper()
	doc := maps.Clone(f.doc)
	bin := append([]byte(nil), f.bin...)
	if len(bin) > 0 {
		doc["buffers"] = []any{map[string]any{"byteLength": len(bin)}}
	}
	jsonData, err := json.Marshal(doc)
	require.NoError(t, err)
	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	total := 12 + 8 + len(jsonData)
	if len(bin) > 0 {
		total += 8 + len(bin)
	}
	out := make([]byte, 0, total)
	out = binary.LittleEndian.AppendUint32(out, gltfGLBMagic)
	out = binary.LittleEndian.AppendUint32(out, gltfGLBVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(jsonData)))
	out = binary.LittleEndian.AppendUint32(out, gltfGLBChunkJSON)
	out = append(out, jsonData...)
	if len(bin) > 0 {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(bin)))
		out = binary.LittleEndian.AppendUint32(out, gltfGLBChunkBIN)
		out = append(out, bin...)
	}
	return out
}

func (f *gltfFixture) parse(t *testing.T, options ...ParserBuilderOption) *gltfParserImpl {
	t.Helper()
	p, err := newParser(f.gltfJSON(t), false, options...)
	require.NoError(t, err)
	return p
}

// writeFile stores the document as a .gltf file in dir and returns its path.
func (f *gltfFixture) writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, f.gltfJSON(t), 0o644))
	return path
}

func f32Bytes(values ...float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func u16Bytes(values ...uint16) []byte {
	out := make([]byte, 0, len(values)*2)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	return out
}

func u32Bytes(values ...uint32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

func translationMat4(x, y, z float32) []float32 {
	return []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

func intPtr(v int) *int {
	return &v
}
