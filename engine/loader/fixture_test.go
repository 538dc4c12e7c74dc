package loader

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// fixture builds a glTF document whose buffer 0 is an in-memory binary body.
type fixture struct {
	doc *gltf.Document
	bin []byte
}

func newFixture() *fixture {
	return &fixture{doc: &gltf.Document{Asset: gltf.Asset{Version: "2.0"}}}
}

func float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func uint16Bytes(values ...uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

// addView appends data to the body, 4-byte aligned, as a new buffer view.
func (f *fixture) addView(data []byte, stride int) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	bv := gltf.BufferView{Buffer: 0, ByteOffset: len(f.bin), ByteLength: len(data)}
	if stride > 0 {
		bv.ByteStride = common.Ptr(stride)
	}
	f.bin = append(f.bin, data...)
	f.doc.BufferViews = append(f.doc.BufferViews, bv)
	return len(f.doc.BufferViews) - 1
}

func (f *fixture) addAccessor(a gltf.Accessor) int {
	f.doc.Accessors = append(f.doc.Accessors, a)
	return len(f.doc.Accessors) - 1
}

// addFloats stores values in their own view and returns a float accessor over them.
func (f *fixture) addFloats(accessorType string, values ...float32) int {
	view := f.addView(float32Bytes(values...), 0)
	return f.addAccessor(gltf.Accessor{
		BufferView:    common.Ptr(view),
		ComponentType: int(model.ComponentFloat32),
		Count:         len(values) / gltf.ItemSize(accessorType),
		Type:          accessorType,
	})
}

func (f *fixture) addNode(n gltf.Node) int {
	f.doc.Nodes = append(f.doc.Nodes, n)
	return len(f.doc.Nodes) - 1
}

// triangleMesh adds a mesh with one unindexed triangle.
func (f *fixture) triangleMesh(name string) int {
	pos := f.addFloats(gltf.TypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	f.doc.Accessors[pos].Min = []float32{0, 0, 0}
	f.doc.Accessors[pos].Max = []float32{1, 1, 0}
	f.doc.Meshes = append(f.doc.Meshes, gltf.Mesh{
		Name:       name,
		Primitives: []gltf.Primitive{{Attributes: map[string]int{"POSITION": pos}}},
	})
	return len(f.doc.Meshes) - 1
}

func (f *fixture) finish() {
	if len(f.bin) > 0 {
		f.doc.Buffers = []gltf.Buffer{{ByteLength: len(f.bin)}}
	}
}

func (f *fixture) parser(options ...ParserBuilderOption) *Parser {
	f.finish()
	return NewParser(f.doc, append([]ParserBuilderOption{WithBody(f.bin)}, options...)...)
}

func (f *fixture) glb(t *testing.T) []byte {
	t.Helper()
	f.finish()
	content, err := json.Marshal(f.doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return gltf.EncodeBinaryContainer(content, f.bin)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}
