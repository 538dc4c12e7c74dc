package exporter

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// meshKey identifies one exported glTF mesh. Scene meshes sharing geometry, material and mode share it.
type meshKey struct {
	geometry *model.Geometry
	material *model.Material
	mode     model.DrawMode
}

// textureKey identifies one exported glTF texture.
type textureKey struct {
	image   *common.ImageData
	sampler common.SamplerState
}

type pendingSkin struct {
	node int
	mesh *scene.SkinnedMesh
}

// writer holds the state of a single export.
type writer struct {
	opts Options
	doc  *gltf.Document
	bin  bytes.Buffer

	nodes     map[*scene.Node]int
	nodeNames map[string]int
	meshes    map[meshKey]int
	accessors map[model.Attribute]int
	materials map[*model.Material]int
	textures  map[textureKey]int
	images    map[string]int
	samplers  map[common.SamplerState]int

	lights  []gltf.Light
	skinned []pendingSkin
}

func newWriter(opts Options) *writer {
	return &writer{
		opts:      opts,
		doc:       &gltf.Document{},
		nodes:     make(map[*scene.Node]int),
		nodeNames: make(map[string]int),
		meshes:    make(map[meshKey]int),
		accessors: make(map[model.Attribute]int),
		materials: make(map[*model.Material]int),
		textures:  make(map[textureKey]int),
		images:    make(map[string]int),
		samplers:  make(map[common.SamplerState]int),
	}
}

// writeBufferView appends data to the binary buffer at a 4-byte aligned offset.
//
// Parameters:
//   - data: the bytes to append
//   - target: the GPU buffer target, or nil
//
// Returns:
//   - int: the buffer view index
func (w *writer) writeBufferView(data []byte, target *int) int {
	for w.bin.Len()%4 != 0 {
		w.bin.WriteByte(0)
	}
	offset := w.bin.Len()
	w.bin.Write(data)

	w.doc.BufferViews = append(w.doc.BufferViews, gltf.BufferView{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: len(data),
		Target:     target,
	})
	return len(w.doc.BufferViews) - 1
}

// writeFloats stores tightly packed float32 values as a new accessor.
//
// Parameters:
//   - values: the flattened items
//   - itemSize: the number of components per item
//   - target: the GPU buffer target, or nil
//   - bounds: whether to record min and max
//
// Returns:
//   - int: the accessor index
func (w *writer) writeFloats(values []float32, itemSize int, target *int, bounds bool) int {
	view := w.writeBufferView(model.FromSlice(model.ComponentFloat32, values).Bytes(), target)
	accessor := gltf.Accessor{
		BufferView:    common.Ptr(view),
		ComponentType: int(model.ComponentFloat32),
		Count:         len(values) / itemSize,
		Type:          gltf.TypeForItemSize(itemSize),
	}
	if bounds {
		accessor.Min, accessor.Max = minMax(values, itemSize)
	}
	w.doc.Accessors = append(w.doc.Accessors, accessor)
	return len(w.doc.Accessors) - 1
}

// writeAttribute stores a geometry attribute as an accessor, reusing the accessor of an attribute
// exported earlier. Integer data is kept where glTF allows it for the semantic and converted to
// float32 otherwise.
//
// Parameters:
//   - attr: the attribute to store
//   - semantic: the glTF attribute semantic, "indices" for an index buffer, or "" for a morph delta
//
// Returns:
//   - int: the accessor index
func (w *writer) writeAttribute(attr model.Attribute, semantic string) int {
	if idx, ok := w.accessors[attr]; ok {
		return idx
	}

	itemSize := attr.ItemSize()
	ct, normalized := exportComponentType(attr, semantic)

	var target *int
	switch semantic {
	case "indices":
		target = common.Ptr(gltf.TargetElementArrayBuffer)
	case "":
	default:
		target = common.Ptr(gltf.TargetArrayBuffer)
	}

	var idx int
	if ct == model.ComponentFloat32 {
		idx = w.writeFloats(attr.Float32s(), itemSize, target, semantic == "POSITION" || semantic == "")
	} else {
		array := model.NewTypedArray(ct, attr.Count()*itemSize)
		for i := 0; i < attr.Count(); i++ {
			for c := 0; c < itemSize; c++ {
				array.Set(i*itemSize+c, attr.Component(i, c))
			}
		}
		view := w.writeBufferView(array.Bytes(), target)
		w.doc.Accessors = append(w.doc.Accessors, gltf.Accessor{
			BufferView:    common.Ptr(view),
			ComponentType: int(ct),
			Normalized:    normalized,
			Count:         attr.Count(),
			Type:          gltf.TypeForItemSize(itemSize),
		})
		idx = len(w.doc.Accessors) - 1
	}
	w.accessors[attr] = idx
	return idx
}

// exportComponentType picks the stored component type of an attribute.
func exportComponentType(attr model.Attribute, semantic string) (model.ComponentType, bool) {
	ct := attr.ComponentType()
	switch {
	case semantic == "indices":
		if ct == model.ComponentUint8 || ct == model.ComponentUint16 || ct == model.ComponentUint32 {
			return ct, false
		}
		return model.ComponentUint32, false
	case semantic == "JOINTS_0":
		if ct == model.ComponentUint8 || ct == model.ComponentUint16 {
			return ct, false
		}
		return model.ComponentUint16, false
	}

	keepsNormalized := semantic == "COLOR_0" || semantic == "WEIGHTS_0" || isTexCoord(semantic)
	aligned := (ct.Size()*attr.ItemSize())%4 == 0
	if keepsNormalized && attr.Normalized() && aligned && (ct == model.ComponentUint8 || ct == model.ComponentUint16) {
		return ct, true
	}
	return model.ComponentFloat32, false
}

func isTexCoord(semantic string) bool {
	return len(semantic) > len("TEXCOORD_") && semantic[:len("TEXCOORD_")] == "TEXCOORD_"
}

func minMax(values []float32, itemSize int) ([]float32, []float32) {
	if len(values) < itemSize || itemSize == 0 {
		return nil, nil
	}
	lo := slices.Clone(values[:itemSize])
	hi := slices.Clone(values[:itemSize])
	for i := itemSize; i+itemSize <= len(values); i += itemSize {
		for c := 0; c < itemSize; c++ {
			lo[c] = float32(math.Min(float64(lo[c]), float64(values[i+c])))
			hi[c] = float32(math.Max(float64(hi[c]), float64(values[i+c])))
		}
	}
	return lo, hi
}

// encodeExtras marshals a user data bag. Extensions the loader could not handle are re-emitted
// separately and left out. Bags that cannot be marshaled are dropped with a warning.
//
// Parameters:
//   - userData: the bag to encode
//
// Returns:
//   - json.RawMessage: the extras, or nil when nothing is left
func encodeExtras(userData map[string]any) json.RawMessage {
	if len(userData) == 0 {
		return nil
	}
	bag := make(map[string]any, len(userData))
	for k, v := range userData {
		if k == "gltfExtensions" {
			continue
		}
		bag[k] = v
	}
	if len(bag) == 0 {
		return nil
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		common.LogWarn("dropping user data that cannot be encoded as JSON: %v", err)
		return nil
	}
	return raw
}

// encodeExtensions re-emits the extensions the loader stored under userData["gltfExtensions"].
func (w *writer) encodeExtensions(userData map[string]any) map[string]json.RawMessage {
	bag, ok := userData["gltfExtensions"].(map[string]any)
	if !ok || len(bag) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(bag))
	for name, v := range bag {
		raw, err := json.Marshal(v)
		if err != nil {
			common.LogWarn("dropping extension %s: %v", name, err)
			continue
		}
		out[name] = raw
		w.doc.UseExtension(name, false)
	}
	return out
}

// addExtension encodes v under name into exts and records the extension as used.
func (w *writer) addExtension(exts map[string]json.RawMessage, name string, v any) (map[string]json.RawMessage, error) {
	exts, err := gltf.EncodeExtension(exts, name, v)
	if err != nil {
		return exts, err
	}
	w.doc.UseExtension(name, false)
	return exts, nil
}
