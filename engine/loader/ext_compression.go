package loader

import (
	"context"
	"fmt"
	"maps"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// --- KHR_draco_mesh_compression ---

type dracoExtension struct {
	parser *Parser
}

var _ Extension = &dracoExtension{}

func (e *dracoExtension) Name() string {
	return gltf.ExtDracoMeshCompression
}

// decodePrimitive decodes the compressed geometry of a primitive. Attribute component types and
// normalization follow the accessors the primitive declares for the same semantics.
func (e *dracoExtension) decodePrimitive(ctx context.Context, primitive *gltf.Primitive, ext *gltf.DracoPrimitive) (*model.Geometry, error) {
	p := e.parser
	if p.dracoSched == nil {
		return nil, fmt.Errorf("%w: a draco scheduler must be configured to load %s primitives", ErrMissingRequiredCapability, e.Name())
	}

	cfg := draco.TaskConfig{
		AttributeIDs:     make(map[string]int, len(ext.Attributes)),
		AttributeTypes:   make(map[string]model.ComponentType, len(ext.Attributes)),
		UseUniqueIDs:     true,
		VertexColorSpace: model.ColorSpaceNone,
	}
	for name, id := range ext.Attributes {
		cfg.AttributeIDs[attributeName(name)] = id
	}

	normalized := make(map[string]bool)
	for name, accessor := range primitive.Attributes {
		target := attributeName(name)
		if _, ok := ext.Attributes[name]; !ok {
			continue
		}
		def, err := definition(p.doc.Accessors, KindAccessor, accessor)
		if err != nil {
			return nil, err
		}
		cfg.AttributeTypes[target] = model.ComponentType(def.ComponentType)
		normalized[target] = def.Normalized
	}

	view, err := dependency[[]byte](ctx, p, KindBufferView, ext.BufferView).Await(ctx)
	if err != nil {
		return nil, err
	}

	// the handle takes ownership, so the worker gets its own copy of the shared buffer
	data := make([]byte, len(view))
	copy(data, view)
	geometry, err := p.dracoSched.Decode(ctx, draco.NewBufferHandle(data), cfg).Await(ctx)
	if err != nil {
		return nil, err
	}

	geometry = geometry.Clone()
	for name, attr := range maps.Clone(geometry.Attributes) {
		n, ok := normalized[name]
		if !ok || n == attr.Normalized() {
			continue
		}
		if ba, isBuffer := attr.(*model.BufferAttribute); isBuffer {
			geometry.SetAttribute(name, model.NewBufferAttribute(ba.Array(), ba.ItemSize(), n))
		}
	}
	return geometry, nil
}

// --- EXT_meshopt_compression ---

type meshoptExtension struct {
	parser *Parser
}

var _ BufferViewLoader = &meshoptExtension{}

func newMeshoptExtension(p *Parser) Extension {
	return &meshoptExtension{parser: p}
}

func (e *meshoptExtension) Name() string {
	return gltf.ExtMeshoptCompression
}

// LoadBufferView decodes a compressed buffer view. Without a decoder it defers to the view's
// uncompressed fallback, unless the asset requires the extension.
func (e *meshoptExtension) LoadBufferView(ctx context.Context, index int) *future.Future[[]byte] {
	p := e.parser
	if index < 0 || index >= len(p.doc.BufferViews) {
		return nil
	}
	var ext gltf.MeshoptBufferView
	found, err := gltf.DecodeExtension(p.doc.BufferViews[index].Extensions, e.Name(), &ext)
	if err != nil {
		return future.Rejected[[]byte](err)
	}
	if !found {
		return nil
	}

	if p.meshopt == nil {
		if p.doc.ExtensionRequired(e.Name()) {
			return future.Rejected[[]byte](fmt.Errorf("%w: a meshopt decoder must be configured to load compressed files", ErrMissingRequiredCapability))
		}
		return nil
	}

	return future.Go(func() ([]byte, error) {
		buf, err := dependency[[]byte](ctx, p, KindBuffer, ext.Buffer).Await(ctx)
		if err != nil {
			return nil, err
		}
		end := ext.ByteOffset + ext.ByteLength
		if ext.ByteOffset < 0 || end > len(buf) {
			return nil, fmt.Errorf("%w: compressed bufferView %d exceeds its buffer", ErrIndexOutOfRange, index)
		}
		out, err := p.meshopt.DecodeGltfBuffer(ctx, ext.Count, ext.ByteStride, buf[ext.ByteOffset:end], ext.Mode, ext.Filter).Await(ctx)
		if err != nil {
			return nil, err
		}
		if len(out) != ext.Count*ext.ByteStride {
			return nil, fmt.Errorf("loader: meshopt decoder returned %d bytes, want %d", len(out), ext.Count*ext.ByteStride)
		}
		return out, nil
	})
}

// fallbackBuffer reports whether a buffer only exists as a placeholder for meshopt-compressed data.
func fallbackBuffer(def *gltf.Buffer) bool {
	var ext gltf.MeshoptBuffer
	found, err := gltf.DecodeExtension(def.Extensions, gltf.ExtMeshoptCompression, &ext)
	if err != nil {
		common.LogWarn("%v", err)
	}
	return found && ext.Fallback
}

// --- KHR_mesh_quantization ---

// meshQuantizationExtension only marks the extension as known. Quantized attributes are read
// as regular integer accessors.
type meshQuantizationExtension struct{}

var _ Extension = &meshQuantizationExtension{}

func (e *meshQuantizationExtension) Name() string {
	return gltf.ExtMeshQuantization
}
