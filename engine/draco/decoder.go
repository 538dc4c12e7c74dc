package draco

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

var (
	// ErrDecodeFailure is returned when the decoder reports a not-ok status or produces no geometry.
	ErrDecodeFailure = errors.New("draco: decoding failed")

	// ErrBufferTransferred is returned when a handle already sent to a worker is decoded again with different settings.
	ErrBufferTransferred = errors.New("draco: unable to re-decode a buffer with different settings, buffer has already been transferred")

	// ErrMissingModule is returned when no decoder module factory is configured.
	ErrMissingModule = errors.New("draco: no decoder module configured")

	// ErrSchedulerDisposed is returned for tasks that were pending when the scheduler was disposed.
	ErrSchedulerDisposed = errors.New("draco: scheduler disposed")
)

// GeometryType is the kind of geometry stored in an encoded buffer.
type GeometryType int

const (
	InvalidGeometryType GeometryType = iota - 1
	PointCloud
	TriangularMesh
)

// AttributeType is a Draco semantic attribute id, used to look up attributes of standalone .drc files.
type AttributeType int

const (
	AttributePosition AttributeType = iota
	AttributeNormal
	AttributeColor
	AttributeTexCoord
	AttributeGeneric
)

// Status is the result of a native decode call.
type Status struct {
	OK      bool
	Message string
}

// Module is an initialized decoder library. One module is created per worker.
type Module interface {
	// NewDecoder allocates a native decoder. The caller releases it.
	NewDecoder() NativeDecoder
}

// NativeDecoder mirrors the Draco decoder API. Every handle it returns must be released by the caller.
type NativeDecoder interface {
	// GeometryType inspects the header of data.
	GeometryType(data []byte) GeometryType

	// DecodeMesh decodes a triangular mesh.
	DecodeMesh(data []byte) (NativeGeometry, Status)

	// DecodePointCloud decodes a point cloud.
	DecodePointCloud(data []byte) (NativeGeometry, Status)

	// AttributeByUniqueID returns the attribute with the given unique id, or nil.
	AttributeByUniqueID(g NativeGeometry, id int) NativeAttribute

	// AttributeID returns the id of the first attribute with the given semantic, or -1.
	AttributeID(g NativeGeometry, t AttributeType) int

	// Attribute returns the attribute with the given id, or nil.
	Attribute(g NativeGeometry, id int) NativeAttribute

	// AttributeData returns NumPoints*NumComponents little-endian components of type ct.
	AttributeData(g NativeGeometry, a NativeAttribute, ct model.ComponentType) ([]byte, error)

	// TriangleIndices returns NumFaces*3 vertex indices.
	TriangleIndices(g NativeGeometry) ([]uint32, error)

	// Release frees the decoder.
	Release()
}

// NativeGeometry is a decoded mesh or point cloud owned by the decoder's memory arena.
type NativeGeometry interface {
	NumPoints() int
	NumFaces() int
	Release()
}

// NativeAttribute describes one decoded attribute.
type NativeAttribute interface {
	NumComponents() int
}

// DecoderConfig selects and configures the decoder library.
type DecoderConfig struct {
	// Path locates the decoder library, if the module factory needs one.
	Path string `json:"path,omitempty"`

	// Options are passed to the module factory unchanged.
	Options map[string]string `json:"options,omitempty"`
}

// ModuleFactory initializes a decoder module for one worker.
type ModuleFactory func(cfg DecoderConfig) (Module, error)

// TaskConfig describes which attributes to extract and how.
type TaskConfig struct {
	// AttributeIDs maps output attribute names to unique attribute ids when UseUniqueIDs is set,
	// or to AttributeType semantics otherwise.
	AttributeIDs map[string]int `json:"attributeIDs"`

	// AttributeTypes maps output attribute names to the component type to extract. Missing names use float32.
	AttributeTypes map[string]model.ComponentType `json:"attributeTypes"`

	// UseUniqueIDs selects how AttributeIDs is interpreted.
	UseUniqueIDs bool `json:"useUniqueIDs"`

	// VertexColorSpace tags the color attribute.
	VertexColorSpace string `json:"vertexColorSpace"`
}

// DefaultTaskConfig returns the configuration used for standalone .drc files:
// position, normal, color and uv looked up by semantic as float32.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		AttributeIDs: map[string]int{
			"position": int(AttributePosition),
			"normal":   int(AttributeNormal),
			"color":    int(AttributeColor),
			"uv":       int(AttributeTexCoord),
		},
		AttributeTypes: map[string]model.ComponentType{
			"position": model.ComponentFloat32,
			"normal":   model.ComponentFloat32,
			"color":    model.ComponentFloat32,
			"uv":       model.ComponentFloat32,
		},
		VertexColorSpace: model.ColorSpaceSRGB,
	}
}

// rawAttribute is one extracted attribute as posted back by a worker.
type rawAttribute struct {
	name             string
	array            *model.TypedArray
	itemSize         int
	vertexColorSpace string
}

// rawGeometry is the decode result as posted back by a worker.
type rawGeometry struct {
	index      []uint32
	attributes []rawAttribute
}

// decodeGeometry runs the native decode protocol. Native handles are released on every path.
//
// Parameters:
//   - module: the worker's decoder module
//   - data: the encoded bytes
//   - cfg: the attributes to extract
//
// Returns:
//   - *rawGeometry: the extracted index and attributes
//   - error: ErrDecodeFailure or an extraction error
func decodeGeometry(module Module, data []byte, cfg TaskConfig) (*rawGeometry, error) {
	decoder := module.NewDecoder()
	defer decoder.Release()

	var (
		geom   NativeGeometry
		status Status
	)
	geometryType := decoder.GeometryType(data)
	switch geometryType {
	case TriangularMesh:
		geom, status = decoder.DecodeMesh(data)
	case PointCloud:
		geom, status = decoder.DecodePointCloud(data)
	default:
		return nil, fmt.Errorf("%w: unexpected geometry type %d", ErrDecodeFailure, geometryType)
	}
	if geom != nil {
		defer geom.Release()
	}
	if !status.OK || geom == nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, status.Message)
	}

	out := &rawGeometry{}
	for name, id := range cfg.AttributeIDs {
		var attr NativeAttribute
		if cfg.UseUniqueIDs {
			attr = decoder.AttributeByUniqueID(geom, id)
		} else {
			attrID := decoder.AttributeID(geom, AttributeType(id))
			if attrID == -1 {
				continue
			}
			attr = decoder.Attribute(geom, attrID)
		}
		if attr == nil {
			continue
		}

		ct := model.ComponentFloat32
		if t, ok := cfg.AttributeTypes[name]; ok && t.Valid() {
			ct = t
		}
		raw, err := decoder.AttributeData(geom, attr, ct)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v", ErrDecodeFailure, name, err)
		}

		ra := rawAttribute{
			name:     name,
			array:    model.NewTypedArray(ct, geom.NumPoints()*attr.NumComponents()),
			itemSize: attr.NumComponents(),
		}
		copy(ra.array.Bytes(), raw)
		if name == "color" {
			ra.vertexColorSpace = cfg.VertexColorSpace
		}
		out.attributes = append(out.attributes, ra)
	}

	if geometryType == TriangularMesh {
		index, err := decoder.TriangleIndices(geom)
		if err != nil {
			return nil, fmt.Errorf("%w: indices: %v", ErrDecodeFailure, err)
		}
		out.index = append([]uint32(nil), index...)
	}
	return out, nil
}

// buildGeometry turns a worker result into a geometry. Integer colors are marked normalized.
func buildGeometry(raw *rawGeometry) *model.Geometry {
	g := model.NewGeometry()
	if raw.index != nil {
		g.SetIndex(raw.index)
	}
	for _, a := range raw.attributes {
		normalized := a.name == "color" && a.array.ComponentType() != model.ComponentFloat32
		g.SetAttribute(a.name, model.NewBufferAttribute(a.array, a.itemSize, normalized))
		if a.name == "color" && a.vertexColorSpace != "" {
			g.UserData["vertexColorSpace"] = a.vertexColorSpace
		}
	}
	return g
}
