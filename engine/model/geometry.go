package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-gltf/common"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var errMissingPosition = errors.New("geometry has no position attribute")

// Sphere is a bounding sphere.
type Sphere struct {
	// Center is the center of the sphere.
	Center r3.Vec

	// Radius is the radius of the sphere.
	Radius float64
}

// Geometry holds the vertex streams of one drawable surface.
type Geometry struct {
	// UUID uniquely identifies the geometry.
	UUID string

	// Name is the geometry identifier.
	Name string

	// Attributes maps attribute names (position, normal, uv, ...) to their data.
	Attributes map[string]Attribute

	// Index holds the element indices, or nil for non-indexed geometry.
	Index *BufferAttribute

	// MorphAttributes maps attribute names to one attribute per morph target.
	MorphAttributes map[string][]Attribute

	// MorphTargetsRelative reports whether morph attributes are deltas from the base attribute.
	MorphTargetsRelative bool

	// BoundingBox is the axis-aligned bounds of the position attribute.
	BoundingBox *r3.Box

	// BoundingSphere encloses the position attribute.
	BoundingSphere *Sphere

	// UserData carries arbitrary application data, including glTF extras.
	UserData map[string]any
}

// NewGeometry creates an empty geometry.
//
// Returns:
//   - *Geometry: the geometry with initialized maps and a new UUID
func NewGeometry() *Geometry {
	return &Geometry{
		UUID:            uuid.NewString(),
		Attributes:      make(map[string]Attribute),
		MorphAttributes: make(map[string][]Attribute),
		UserData:        make(map[string]any),
	}
}

// SetAttribute stores a named attribute.
func (g *Geometry) SetAttribute(name string, a Attribute) {
	g.Attributes[name] = a
}

// Attribute returns a named attribute, or nil if absent.
func (g *Geometry) Attribute(name string) Attribute {
	return g.Attributes[name]
}

// HasAttribute reports whether a named attribute exists.
func (g *Geometry) HasAttribute(name string) bool {
	_, ok := g.Attributes[name]
	return ok
}

// SetIndex replaces the index with a uint32 attribute built from indices.
func (g *Geometry) SetIndex(indices []uint32) {
	g.Index = NewBufferAttribute(FromSlice(ComponentUint32, indices), 1, false)
}

// VertexCount returns the number of items in the position attribute.
func (g *Geometry) VertexCount() int {
	if pos := g.Attribute("position"); pos != nil {
		return pos.Count()
	}
	return 0
}

// Clone returns a shallow copy sharing attribute data, with a new UUID.
//
// Returns:
//   - *Geometry: the copy
func (g *Geometry) Clone() *Geometry {
	c := *g
	c.UUID = uuid.NewString()
	c.Attributes = make(map[string]Attribute, len(g.Attributes))
	for k, v := range g.Attributes {
		c.Attributes[k] = v
	}
	c.MorphAttributes = make(map[string][]Attribute, len(g.MorphAttributes))
	for k, v := range g.MorphAttributes {
		c.MorphAttributes[k] = append([]Attribute(nil), v...)
	}
	c.UserData = common.CloneUserData(g.UserData)
	return &c
}

// ComputeBoundingBox sets BoundingBox from the position attribute.
// Leaves BoundingBox nil when there is no position attribute.
func (g *Geometry) ComputeBoundingBox() {
	pos := g.Attribute("position")
	if pos == nil || pos.Count() == 0 {
		g.BoundingBox = nil
		return
	}

	box := r3.Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, v := range positions(pos) {
		box.Min = r3.Vec{X: math.Min(box.Min.X, v.X), Y: math.Min(box.Min.Y, v.Y), Z: math.Min(box.Min.Z, v.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, v.X), Y: math.Max(box.Max.Y, v.Y), Z: math.Max(box.Max.Z, v.Z)}
	}
	g.BoundingBox = &box
}

// ComputeBoundingSphere sets BoundingSphere centered on the bounding box, with the radius
// reaching the farthest position.
func (g *Geometry) ComputeBoundingSphere() {
	if g.BoundingBox == nil {
		g.ComputeBoundingBox()
	}
	if g.BoundingBox == nil {
		g.BoundingSphere = nil
		return
	}

	center := g.BoundingBox.Center()
	maxSq := 0.0
	for _, v := range positions(g.Attribute("position")) {
		maxSq = math.Max(maxSq, r3.Norm2(r3.Sub(v, center)))
	}
	g.BoundingSphere = &Sphere{Center: center, Radius: math.Sqrt(maxSq)}
}

func positions(a Attribute) []r3.Vec {
	values := a.Float32s()
	size := a.ItemSize()
	out := make([]r3.Vec, a.Count())
	for i := range out {
		var v [3]float64
		for c := 0; c < 3 && c < size; c++ {
			v[c] = float64(values[i*size+c])
		}
		out[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}

// ToTrianglesDrawMode converts a triangle strip or fan geometry into an indexed triangle list.
// Non-indexed input is first given a sequential index.
//
// Parameters:
//   - g: the source geometry, left unchanged
//   - mode: DrawTriangleStrip or DrawTriangleFan
//
// Returns:
//   - *Geometry: a clone with the triangle-list index
//   - error: error if mode is not a strip or fan, or the geometry has no positions
func ToTrianglesDrawMode(g *Geometry, mode DrawMode) (*Geometry, error) {
	if mode == DrawTriangles {
		return g, nil
	}
	if mode != DrawTriangleStrip && mode != DrawTriangleFan {
		return nil, fmt.Errorf("unknown draw mode %s", mode)
	}

	var index []uint32
	if g.Index != nil {
		index = g.Index.Array().Uint32s()
	} else {
		pos := g.Attribute("position")
		if pos == nil {
			return nil, errMissingPosition
		}
		index = make([]uint32, pos.Count())
		for i := range index {
			index[i] = uint32(i)
		}
	}

	numTriangles := len(index) - 2
	if numTriangles < 0 {
		numTriangles = 0
	}
	triangles := make([]uint32, 0, numTriangles*3)

	if mode == DrawTriangleFan {
		for i := 1; i <= numTriangles; i++ {
			triangles = append(triangles, index[0], index[i], index[i+1])
		}
	} else {
		for i := 0; i < numTriangles; i++ {
			if i%2 == 0 {
				triangles = append(triangles, index[i], index[i+1], index[i+2])
			} else {
				triangles = append(triangles, index[i+2], index[i+1], index[i])
			}
		}
	}

	out := g.Clone()
	out.SetIndex(triangles)
	return out, nil
}
