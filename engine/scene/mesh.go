package scene

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh draws a geometry with a material. DrawMode selects how the geometry is assembled:
// triangle meshes use DrawTriangles, line meshes DrawLines, DrawLineStrip or DrawLineLoop,
// and point clouds DrawPoints.
type Mesh struct {
	Node

	// Geometry is the shared vertex data.
	Geometry *model.Geometry

	// Material is the shared material.
	Material *model.Material

	// DrawMode is the primitive topology after strip and fan conversion.
	DrawMode model.DrawMode

	// MorphTargetInfluences holds one weight per morph target.
	MorphTargetInfluences []float32

	// MorphTargetDictionary maps morph target names to influence indices.
	MorphTargetDictionary map[string]int
}

var _ Object = &Mesh{}

// NewMesh creates a mesh drawing geometry with material.
//
// Parameters:
//   - geometry: the vertex data
//   - material: the material
//   - mode: the primitive topology
//
// Returns:
//   - *Mesh: the mesh
func NewMesh(geometry *model.Geometry, material *model.Material, mode model.DrawMode) *Mesh {
	m := &Mesh{Geometry: geometry, Material: material, DrawMode: mode}
	m.Init(m)
	return m
}

// Clone copies the mesh, sharing geometry and material.
func (m *Mesh) Clone(recursive bool) Object {
	c := &Mesh{}
	c.Init(c)
	m.copyMeshInto(c, recursive)
	return c
}

func (m *Mesh) copyMeshInto(c *Mesh, recursive bool) {
	c.Geometry = m.Geometry
	c.Material = m.Material
	c.DrawMode = m.DrawMode
	c.MorphTargetInfluences = append([]float32(nil), m.MorphTargetInfluences...)
	if m.MorphTargetDictionary != nil {
		c.MorphTargetDictionary = make(map[string]int, len(m.MorphTargetDictionary))
		for k, v := range m.MorphTargetDictionary {
			c.MorphTargetDictionary[k] = v
		}
	}
	c.CopyFrom(&m.Node, recursive)
}

// Kind names the object type implied by the draw mode.
func (m *Mesh) Kind() string {
	switch m.DrawMode {
	case model.DrawPoints:
		return "Points"
	case model.DrawLines:
		return "LineSegments"
	case model.DrawLineStrip:
		return "Line"
	case model.DrawLineLoop:
		return "LineLoop"
	}
	return "Mesh"
}

// IsPoints reports whether the mesh is a point cloud.
func (m *Mesh) IsPoints() bool {
	return m.DrawMode == model.DrawPoints
}

// IsLine reports whether the mesh is drawn as lines.
func (m *Mesh) IsLine() bool {
	return m.DrawMode == model.DrawLines || m.DrawMode == model.DrawLineStrip || m.DrawMode == model.DrawLineLoop
}

// UpdateMorphTargets resets the influences and dictionary from the geometry's morph attributes.
// Targets are named by their index until renamed.
func (m *Mesh) UpdateMorphTargets() {
	m.MorphTargetInfluences = nil
	m.MorphTargetDictionary = nil
	if m.Geometry == nil {
		return
	}
	for _, targets := range m.Geometry.MorphAttributes {
		if len(targets) == 0 {
			continue
		}
		m.MorphTargetInfluences = make([]float32, len(targets))
		m.MorphTargetDictionary = make(map[string]int, len(targets))
		for i := range targets {
			m.MorphTargetDictionary[strconv.Itoa(i)] = i
		}
		return
	}
}

// SkinnedMesh is a mesh deformed by a skeleton.
type SkinnedMesh struct {
	Mesh

	// Skeleton is the bound skeleton, shared between clones.
	Skeleton *Skeleton

	// BindMatrix is the world transform of the mesh at bind time.
	BindMatrix mgl32.Mat4

	// BindMatrixInverse is the inverse of BindMatrix.
	BindMatrixInverse mgl32.Mat4
}

var _ Object = &SkinnedMesh{}

// NewSkinnedMesh creates an unbound skinned mesh.
//
// Parameters:
//   - geometry: the vertex data, with skinIndex and skinWeight attributes
//   - material: the material
//
// Returns:
//   - *SkinnedMesh: the skinned mesh
func NewSkinnedMesh(geometry *model.Geometry, material *model.Material) *SkinnedMesh {
	m := &SkinnedMesh{BindMatrix: mgl32.Ident4(), BindMatrixInverse: mgl32.Ident4()}
	m.Geometry = geometry
	m.Material = material
	m.DrawMode = model.DrawTriangles
	m.Init(m)
	return m
}

// Clone copies the skinned mesh, sharing the skeleton.
func (m *SkinnedMesh) Clone(recursive bool) Object {
	c := &SkinnedMesh{Skeleton: m.Skeleton, BindMatrix: m.BindMatrix, BindMatrixInverse: m.BindMatrixInverse}
	c.Init(c)
	m.copyMeshInto(&c.Mesh, recursive)
	return c
}

// Bind attaches skeleton with the given bind matrix.
//
// Parameters:
//   - skeleton: the skeleton to bind
//   - bindMatrix: the mesh transform at bind time
func (m *SkinnedMesh) Bind(skeleton *Skeleton, bindMatrix mgl32.Mat4) {
	m.Skeleton = skeleton
	m.BindMatrix = bindMatrix
	m.BindMatrixInverse = bindMatrix.Inv()
}

// NormalizeSkinWeights rescales each vertex's skin weights to sum to one.
// Vertices whose weights are all zero get full weight on their first joint.
// Shared weight data is copied before it is written.
func (m *SkinnedMesh) NormalizeSkinWeights() {
	if m.Geometry == nil {
		return
	}
	attr := m.Geometry.Attribute("skinWeight")
	if attr == nil {
		return
	}

	weights, ok := attr.(*model.BufferAttribute)
	if !ok || weights.Array().Shared() {
		weights = attr.Clone()
		m.Geometry.SetAttribute("skinWeight", weights)
	}

	values := weights.Float32s()
	size := weights.ItemSize()
	for i := 0; i < weights.Count(); i++ {
		sum := float32(0)
		for c := 0; c < size; c++ {
			sum += values[i*size+c]
		}
		for c := 0; c < size; c++ {
			w := float32(0)
			switch {
			case sum != 0:
				w = values[i*size+c] / sum
			case c == 0:
				w = 1
			}
			if weights.Normalized() && weights.ComponentType() != model.ComponentFloat32 {
				weights.SetComponent(i, c, model.Denormalize(float64(w), weights.ComponentType()))
			} else {
				weights.SetComponent(i, c, float64(w))
			}
		}
	}
}

// Skeleton is an ordered list of joint objects with their inverse bind matrices.
// Joints are references into the scene graph, not children of the skeleton.
type Skeleton struct {
	// Bones are the joint objects in skin order.
	Bones []Object

	// BoneInverses holds one inverse bind matrix per bone.
	BoneInverses []mgl32.Mat4
}

// NewSkeleton creates a skeleton. Missing inverse bind matrices default to identity.
//
// Parameters:
//   - bones: the joint objects
//   - inverses: the inverse bind matrices, may be shorter than bones
//
// Returns:
//   - *Skeleton: the skeleton
func NewSkeleton(bones []Object, inverses []mgl32.Mat4) *Skeleton {
	s := &Skeleton{Bones: bones, BoneInverses: make([]mgl32.Mat4, len(bones))}
	for i := range bones {
		if i < len(inverses) {
			s.BoneInverses[i] = inverses[i]
		} else {
			s.BoneInverses[i] = mgl32.Ident4()
		}
	}
	return s
}

// AsMesh returns the Mesh part of o, or nil when o is not a mesh.
func AsMesh(o Object) *Mesh {
	switch v := o.(type) {
	case *Mesh:
		return v
	case *SkinnedMesh:
		return &v.Mesh
	}
	return nil
}
