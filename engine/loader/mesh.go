package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"gonum.org/v1/gonum/spatial/r3"
)

// attributeNames maps glTF attribute semantics to geometry attribute names.
var attributeNames = map[string]string{
	"POSITION":   "position",
	"NORMAL":     "normal",
	"TANGENT":    "tangent",
	"TEXCOORD_0": "uv",
	"TEXCOORD_1": "uv1",
	"TEXCOORD_2": "uv2",
	"TEXCOORD_3": "uv3",
	"COLOR_0":    "color",
	"WEIGHTS_0":  "skinWeight",
	"JOINTS_0":   "skinIndex",
}

// attributeName returns the geometry attribute name of a glTF semantic. Unknown semantics are lowercased.
func attributeName(semantic string) string {
	if name, ok := attributeNames[semantic]; ok {
		return name
	}
	return strings.ToLower(semantic)
}

// LoadMesh builds the drawables of a mesh: a single mesh object for one primitive, otherwise a
// group with one child per primitive.
//
// Parameters:
//   - ctx: bounds the geometry and material loads
//   - index: the mesh index
//
// Returns:
//   - *future.Future[scene.Object]: the mesh or group
func (p *Parser) LoadMesh(ctx context.Context, index int) *future.Future[scene.Object] {
	def, err := definition(p.doc.Meshes, KindMesh, index)
	if err != nil {
		return future.Rejected[scene.Object](err)
	}
	return future.Go(func() (scene.Object, error) {
		return p.loadMesh(ctx, index, def)
	})
}

func (p *Parser) loadMesh(ctx context.Context, index int, def *gltf.Mesh) (scene.Object, error) {
	materialsF := make([]*future.Future[*model.Material], len(def.Primitives))
	for i, prim := range def.Primitives {
		if prim.Material == nil {
			materialsF[i] = future.Resolved(p.defaultMaterial())
		} else {
			materialsF[i] = dependency[*model.Material](ctx, p, KindMaterial, *prim.Material)
		}
	}
	geometriesF := p.loadGeometries(ctx, def.Primitives)

	materials, err := future.WaitAll(ctx, materialsF...)
	if err != nil {
		return nil, err
	}
	geometries, err := future.WaitAll(ctx, geometriesF...)
	if err != nil {
		return nil, err
	}

	meshes := make([]scene.Object, 0, len(def.Primitives))
	for i := range def.Primitives {
		prim := &def.Primitives[i]
		obj, mesh, err := p.createPrimitiveMesh(index, prim, geometries[i], materials[i])
		if err != nil {
			return nil, err
		}

		if len(mesh.Geometry.MorphAttributes) > 0 {
			updateMorphTargets(mesh, def)
		}

		mesh.Name = p.uniqueName(nameSlot{kind: KindMesh, index: index, sub: i}, meshName(def.Name, index))
		assignExtras(mesh.UserData, def.Extras)
		p.addUnknownExtensions(mesh.UserData, prim.Extensions)
		p.assignFinalMaterial(mesh)
		meshes = append(meshes, obj)
	}

	for i, m := range meshes {
		p.associate(m, Association{Meshes: common.Ptr(index), Primitives: common.Ptr(i)})
	}

	if len(meshes) == 1 {
		p.addUnknownExtensions(meshes[0].Base().UserData, def.Extensions)
		return meshes[0], nil
	}

	group := scene.NewGroup()
	p.addUnknownExtensions(group.UserData, def.Extensions)
	p.associate(group, Association{Meshes: common.Ptr(index)})
	group.Add(meshes...)
	return group, nil
}

// createPrimitiveMesh picks the object type for a primitive's mode. Strips and fans are converted to triangle lists.
func (p *Parser) createPrimitiveMesh(meshIndex int, prim *gltf.Primitive, geometry *model.Geometry, material *model.Material) (scene.Object, *scene.Mesh, error) {
	mode := prim.ModeOrDefault()
	switch mode {
	case gltf.ModeTriangles, gltf.ModeTriangleStrip, gltf.ModeTriangleFan:
		var (
			obj  scene.Object
			mesh *scene.Mesh
		)
		if p.skinnedMeshes[meshIndex] {
			sm := scene.NewSkinnedMesh(geometry, material)
			p.mu.Lock()
			sm.NormalizeSkinWeights()
			p.mu.Unlock()
			obj, mesh = sm, &sm.Mesh
		} else {
			m := scene.NewMesh(geometry, material, model.DrawTriangles)
			obj, mesh = m, m
		}
		if mode != gltf.ModeTriangles {
			converted, err := model.ToTrianglesDrawMode(mesh.Geometry, model.DrawMode(mode))
			if err != nil {
				return nil, nil, err
			}
			mesh.Geometry = converted
		}
		return obj, mesh, nil
	case gltf.ModeLines, gltf.ModeLineStrip, gltf.ModeLineLoop, gltf.ModePoints:
		m := scene.NewMesh(geometry, material, model.DrawMode(mode))
		return m, m, nil
	}
	return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedPrimitiveMode, mode)
}

// updateMorphTargets applies the mesh's default weights and target names.
func updateMorphTargets(mesh *scene.Mesh, def *gltf.Mesh) {
	mesh.UpdateMorphTargets()

	for i, w := range def.Weights {
		if i < len(mesh.MorphTargetInfluences) {
			mesh.MorphTargetInfluences[i] = w
		}
	}

	if len(def.Extras) == 0 {
		return
	}
	var extras struct {
		TargetNames []string `json:"targetNames"`
	}
	if err := json.Unmarshal(def.Extras, &extras); err != nil || extras.TargetNames == nil {
		return
	}
	if len(extras.TargetNames) != len(mesh.MorphTargetInfluences) {
		common.LogWarn("invalid extras.targetNames length, ignoring names")
		return
	}
	mesh.MorphTargetDictionary = make(map[string]int, len(extras.TargetNames))
	for i, name := range extras.TargetNames {
		mesh.MorphTargetDictionary[name] = i
	}
}

// defaultMaterial returns the material shared by primitives without one.
func (p *Parser) defaultMaterial() *model.Material {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.objectCache["DefaultMaterial"].(*model.Material); ok {
		return m
	}
	m := model.NewMaterial(model.MaterialStandard, model.DefaultMaterialParams())
	p.objectCache["DefaultMaterial"] = m
	return m
}

// assignFinalMaterial swaps in the material variant the geometry needs: point and line
// materials for those modes, and a cached clone when tangents, vertex colors or normals are absent.
func (p *Parser) assignFinalMaterial(mesh *scene.Mesh) {
	geometry := mesh.Geometry
	material := mesh.Material

	useDerivativeTangents := !geometry.HasAttribute("tangent")
	useVertexColors := geometry.HasAttribute("color")
	useFlatShading := !geometry.HasAttribute("normal")

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case mesh.IsPoints():
		key := "PointsMaterial:" + material.UUID
		pm, ok := p.objectCache[key].(*model.Material)
		if !ok {
			params := material.MaterialParams
			params.SizeAttenuation = false
			pm = model.NewMaterial(model.MaterialPoints, params)
			p.objectCache[key] = pm
		}
		material = pm
	case mesh.IsLine():
		key := "LineBasicMaterial:" + material.UUID
		lm, ok := p.objectCache[key].(*model.Material)
		if !ok {
			lm = model.NewMaterial(model.MaterialLineBasic, material.MaterialParams)
			p.objectCache[key] = lm
		}
		material = lm
	}

	if useDerivativeTangents || useVertexColors || useFlatShading {
		key := "ClonedMaterial:" + material.UUID + ":"
		if useDerivativeTangents {
			key += "derivative-tangents:"
		}
		if useVertexColors {
			key += "vertex-colors:"
		}
		if useFlatShading {
			key += "flat-shading:"
		}

		cached, ok := p.objectCache[key].(*model.Material)
		if !ok {
			cached = material.Clone()
			if useVertexColors {
				cached.VertexColors = true
			}
			if useFlatShading {
				cached.FlatShading = true
			}
			if useDerivativeTangents && (cached.Kind == model.MaterialStandard || cached.Kind == model.MaterialPhysical) {
				cached.NormalScale[1] *= -1
				cached.ClearcoatNormalScale[1] *= -1
			}
			p.objectCache[key] = cached
			if a, found := p.associations[material]; found {
				c := *a
				p.associations[cached] = &c
			}
		}
		material = cached
	}

	mesh.Material = material
}

// primitiveCacheKey identifies primitives that decode to the same geometry.
func primitiveCacheKey(prim *gltf.Primitive) string {
	indices := "undefined"
	if prim.Indices != nil {
		indices = strconv.Itoa(*prim.Indices)
	}

	var key string
	var draco gltf.DracoPrimitive
	if found, _ := gltf.DecodeExtension(prim.Extensions, gltf.ExtDracoMeshCompression, &draco); found {
		key = "draco:" + strconv.Itoa(draco.BufferView) + ":" + indices + ":" + attributesKey(draco.Attributes)
	} else {
		key = indices + ":" + attributesKey(prim.Attributes) + ":" + strconv.Itoa(prim.ModeOrDefault())
	}
	for _, target := range prim.Targets {
		key += ":" + attributesKey(target)
	}
	return common.HashKey(key)
}

func attributesKey(attributes map[string]int) string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(attributes[name]))
		sb.WriteByte(';')
	}
	return sb.String()
}

// loadGeometries starts one geometry load per primitive, sharing loads between primitives with the same key.
func (p *Parser) loadGeometries(ctx context.Context, primitives []gltf.Primitive) []*future.Future[*model.Geometry] {
	out := make([]*future.Future[*model.Geometry], len(primitives))
	for i := range primitives {
		prim := &primitives[i]
		key := primitiveCacheKey(prim)

		p.mu.Lock()
		if f, ok := p.primitiveCache[key]; ok {
			p.mu.Unlock()
			out[i] = f
			continue
		}
		promise := future.NewPromise[*model.Geometry]()
		p.primitiveCache[key] = promise.Future()
		p.mu.Unlock()

		go func() {
			g, err := p.loadGeometry(ctx, prim)
			if err != nil {
				promise.Reject(err)
				return
			}
			promise.Resolve(g)
		}()
		out[i] = promise.Future()
	}
	return out
}

func (p *Parser) loadGeometry(ctx context.Context, prim *gltf.Primitive) (*model.Geometry, error) {
	var ext gltf.DracoPrimitive
	found, err := gltf.DecodeExtension(prim.Extensions, gltf.ExtDracoMeshCompression, &ext)
	if err != nil {
		return nil, err
	}
	if !found {
		return p.addPrimitiveAttributes(ctx, model.NewGeometry(), prim)
	}

	dracoExt, ok := p.extensions[gltf.ExtDracoMeshCompression].(*dracoExtension)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not declared in extensionsUsed", ErrMissingRequiredCapability, gltf.ExtDracoMeshCompression)
	}
	geometry, err := dracoExt.decodePrimitive(ctx, prim, &ext)
	if err != nil {
		return nil, err
	}
	return p.addPrimitiveAttributes(ctx, geometry, prim)
}

// addPrimitiveAttributes loads every accessor the geometry does not have yet, then computes
// bounds and morph targets. Attributes are assigned only after all accessors resolve.
func (p *Parser) addPrimitiveAttributes(ctx context.Context, geometry *model.Geometry, prim *gltf.Primitive) (*model.Geometry, error) {
	var (
		names     []string
		accessors []*future.Future[model.Attribute]
	)
	for semantic, accessor := range prim.Attributes {
		name := attributeName(semantic)
		if geometry.HasAttribute(name) {
			continue
		}
		names = append(names, name)
		accessors = append(accessors, dependency[model.Attribute](ctx, p, KindAccessor, accessor))
	}

	var indexF *future.Future[model.Attribute]
	if prim.Indices != nil && geometry.Index == nil {
		indexF = dependency[model.Attribute](ctx, p, KindAccessor, *prim.Indices)
	}

	attrs, err := future.WaitAll(ctx, accessors...)
	if err != nil {
		return nil, err
	}
	for i, attr := range attrs {
		geometry.SetAttribute(names[i], attr)
	}
	if indexF != nil {
		index, err := indexF.Await(ctx)
		if err != nil {
			return nil, err
		}
		if ba, ok := index.(*model.BufferAttribute); ok {
			geometry.Index = ba
		} else {
			geometry.Index = index.Clone()
		}
	}

	assignExtras(geometry.UserData, prim.Extras)
	p.computeBounds(geometry, prim)

	if len(prim.Targets) > 0 {
		if err := p.addMorphTargets(ctx, geometry, prim.Targets); err != nil {
			return nil, err
		}
	}
	return geometry, nil
}

// computeBounds derives the bounding box from the POSITION accessor's min and max, expanded by
// the largest morph target displacement. Without min and max the bounds are computed from the data.
func (p *Parser) computeBounds(geometry *model.Geometry, prim *gltf.Primitive) {
	posIndex, ok := prim.Attributes["POSITION"]
	if !ok || posIndex < 0 || posIndex >= len(p.doc.Accessors) {
		return
	}
	accessor := p.doc.Accessors[posIndex]
	if len(accessor.Min) < 3 || len(accessor.Max) < 3 {
		common.LogWarn("missing min/max properties for accessor POSITION")
		geometry.ComputeBoundingBox()
		geometry.ComputeBoundingSphere()
		return
	}

	scale := normalizedScale(&accessor)
	box := r3.Box{
		Min: r3.Scale(scale, r3.Vec{X: float64(accessor.Min[0]), Y: float64(accessor.Min[1]), Z: float64(accessor.Min[2])}),
		Max: r3.Scale(scale, r3.Vec{X: float64(accessor.Max[0]), Y: float64(accessor.Max[1]), Z: float64(accessor.Max[2])}),
	}

	var maxDisplacement r3.Vec
	for _, target := range prim.Targets {
		ti, ok := target["POSITION"]
		if !ok || ti < 0 || ti >= len(p.doc.Accessors) {
			continue
		}
		td := p.doc.Accessors[ti]
		if len(td.Min) < 3 || len(td.Max) < 3 {
			common.LogWarn("missing min/max properties for accessor POSITION")
			continue
		}
		s := normalizedScale(&td)
		v := r3.Vec{
			X: math.Max(math.Abs(float64(td.Min[0])), math.Abs(float64(td.Max[0]))) * s,
			Y: math.Max(math.Abs(float64(td.Min[1])), math.Abs(float64(td.Max[1]))) * s,
			Z: math.Max(math.Abs(float64(td.Min[2])), math.Abs(float64(td.Max[2]))) * s,
		}
		maxDisplacement = r3.Vec{
			X: math.Max(maxDisplacement.X, v.X),
			Y: math.Max(maxDisplacement.Y, v.Y),
			Z: math.Max(maxDisplacement.Z, v.Z),
		}
	}
	box.Min = r3.Sub(box.Min, maxDisplacement)
	box.Max = r3.Add(box.Max, maxDisplacement)

	geometry.BoundingBox = &box
	geometry.BoundingSphere = &model.Sphere{
		Center: box.Center(),
		Radius: r3.Norm(r3.Sub(box.Max, box.Min)) / 2,
	}
}

// normalizedScale is the factor mapping a normalized accessor's raw min and max to [-1, 1].
func normalizedScale(accessor *gltf.Accessor) float64 {
	if !accessor.Normalized {
		return 1
	}
	div, err := model.NormalizationDivisor(model.ComponentType(accessor.ComponentType))
	if err != nil {
		return 1
	}
	return 1 / div
}

// morphSemantics lists the attributes that can carry morph targets.
var morphSemantics = []struct {
	semantic string
	name     string
}{
	{"POSITION", "position"},
	{"NORMAL", "normal"},
	{"COLOR_0", "color"},
}

// addMorphTargets loads one relative morph attribute per target for position, normal and color.
// A target that omits an attribute other targets define gets zero deltas.
func (p *Parser) addMorphTargets(ctx context.Context, geometry *model.Geometry, targets []map[string]int) error {
	for _, ms := range morphSemantics {
		used := slices.ContainsFunc(targets, func(t map[string]int) bool {
			_, ok := t[ms.semantic]
			return ok
		})
		if !used {
			continue
		}

		futures := make([]*future.Future[model.Attribute], len(targets))
		for i, target := range targets {
			if accessor, ok := target[ms.semantic]; ok {
				futures[i] = dependency[model.Attribute](ctx, p, KindAccessor, accessor)
			} else {
				futures[i] = future.Resolved[model.Attribute](zeroMorphAttribute(geometry, ms.name))
			}
		}
		attrs, err := future.WaitAll(ctx, futures...)
		if err != nil {
			return err
		}
		geometry.MorphAttributes[ms.name] = attrs
	}
	geometry.MorphTargetsRelative = true
	return nil
}

func zeroMorphAttribute(geometry *model.Geometry, name string) model.Attribute {
	count, itemSize := geometry.VertexCount(), 3
	if base := geometry.Attribute(name); base != nil {
		count, itemSize = base.Count(), base.ItemSize()
	}
	return model.NewBufferAttribute(model.NewTypedArray(model.ComponentFloat32, count*itemSize), itemSize, false)
}
