package exporter

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// semantics maps geometry attribute names to glTF attribute semantics.
var semantics = map[string]string{
	"position":   "POSITION",
	"normal":     "NORMAL",
	"tangent":    "TANGENT",
	"uv":         "TEXCOORD_0",
	"uv1":        "TEXCOORD_1",
	"uv2":        "TEXCOORD_2",
	"uv3":        "TEXCOORD_3",
	"color":      "COLOR_0",
	"skinWeight": "WEIGHTS_0",
	"skinIndex":  "JOINTS_0",
}

// attributeSemantic returns the glTF semantic of a geometry attribute. Unknown names become
// application-specific semantics with a leading underscore.
func attributeSemantic(name string) string {
	if s, ok := semantics[name]; ok {
		return s
	}
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "_") {
		return upper
	}
	return "_" + upper
}

// processMesh exports the geometry and material of m as a single-primitive glTF mesh.
//
// Parameters:
//   - m: the mesh to export
//
// Returns:
//   - int: the mesh index
//   - error: error if the material cannot be encoded
func (w *writer) processMesh(m *scene.Mesh) (int, error) {
	key := meshKey{geometry: m.Geometry, material: m.Material, mode: m.DrawMode}
	if idx, ok := w.meshes[key]; ok {
		return idx, nil
	}
	geometry := m.Geometry

	names := make([]string, 0, len(geometry.Attributes))
	for name := range geometry.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)

	prim := gltf.Primitive{Attributes: make(map[string]int, len(names))}
	for _, name := range names {
		attr := geometry.Attributes[name]
		if attr == nil || attr.Count() == 0 {
			continue
		}
		semantic := attributeSemantic(name)
		prim.Attributes[semantic] = w.writeAttribute(attr, semantic)
	}
	if geometry.Index != nil {
		prim.Indices = common.Ptr(w.writeAttribute(geometry.Index, "indices"))
	}
	if m.DrawMode != model.DrawTriangles {
		prim.Mode = common.Ptr(int(m.DrawMode))
	}
	if m.Material != nil {
		matIdx, err := w.processMaterial(m.Material)
		if err != nil {
			return -1, err
		}
		prim.Material = common.Ptr(matIdx)
	}
	prim.Targets = w.processMorphTargets(geometry)

	def := gltf.Mesh{
		Name:       common.Coalesce(geometry.Name, m.Name),
		Primitives: []gltf.Primitive{prim},
	}
	if len(prim.Targets) > 0 {
		def.Weights = slices.Clone(m.MorphTargetInfluences)
		def.Extras = morphTargetNames(m.MorphTargetDictionary, len(prim.Targets))
	}

	w.doc.Meshes = append(w.doc.Meshes, def)
	idx := len(w.doc.Meshes) - 1
	w.meshes[key] = idx
	return idx, nil
}

// processMorphTargets writes one target per morph attribute index. Absolute targets are
// converted to deltas against the base attribute.
func (w *writer) processMorphTargets(geometry *model.Geometry) []map[string]int {
	var targets []map[string]int
	for _, name := range []string{"position", "normal", "color"} {
		attrs := geometry.MorphAttributes[name]
		if len(attrs) == 0 {
			continue
		}
		semantic := semantics[name]
		base := geometry.Attribute(name)
		for i, attr := range attrs {
			for len(targets) <= i {
				targets = append(targets, make(map[string]int))
			}
			if geometry.MorphTargetsRelative || base == nil {
				targets[i][semantic] = w.writeAttribute(attr, "")
				continue
			}
			deltas := attr.Float32s()
			baseValues := base.Float32s()
			for j := range deltas {
				if j < len(baseValues) {
					deltas[j] -= baseValues[j]
				}
			}
			targets[i][semantic] = w.writeFloats(deltas, attr.ItemSize(), nil, true)
		}
	}
	return targets
}

// morphTargetNames encodes extras.targetNames when every target has a name.
func morphTargetNames(dictionary map[string]int, count int) json.RawMessage {
	if len(dictionary) != count {
		return nil
	}
	names := make([]string, count)
	for name, i := range dictionary {
		if i < 0 || i >= count {
			return nil
		}
		names[i] = name
	}
	raw, err := json.Marshal(map[string]any{"targetNames": names})
	if err != nil {
		return nil
	}
	return raw
}
