package exporter

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/camera"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/light"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
)

func (w *writer) processScene(s *scene.Scene) error {
	def := gltf.Scene{
		Name:   s.Name,
		Extras: encodeExtras(s.UserData),
	}
	for _, child := range s.Children() {
		idx, err := w.processNode(child)
		if err != nil {
			return err
		}
		if idx >= 0 {
			def.Nodes = append(def.Nodes, idx)
		}
	}
	w.doc.Scenes = append(w.doc.Scenes, def)
	return nil
}

// processNode exports obj and its descendants.
//
// Parameters:
//   - obj: the object to export
//
// Returns:
//   - int: the node index, or -1 when the object was skipped
//   - error: error if a mesh or material cannot be encoded
func (w *writer) processNode(obj scene.Object) (int, error) {
	base := obj.Base()
	if w.opts.OnlyVisible && !base.Visible {
		return -1, nil
	}
	if idx, ok := w.nodes[base]; ok {
		return idx, nil
	}

	def := gltf.Node{
		Name:       base.Name,
		Extras:     encodeExtras(base.UserData),
		Extensions: w.encodeExtensions(base.UserData),
	}
	if base.Position != (mgl32.Vec3{}) {
		def.Translation = common.Ptr([3]float32(base.Position))
	}
	if base.Quaternion != mgl32.QuatIdent() {
		def.Rotation = common.Ptr(common.QuatToSlice(base.Quaternion))
	}
	if base.Scale != (mgl32.Vec3{1, 1, 1}) {
		def.Scale = common.Ptr([3]float32(base.Scale))
	}

	idx := len(w.doc.Nodes)
	w.doc.Nodes = append(w.doc.Nodes, def)
	w.nodes[base] = idx
	if base.Name != "" {
		if _, taken := w.nodeNames[base.Name]; !taken {
			w.nodeNames[base.Name] = idx
		}
	}
	w.nodeNames[base.UUID] = idx

	var skip *scene.Node
	switch v := obj.(type) {
	case *scene.SkinnedMesh:
		if err := w.attachMesh(idx, &v.Mesh); err != nil {
			return -1, err
		}
		if v.Skeleton != nil {
			w.skinned = append(w.skinned, pendingSkin{node: idx, mesh: v})
		}
	case *scene.Mesh:
		if err := w.attachMesh(idx, v); err != nil {
			return -1, err
		}
	case camera.Camera:
		if cam, ok := w.processCamera(v); ok {
			w.doc.Cameras = append(w.doc.Cameras, cam)
			w.doc.Nodes[idx].Camera = common.Ptr(len(w.doc.Cameras) - 1)
		}
	case *light.Light:
		if err := w.attachLight(idx, v); err != nil {
			return -1, err
		}
		skip = v.Target
	}

	var children []int
	for _, child := range obj.Base().Children() {
		if skip != nil && child.Base() == skip {
			continue
		}
		childIdx, err := w.processNode(child)
		if err != nil {
			return -1, err
		}
		if childIdx >= 0 {
			children = append(children, childIdx)
		}
	}
	w.doc.Nodes[idx].Children = children
	return idx, nil
}

func (w *writer) attachMesh(node int, m *scene.Mesh) error {
	if m.Geometry == nil {
		return nil
	}
	meshIdx, err := w.processMesh(m)
	if err != nil {
		return fmt.Errorf("failed to export mesh %q: %w", m.Name, err)
	}
	w.doc.Nodes[node].Mesh = common.Ptr(meshIdx)
	return nil
}

func (w *writer) processCamera(c camera.Camera) (gltf.Camera, bool) {
	switch v := c.(type) {
	case *camera.PerspectiveCamera:
		def := gltf.Camera{
			Name: v.Name,
			Type: gltf.CameraPerspective,
			Perspective: &gltf.Perspective{
				AspectRatio: common.Ptr(v.Aspect),
				Yfov:        v.YFov(),
				Znear:       v.ZNear,
			},
		}
		if v.ZFar > 0 {
			def.Perspective.Zfar = common.Ptr(v.ZFar)
		}
		return def, true
	case *camera.OrthographicCamera:
		return gltf.Camera{
			Name: v.Name,
			Type: gltf.CameraOrthographic,
			Orthographic: &gltf.Orthographic{
				Xmag:  (v.Right - v.Left) / 2,
				Ymag:  (v.Top - v.Bottom) / 2,
				Znear: v.ZNear,
				Zfar:  v.ZFar,
			},
		}, true
	}
	common.LogWarn("skipping unsupported camera type %T", c)
	return gltf.Camera{}, false
}

// attachLight appends the light to the KHR_lights_punctual list and references it from the node.
func (w *writer) attachLight(node int, l *light.Light) error {
	def := gltf.Light{
		Name:      l.Name,
		Type:      l.Type.String(),
		Color:     common.Ptr(l.Color),
		Intensity: common.Ptr(l.Intensity),
	}
	if l.Type != light.LightTypeDirectional && l.Distance > 0 {
		def.Range = common.Ptr(l.Distance)
	}
	if l.Type == light.LightTypeSpot {
		def.Spot = &gltf.LightSpot{
			InnerConeAngle: common.Ptr(l.InnerConeAngle()),
			OuterConeAngle: common.Ptr(l.Angle),
		}
	}
	w.lights = append(w.lights, def)

	exts, err := w.addExtension(w.doc.Nodes[node].Extensions, gltf.ExtLightsPunctual, gltf.NodeLight{Light: len(w.lights) - 1})
	if err != nil {
		return err
	}
	w.doc.Nodes[node].Extensions = exts
	return nil
}

// finishLights writes the collected lights into the document root.
func (w *writer) finishLights() error {
	if len(w.lights) == 0 {
		return nil
	}
	exts, err := w.addExtension(w.doc.Extensions, gltf.ExtLightsPunctual, gltf.LightsPunctual{Lights: w.lights})
	if err != nil {
		return err
	}
	w.doc.Extensions = exts
	return nil
}

// processSkins exports the skeletons of skinned meshes once every node has an index.
// A skin whose bones were not exported is dropped.
func (w *writer) processSkins() {
	for _, pending := range w.skinned {
		skeleton := pending.mesh.Skeleton
		joints := make([]int, 0, len(skeleton.Bones))
		for _, bone := range skeleton.Bones {
			idx, ok := w.nodes[bone.Base()]
			if !ok {
				break
			}
			joints = append(joints, idx)
		}
		if len(joints) != len(skeleton.Bones) {
			common.LogWarn("skipping skin of %q: not every bone was exported", pending.mesh.Name)
			continue
		}

		inverses := make([]float32, 0, 16*len(skeleton.BoneInverses))
		for _, m := range skeleton.BoneInverses {
			inverses = append(inverses, m[:]...)
		}
		skin := gltf.Skin{
			Joints:              joints,
			InverseBindMatrices: common.Ptr(w.writeFloats(inverses, 16, nil, false)),
		}
		w.doc.Skins = append(w.doc.Skins, skin)
		w.doc.Nodes[pending.node].Skin = common.Ptr(len(w.doc.Skins) - 1)
	}
}
