package exporter

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
)

// trackPaths maps track properties to glTF channel paths.
var trackPaths = map[string]string{
	animation.PropertyPosition:              gltf.PathTranslation,
	animation.PropertyQuaternion:            gltf.PathRotation,
	animation.PropertyScale:                 gltf.PathScale,
	animation.PropertyMorphTargetInfluences: gltf.PathWeights,
}

// processAnimation exports the tracks of clip whose targets were exported as nodes.
// Tracks with an unknown property or target are skipped with a warning. A clip with no
// exportable track produces no animation.
func (w *writer) processAnimation(clip *animation.AnimationClip) {
	if clip == nil {
		return
	}
	def := gltf.Animation{
		Name:   clip.Name,
		Extras: encodeExtras(clip.UserData),
	}

	for _, track := range clip.Tracks {
		if len(track.Times) == 0 {
			continue
		}
		path, ok := trackPaths[track.Property()]
		if !ok {
			common.LogWarn("animation %q: skipping track %q with unsupported property", clip.Name, track.Name)
			continue
		}
		node, ok := w.nodeNames[track.TargetName()]
		if !ok {
			common.LogWarn("animation %q: skipping track %q, target was not exported", clip.Name, track.Name)
			continue
		}
		if path == gltf.PathWeights && w.doc.Nodes[node].Mesh == nil {
			common.LogWarn("animation %q: skipping weights track %q on a node without a mesh", clip.Name, track.Name)
			continue
		}

		itemSize := track.ValueSize()
		if path == gltf.PathWeights {
			itemSize = 1
		}
		if itemSize == 0 || len(track.Values)%itemSize != 0 {
			common.LogWarn("animation %q: skipping track %q with malformed values", clip.Name, track.Name)
			continue
		}

		input := w.writeFloats(track.Times, 1, nil, true)
		output := w.writeFloats(track.Values, itemSize, nil, false)
		def.Samplers = append(def.Samplers, gltf.AnimationSampler{
			Input:         input,
			Output:        output,
			Interpolation: track.Interpolation.String(),
		})
		def.Channels = append(def.Channels, gltf.AnimationChannel{
			Sampler: len(def.Samplers) - 1,
			Target:  gltf.AnimationTarget{Node: common.Ptr(node), Path: path},
		})
	}

	if len(def.Channels) == 0 {
		return
	}
	w.doc.Animations = append(w.doc.Animations, def)
}
