package loader

import (
	"context"
	"strconv"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// pathProperties maps channel target paths to animated properties.
var pathProperties = map[string]string{
	gltf.PathTranslation: animation.PropertyPosition,
	gltf.PathRotation:    animation.PropertyQuaternion,
	gltf.PathScale:       animation.PropertyScale,
	gltf.PathWeights:     animation.PropertyMorphTargetInfluences,
}

type channelDeps struct {
	node    *future.Future[scene.Object]
	input   *future.Future[model.Attribute]
	output  *future.Future[model.Attribute]
	sampler *gltf.AnimationSampler
	target  gltf.AnimationTarget
}

// LoadAnimation builds an animation clip with one or more tracks per channel.
// Channels without a target node are skipped.
//
// Parameters:
//   - ctx: bounds the node and accessor loads
//   - index: the animation index
//
// Returns:
//   - *future.Future[*animation.AnimationClip]: the clip
func (p *Parser) LoadAnimation(ctx context.Context, index int) *future.Future[*animation.AnimationClip] {
	def, err := definition(p.doc.Animations, KindAnimation, index)
	if err != nil {
		return future.Rejected[*animation.AnimationClip](err)
	}

	var channels []channelDeps
	for _, channel := range def.Channels {
		if channel.Target.Node == nil {
			continue
		}
		sampler, err := definition(def.Samplers, "animation sampler", channel.Sampler)
		if err != nil {
			return future.Rejected[*animation.AnimationClip](err)
		}
		channels = append(channels, channelDeps{
			node:    dependency[scene.Object](ctx, p, KindNode, *channel.Target.Node),
			input:   dependency[model.Attribute](ctx, p, KindAccessor, sampler.Input),
			output:  dependency[model.Attribute](ctx, p, KindAccessor, sampler.Output),
			sampler: sampler,
			target:  channel.Target,
		})
	}

	return future.Go(func() (*animation.AnimationClip, error) {
		var tracks []*animation.KeyframeTrack
		for _, ch := range channels {
			node, err := ch.node.Await(ctx)
			if err != nil {
				return nil, err
			}
			input, err := ch.input.Await(ctx)
			if err != nil {
				return nil, err
			}
			output, err := ch.output.Await(ctx)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			tracks = append(tracks, createAnimationTracks(node, input, output, ch.sampler, ch.target)...)
		}

		name := common.Coalesce(def.Name, "animation_"+strconv.Itoa(index))
		clip := animation.NewAnimationClip(name, -1, tracks)
		assignExtras(clip.UserData, def.Extras)
		return clip, nil
	})
}

// createAnimationTracks builds the tracks of one channel. A weights channel fans out to every
// mesh under the node that has morph targets.
func createAnimationTracks(node scene.Object, input, output model.Attribute, sampler *gltf.AnimationSampler, target gltf.AnimationTarget) []*animation.KeyframeTrack {
	property, ok := pathProperties[target.Path]
	if !ok {
		common.LogWarn("unsupported animation target path %q", target.Path)
		return nil
	}

	base := node.Base()
	var targetNames []string
	if target.Path == gltf.PathWeights {
		base.Traverse(func(o scene.Object) {
			if m := scene.AsMesh(o); m != nil && m.MorphTargetInfluences != nil {
				targetNames = append(targetNames, common.Coalesce(m.Name, m.UUID))
			}
		})
	} else {
		targetNames = append(targetNames, common.Coalesce(base.Name, base.UUID))
	}

	var kind animation.TrackKind
	switch target.Path {
	case gltf.PathWeights:
		kind = animation.TrackNumber
	case gltf.PathRotation:
		kind = animation.TrackQuaternion
	default:
		kind = animation.TrackVector
	}

	interpolation, err := animation.ParseInterpolation(sampler.Interpolation)
	if err != nil {
		common.LogWarn("%v, falling back to LINEAR", err)
	}

	times := input.Float32s()
	values := output.Float32s()

	tracks := make([]*animation.KeyframeTrack, 0, len(targetNames))
	for _, name := range targetNames {
		tracks = append(tracks, animation.NewKeyframeTrack(name+"."+property, kind, times, values, interpolation))
	}
	return tracks
}
