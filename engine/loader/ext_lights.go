package loader

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/light"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/chewxy/math32"
)

// lightsExtension resolves KHR_lights_punctual lights and attaches them to the nodes that reference them.
type lightsExtension struct {
	parser *Parser
	refs   *referenceCache
}

var (
	_ DefsMarker             = &lightsExtension{}
	_ DependencyProvider     = &lightsExtension{}
	_ NodeAttachmentProvider = &lightsExtension{}
)

func newLightsExtension(p *Parser) Extension {
	return &lightsExtension{parser: p, refs: newReferenceCache()}
}

func (e *lightsExtension) Name() string {
	return gltf.ExtLightsPunctual
}

// nodeLight returns the light index a node references.
func (e *lightsExtension) nodeLight(index int) (int, bool) {
	if index < 0 || index >= len(e.parser.doc.Nodes) {
		return 0, false
	}
	var ext gltf.NodeLight
	found, err := gltf.DecodeExtension(e.parser.doc.Nodes[index].Extensions, e.Name(), &ext)
	if err != nil {
		common.LogWarn("node %d: %v", index, err)
		return 0, false
	}
	return ext.Light, found
}

// MarkDefs counts node references to each light and reserves the light names.
func (e *lightsExtension) MarkDefs() {
	e.parser.mu.Lock()
	e.refs = newReferenceCache()
	e.parser.mu.Unlock()

	for i := range e.parser.doc.Nodes {
		if lightIndex, ok := e.nodeLight(i); ok {
			e.parser.AddNodeRef(e.refs, lightIndex, i)
		}
	}

	var root gltf.LightsPunctual
	if found, err := gltf.DecodeExtension(e.parser.doc.Extensions, e.Name(), &root); err != nil || !found {
		return
	}
	for i, def := range root.Lights {
		e.parser.ReserveName(KindLight, i, lightName(def.Name, i))
	}
}

func lightName(name string, index int) string {
	return common.Coalesce(name, "light_"+strconv.Itoa(index))
}

// GetDependency builds KindLight dependencies. The parser caches the result.
func (e *lightsExtension) GetDependency(ctx context.Context, kind DependencyKind, index int) *future.Future[any] {
	if kind != KindLight {
		return nil
	}
	return future.Go(func() (any, error) {
		return e.loadLight(index)
	})
}

func (e *lightsExtension) loadLight(index int) (*light.Light, error) {
	var root gltf.LightsPunctual
	if _, err := gltf.DecodeExtension(e.parser.doc.Extensions, e.Name(), &root); err != nil {
		return nil, err
	}
	def, err := definition(root.Lights, KindLight, index)
	if err != nil {
		return nil, err
	}

	lightType, ok := light.ParseLightType(def.Type)
	if !ok {
		return nil, fmt.Errorf("loader: unexpected light type %q", def.Type)
	}

	options := []light.LightBuilderOption{
		light.WithName(e.parser.uniqueName(nameSlot{kind: KindLight, index: index}, lightName(def.Name, index))),
	}
	if def.Color != nil {
		options = append(options, light.WithColor(def.Color[0], def.Color[1], def.Color[2]))
	}
	if def.Intensity != nil {
		options = append(options, light.WithIntensity(*def.Intensity))
	}
	if lightType != light.LightTypeDirectional && def.Range != nil {
		options = append(options, light.WithRange(*def.Range))
	}
	if lightType == light.LightTypeSpot {
		inner, outer := float32(0), math32.Pi/4
		if def.Spot != nil && def.Spot.InnerConeAngle != nil {
			inner = *def.Spot.InnerConeAngle
		}
		if def.Spot != nil && def.Spot.OuterConeAngle != nil {
			outer = *def.Spot.OuterConeAngle
		}
		options = append(options, light.WithSpotCone(inner, outer))
	}

	l := light.NewLight(lightType, options...)
	assignExtras(l.UserData, def.Extras)
	return l, nil
}

// CreateNodeAttachment places the node's light, cloning it when other nodes reference the same light.
func (e *lightsExtension) CreateNodeAttachment(ctx context.Context, index int) *future.Future[scene.Object] {
	lightIndex, ok := e.nodeLight(index)
	if !ok {
		return nil
	}
	p := e.parser
	return future.Then(ctx, dependency[*light.Light](ctx, p, KindLight, lightIndex), func(l *light.Light) (scene.Object, error) {
		return p.GetNodeRef(e.refs, lightIndex, index, l), nil
	})
}
