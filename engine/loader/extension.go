package loader

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// Extension is a parser plugin. It implements any subset of the capability interfaces below;
// the parser only calls the hooks a plugin implements.
type Extension interface {
	// Name returns the glTF extension name the plugin handles.
	Name() string
}

// PluginFactory creates a plugin bound to one parser.
type PluginFactory func(p *Parser) Extension

// DefsMarker runs during the reference marking pass, before any resolution starts.
type DefsMarker interface {
	MarkDefs()
}

// BeforeRootHook runs after reference marking and before the root dependencies resolve.
type BeforeRootHook interface {
	BeforeRoot(ctx context.Context) error
}

// AfterRootHook runs on the assembled result before it is returned.
type AfterRootHook interface {
	AfterRoot(ctx context.Context, result *GLTF) error
}

// DependencyProvider resolves extension-private dependency kinds. It returns nil for kinds it does not own.
type DependencyProvider interface {
	GetDependency(ctx context.Context, kind DependencyKind, index int) *future.Future[any]
}

// BufferViewLoader loads buffer views. It returns nil when it does not handle the view.
type BufferViewLoader interface {
	LoadBufferView(ctx context.Context, index int) *future.Future[[]byte]
}

// TextureLoader loads textures. It returns nil when it does not handle the texture.
type TextureLoader interface {
	LoadTexture(ctx context.Context, index int) *future.Future[*model.Texture]
}

// MaterialLoader loads materials. It returns nil when it does not handle the material.
type MaterialLoader interface {
	LoadMaterial(ctx context.Context, index int) *future.Future[*model.Material]
}

// MeshLoader loads meshes. It returns nil when it does not handle the mesh.
type MeshLoader interface {
	LoadMesh(ctx context.Context, index int) *future.Future[scene.Object]
}

// NodeLoader loads nodes with their children. It returns nil when it does not handle the node.
type NodeLoader interface {
	LoadNode(ctx context.Context, index int) *future.Future[scene.Object]
}

// AnimationLoader loads animations. It returns nil when it does not handle the animation.
type AnimationLoader interface {
	LoadAnimation(ctx context.Context, index int) *future.Future[*animation.AnimationClip]
}

// MaterialTypeProvider selects the material kind. ok is false when the provider has no opinion.
type MaterialTypeProvider interface {
	MaterialType(index int) (kind model.MaterialKind, ok bool)
}

// MaterialParamsExtender contributes material parameters. It returns nil when it has nothing to add.
type MaterialParamsExtender interface {
	ExtendMaterialParams(ctx context.Context, index int, params *MaterialParamsBuilder) *future.Future[struct{}]
}

// NodeMeshCreator builds the mesh attachment of a node. It returns nil when the node has no mesh.
type NodeMeshCreator interface {
	CreateNodeMesh(ctx context.Context, index int) *future.Future[scene.Object]
}

// NodeAttachmentProvider contributes an extra attachment to a node. It returns nil when it has none.
type NodeAttachmentProvider interface {
	CreateNodeAttachment(ctx context.Context, index int) *future.Future[scene.Object]
}

// invokeOne calls hook on each handler implementing C in order and returns the first result
// with ok set. Plugins are tried in registration order and the parser last.
func invokeOne[C, R any](p *Parser, hook func(C) (R, bool)) (R, bool) {
	for _, h := range p.handlersForOne() {
		c, ok := h.(C)
		if !ok {
			continue
		}
		if r, ok := hook(c); ok {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// invokeAll calls hook on every handler implementing C and collects the results with ok set,
// parser first, then plugins in registration order.
func invokeAll[C, R any](p *Parser, hook func(C) (R, bool)) []R {
	var out []R
	for _, h := range p.handlersForAll() {
		c, ok := h.(C)
		if !ok {
			continue
		}
		if r, ok := hook(c); ok {
			out = append(out, r)
		}
	}
	return out
}

// some adapts a future-returning hook to invokeOne/invokeAll.
func some[T any](f *future.Future[T]) (*future.Future[T], bool) {
	return f, f != nil
}

// MaterialParamsBuilder guards material parameters written by concurrent texture assignments.
type MaterialParamsBuilder struct {
	mu     *sync.Mutex
	params model.MaterialParams
}

// NewMaterialParamsBuilder starts from params.
func NewMaterialParamsBuilder(params model.MaterialParams) *MaterialParamsBuilder {
	return &MaterialParamsBuilder{mu: &sync.Mutex{}, params: params}
}

// Update applies fn to the parameters under the builder's lock.
//
// Parameters:
//   - fn: the mutation
func (b *MaterialParamsBuilder) Update(fn func(*model.MaterialParams)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.params)
}

// Params returns a copy of the accumulated parameters.
func (b *MaterialParamsBuilder) Params() model.MaterialParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// builtinPlugins returns the plugins every parser registers, in dispatch order.
func builtinPlugins() []PluginFactory {
	return []PluginFactory{
		newMaterialsClearcoatExtension,
		newTextureBasisuExtension,
		newTextureWebPExtension,
		newMaterialsSheenExtension,
		newMaterialsTransmissionExtension,
		newMaterialsVolumeExtension,
		newMaterialsIORExtension,
		newMaterialsEmissiveStrengthExtension,
		newMaterialsSpecularExtension,
		newMaterialsAnisotropyExtension,
		newLightsExtension,
		newMeshoptExtension,
	}
}
