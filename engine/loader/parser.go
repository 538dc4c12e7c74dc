package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/camera"
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// ParserState is the lifecycle position of a parse.
type ParserState int

const (
	StateCreated ParserState = iota
	StateMarkingReferences
	StateResolvingRoots
	StateDone
	StateFailed
)

func (s ParserState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateMarkingReferences:
		return "MarkingReferences"
	case StateResolvingRoots:
		return "ResolvingRoots"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	}
	return "ParserState(" + strconv.Itoa(int(s)) + ")"
}

// GLTF is the result of a parse.
type GLTF struct {
	// Scene is the default scene: document.scene, or the first scene.
	Scene *scene.Scene

	// Scenes holds every scene in document order.
	Scenes []*scene.Scene

	// Animations holds every animation in document order.
	Animations []*animation.AnimationClip

	// Cameras holds every camera definition in document order.
	Cameras []camera.Camera

	// Asset is the document's asset block.
	Asset gltf.Asset

	// Parser is the parser that built the result, for provenance lookups.
	Parser *Parser

	// UserData holds the document extras and unknown root extensions.
	UserData map[string]any
}

// KTX2Decoder transcodes KHR_texture_basisu payloads.
type KTX2Decoder interface {
	DecodeKTX2(ctx context.Context, data []byte) *future.Future[*common.ImageData]
}

// MeshoptDecoder decodes EXT_meshopt_compression buffer views.
type MeshoptDecoder interface {
	// DecodeGltfBuffer returns count*stride decoded bytes.
	DecodeGltfBuffer(ctx context.Context, count, stride int, source []byte, mode, filter string) *future.Future[[]byte]
}

// Parser resolves one glTF document into a scene graph. Every definition is resolved at most once per
// parse: GetDependency stores the in-flight future before resolution starts, so concurrent requests for
// the same definition share one computation. A Parser handles one parse at a time.
type Parser struct {
	mu *sync.Mutex

	doc  *gltf.Document
	body []byte
	path string

	byteSource  ByteSource
	imageSource ImageSource
	ownsImages  bool
	dracoSched  draco.Scheduler
	ktx2        KTX2Decoder
	meshopt     MeshoptDecoder
	prof        *profiler.Profiler

	factories  []PluginFactory
	plugins    []Extension
	extensions map[string]Extension

	state ParserState

	cache          *dependencyCache
	meshRefs       *referenceCache
	cameraRefs     *referenceCache
	boneNodes      map[int]bool
	skinnedMeshes  map[int]bool
	nodeCache      map[int]*future.Future[scene.Object]
	sourceCache    map[int]*future.Future[*model.Texture]
	textureCache   map[string]*future.Future[*model.Texture]
	primitiveCache map[string]*future.Future[*model.Geometry]
	objectCache    map[string]any
	namesUsed      map[string]int
	reservedNames  map[nameSlot]string
	associations   map[any]*Association
}

// NewParser creates a parser for doc. Built-in plugins are registered first, then the plugins
// passed with WithPlugins, then the handlers for extensionsUsed that are not plugins.
// A required extension with no handler is logged; parsing fails later only if the data needs it.
//
// Parameters:
//   - doc: the decoded document
//   - options: functional options applied in order
//
// Returns:
//   - *Parser: the parser
func NewParser(doc *gltf.Document, options ...ParserBuilderOption) *Parser {
	p := &Parser{
		mu:         &sync.Mutex{},
		doc:        doc,
		extensions: make(map[string]Extension),
	}
	p.reset()

	for _, option := range options {
		option(p)
	}
	if p.byteSource == nil {
		p.byteSource = NewByteSource(nil)
	}

	for _, factory := range append(builtinPlugins(), p.factories...) {
		ext := factory(p)
		if ext == nil {
			continue
		}
		if ext.Name() == "" {
			common.LogError("invalid plugin found: missing name")
		}
		p.plugins = append(p.plugins, ext)
		p.extensions[ext.Name()] = ext
	}

	for _, name := range doc.ExtensionsUsed {
		switch name {
		case gltf.ExtMaterialsUnlit:
			p.extensions[name] = &materialsUnlitExtension{parser: p}
		case gltf.ExtDracoMeshCompression:
			p.extensions[name] = &dracoExtension{parser: p}
		case gltf.ExtTextureTransform:
			p.extensions[name] = &textureTransformExtension{}
		case gltf.ExtMeshQuantization:
			p.extensions[name] = &meshQuantizationExtension{}
		default:
			if _, ok := p.extensions[name]; ok {
				continue
			}
			if doc.ExtensionRequired(name) {
				common.LogWarn("unknown extension %q is required by the asset", name)
			} else {
				common.LogDebug("unknown extension %q, data preserved in user data", name)
			}
		}
	}
	return p
}

// Document returns the parsed document.
func (p *Parser) Document() *gltf.Document {
	return p.doc
}

// State returns the lifecycle position of the current parse.
func (p *Parser) State() ParserState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Plugins returns the registered plugins in dispatch order.
func (p *Parser) Plugins() []Extension {
	return append([]Extension(nil), p.plugins...)
}

// Extension returns the handler registered for name, or nil.
func (p *Parser) Extension(name string) Extension {
	return p.extensions[name]
}

// MeshRefs returns the reference counts of meshes.
func (p *Parser) MeshRefs() *referenceCache {
	return p.meshRefs
}

// CameraRefs returns the reference counts of cameras.
func (p *Parser) CameraRefs() *referenceCache {
	return p.cameraRefs
}

// images returns the injected image source, or a single-worker one owned by the parser and
// created on first use.
func (p *Parser) images() ImageSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.imageSource == nil {
		p.imageSource = NewImageSource(1)
		p.ownsImages = true
	}
	return p.imageSource
}

// releaseImageSource stops the image source the parser owns. An injected source is left open.
func (p *Parser) releaseImageSource() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ownsImages && p.imageSource != nil {
		p.imageSource.Close()
		p.imageSource = nil
		p.ownsImages = false
	}
}

func (p *Parser) setState(s ParserState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// reset clears every per-parse table.
func (p *Parser) reset() {
	p.state = StateCreated
	p.cache = newDependencyCache()
	p.meshRefs = newReferenceCache()
	p.cameraRefs = newReferenceCache()
	p.boneNodes = make(map[int]bool)
	p.skinnedMeshes = make(map[int]bool)
	p.nodeCache = make(map[int]*future.Future[scene.Object])
	p.sourceCache = make(map[int]*future.Future[*model.Texture])
	p.textureCache = make(map[string]*future.Future[*model.Texture])
	p.primitiveCache = make(map[string]*future.Future[*model.Geometry])
	p.objectCache = make(map[string]any)
	p.namesUsed = make(map[string]int)
	p.reservedNames = make(map[nameSlot]string)
	p.associations = make(map[any]*Association)
}

func (p *Parser) handlersForOne() []any {
	out := make([]any, 0, len(p.plugins)+1)
	for _, ext := range p.plugins {
		out = append(out, ext)
	}
	return append(out, p)
}

func (p *Parser) handlersForAll() []any {
	out := make([]any, 0, len(p.plugins)+1)
	out = append(out, p)
	for _, ext := range p.plugins {
		out = append(out, ext)
	}
	return out
}

// Parse resolves every scene, animation and camera of the document.
// Reference marking completes before any resolution starts. The first failure aborts the parse.
//
// Parameters:
//   - ctx: bounds every wait; cancellation fails the parse with ctx.Err()
//
// Returns:
//   - *GLTF: the scene graph and its metadata
//   - error: the first resolution failure
func (p *Parser) Parse(ctx context.Context) (*GLTF, error) {
	p.mu.Lock()
	p.reset()
	p.mu.Unlock()

	result, err := p.parse(ctx)
	p.releaseImageSource()
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	p.setState(StateDone)
	return result, nil
}

func (p *Parser) parse(ctx context.Context) (*GLTF, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setState(StateMarkingReferences)
	stop := p.prof.Start(profiler.PhaseMarkRefs)
	invokeAll(p, func(m DefsMarker) (struct{}, bool) {
		m.MarkDefs()
		return struct{}{}, true
	})
	stop()

	for _, err := range invokeAll(p, func(h BeforeRootHook) (error, bool) {
		err := h.BeforeRoot(ctx)
		return err, err != nil
	}) {
		return nil, err
	}

	p.setState(StateResolvingRoots)
	defer p.prof.Start(profiler.PhaseResolve)()

	scenesF := p.getDependencies(ctx, KindScene, len(p.doc.Scenes))
	animationsF := p.getDependencies(ctx, KindAnimation, len(p.doc.Animations))
	camerasF := p.getDependencies(ctx, KindCamera, len(p.doc.Cameras))

	scenes, err := awaitAll[*scene.Scene](ctx, scenesF)
	if err != nil {
		return nil, err
	}
	animations, err := awaitAll[*animation.AnimationClip](ctx, animationsF)
	if err != nil {
		return nil, err
	}
	cameras, err := awaitAll[camera.Camera](ctx, camerasF)
	if err != nil {
		return nil, err
	}

	result := &GLTF{
		Scenes:     scenes,
		Animations: animations,
		Asset:      p.doc.Asset,
		Parser:     p,
		UserData:   make(map[string]any),
	}
	for _, c := range cameras {
		if c != nil {
			result.Cameras = append(result.Cameras, c)
		}
	}
	if len(scenes) > 0 {
		idx := 0
		if p.doc.Scene != nil && *p.doc.Scene >= 0 && *p.doc.Scene < len(scenes) {
			idx = *p.doc.Scene
		}
		result.Scene = scenes[idx]
	}
	p.addUnknownExtensions(result.UserData, p.doc.Extensions)
	assignExtras(result.UserData, p.doc.Extras)

	for _, err := range invokeAll(p, func(h AfterRootHook) (error, bool) {
		err := h.AfterRoot(ctx, result)
		return err, err != nil
	}) {
		return nil, err
	}

	p.pruneAssociations(result.Scenes)
	return result, nil
}

// GetDependency returns the memoized resolution of a definition. The future is stored before the
// resolver runs, so every caller asking for the same key shares one resolution.
// Kinds the parser does not know are offered to plugins implementing DependencyProvider;
// if none accepts, the future fails with ErrUnknownDependencyKind.
//
// Parameters:
//   - ctx: bounds the resolver's waits
//   - kind: the definition kind
//   - index: the definition index
//
// Returns:
//   - *future.Future[any]: the resolved runtime object
func (p *Parser) GetDependency(ctx context.Context, kind DependencyKind, index int) *future.Future[any] {
	key := DependencyKey{Kind: kind, Index: index}

	p.mu.Lock()
	if f, ok := p.cache.get(key); ok {
		p.mu.Unlock()
		return f
	}
	promise := future.NewPromise[any]()
	p.cache.add(key, promise.Future())
	p.mu.Unlock()

	go func() {
		v, err := p.resolve(ctx, kind, index)
		if err != nil {
			promise.Reject(fmt.Errorf("%s %d: %w", kind, index, err))
			return
		}
		promise.Resolve(v)
	}()
	return promise.Future()
}

func (p *Parser) resolve(ctx context.Context, kind DependencyKind, index int) (any, error) {
	switch kind {
	case KindScene:
		return p.loadScene(ctx, index)
	case KindNode:
		f, ok := invokeOne(p, func(l NodeLoader) (*future.Future[scene.Object], bool) {
			return some(l.LoadNode(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindMesh:
		f, ok := invokeOne(p, func(l MeshLoader) (*future.Future[scene.Object], bool) {
			return some(l.LoadMesh(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindAccessor:
		return p.loadAccessor(ctx, index)
	case KindBufferView:
		f, ok := invokeOne(p, func(l BufferViewLoader) (*future.Future[[]byte], bool) {
			return some(l.LoadBufferView(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindBuffer:
		return p.loadBuffer(ctx, index)
	case KindMaterial:
		f, ok := invokeOne(p, func(l MaterialLoader) (*future.Future[*model.Material], bool) {
			return some(l.LoadMaterial(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindTexture:
		f, ok := invokeOne(p, func(l TextureLoader) (*future.Future[*model.Texture], bool) {
			return some(l.LoadTexture(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindSkin:
		return p.loadSkin(ctx, index)
	case KindAnimation:
		f, ok := invokeOne(p, func(l AnimationLoader) (*future.Future[*animation.AnimationClip], bool) {
			return some(l.LoadAnimation(ctx, index))
		})
		return awaitHook(ctx, f, ok)
	case KindCamera:
		return p.loadCamera(index)
	}

	// the parser's own GetDependency is excluded here
	for _, ext := range p.plugins {
		dp, ok := ext.(DependencyProvider)
		if !ok {
			continue
		}
		if f := dp.GetDependency(ctx, kind, index); f != nil {
			return f.Await(ctx)
		}
	}
	return nil, ErrUnknownDependencyKind
}

// getDependencies requests every definition of kind.
func (p *Parser) getDependencies(ctx context.Context, kind DependencyKind, n int) []*future.Future[any] {
	out := make([]*future.Future[any], n)
	for i := range out {
		out[i] = p.GetDependency(ctx, kind, i)
	}
	return out
}

// dependency is a typed GetDependency.
func dependency[T any](ctx context.Context, p *Parser, kind DependencyKind, index int) *future.Future[T] {
	return future.Then(ctx, p.GetDependency(ctx, kind, index), func(v any) (T, error) {
		return cast[T](v)
	})
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("loader: dependency resolved to %T, want %T", v, zero)
	}
	return t, nil
}

func awaitAll[T any](ctx context.Context, futures []*future.Future[any]) ([]T, error) {
	values, err := future.WaitAll(ctx, futures...)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		if out[i], err = cast[T](v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func awaitHook[T any](ctx context.Context, f *future.Future[T], ok bool) (any, error) {
	if !ok {
		return nil, ErrUnknownDependencyKind
	}
	return f.Await(ctx)
}

// definition returns &defs[index] or ErrIndexOutOfRange.
func definition[T any](defs []T, kind DependencyKind, index int) (*T, error) {
	if index < 0 || index >= len(defs) {
		return nil, fmt.Errorf("%w: %s %d of %d", ErrIndexOutOfRange, kind, index, len(defs))
	}
	return &defs[index], nil
}

// MarkDefs flags joint nodes as bones and skinned meshes, counts node references to meshes and
// cameras, and reserves the unique names of scenes, nodes, mesh primitives and cameras in
// document order.
func (p *Parser) MarkDefs() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, skin := range p.doc.Skins {
		for _, joint := range skin.Joints {
			p.boneNodes[joint] = true
		}
	}
	for i, node := range p.doc.Nodes {
		if node.Mesh != nil {
			p.meshRefs.addRef(*node.Mesh, i)
			if node.Skin != nil {
				p.skinnedMeshes[*node.Mesh] = true
			}
		}
		if node.Camera != nil {
			p.cameraRefs.addRef(*node.Camera, i)
		}
	}

	for i, def := range p.doc.Scenes {
		if def.Name != "" {
			p.reserveNameLocked(nameSlot{kind: KindScene, index: i}, def.Name)
		}
	}
	for i, def := range p.doc.Nodes {
		if def.Name != "" {
			p.reserveNameLocked(nameSlot{kind: KindNode, index: i}, def.Name)
		}
	}
	for i, def := range p.doc.Meshes {
		for j := range def.Primitives {
			p.reserveNameLocked(nameSlot{kind: KindMesh, index: i, sub: j}, meshName(def.Name, i))
		}
	}
	for i, def := range p.doc.Cameras {
		if def.Name != "" {
			p.reserveNameLocked(nameSlot{kind: KindCamera, index: i}, def.Name)
		}
	}
}

var (
	whitespace        = regexp.MustCompile(`\s`)
	reservedNameChars = regexp.MustCompile(`[\[\]\.:/]`)
)

// sanitizeNodeName replaces whitespace with underscores and strips characters reserved by
// animation track paths.
func sanitizeNodeName(name string) string {
	return reservedNameChars.ReplaceAllString(whitespace.ReplaceAllString(name, "_"), "")
}

// nameSlot identifies the definition a unique name was reserved for. sub is the primitive
// index for meshes.
type nameSlot struct {
	kind  DependencyKind
	index int
	sub   int
}

// createUniqueName returns the sanitized name, suffixed with "_N" when it was already handed out in this parse.
func (p *Parser) createUniqueName(original string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createUniqueNameLocked(original)
}

func (p *Parser) createUniqueNameLocked(original string) string {
	name := sanitizeNodeName(original)
	if n, ok := p.namesUsed[name]; ok {
		n++
		p.namesUsed[name] = n
		return name + "_" + strconv.Itoa(n)
	}
	p.namesUsed[name] = 0
	return name
}

// ReserveName hands out the unique name of a definition ahead of resolution, so suffixes follow
// the order of reservation rather than the order in which definitions resolve. Extensions call
// it from MarkDefs.
//
// Parameters:
//   - kind: the definition kind
//   - index: the definition index
//   - original: the name to make unique
func (p *Parser) ReserveName(kind DependencyKind, index int, original string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserveNameLocked(nameSlot{kind: kind, index: index}, original)
}

func (p *Parser) reserveNameLocked(slot nameSlot, original string) {
	if _, ok := p.reservedNames[slot]; ok {
		return
	}
	p.reservedNames[slot] = p.createUniqueNameLocked(original)
}

// uniqueName returns the name reserved for slot, or a fresh unique name when none was reserved.
func (p *Parser) uniqueName(slot nameSlot, original string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name, ok := p.reservedNames[slot]; ok {
		return name
	}
	return p.createUniqueNameLocked(original)
}

// meshName is the base name of a mesh primitive.
func meshName(name string, index int) string {
	return common.Coalesce(name, "mesh_"+strconv.Itoa(index))
}

// assignExtras merges an extras object into userData. Non-object extras are ignored.
func assignExtras(userData map[string]any, extras json.RawMessage) {
	if len(extras) == 0 {
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(extras, &obj); err != nil || obj == nil {
		common.LogWarn("ignoring primitive type .extras, %s", strings.TrimSpace(string(extras)))
		return
	}
	maps.Copy(userData, obj)
}

// addUnknownExtensions stores extensions without a registered handler under userData["gltfExtensions"].
func (p *Parser) addUnknownExtensions(userData map[string]any, exts map[string]json.RawMessage) {
	for name, raw := range exts {
		if _, known := p.extensions[name]; known {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			common.LogWarn("ignoring malformed extension %s: %v", name, err)
			continue
		}
		bag, _ := userData["gltfExtensions"].(map[string]any)
		if bag == nil {
			bag = make(map[string]any)
			userData["gltfExtensions"] = bag
		}
		bag[name] = v
	}
}
