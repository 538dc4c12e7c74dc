package loader

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
)

// DependencyKind names a category of glTF definitions that resolve to runtime objects.
type DependencyKind string

const (
	KindScene      DependencyKind = "scene"
	KindNode       DependencyKind = "node"
	KindMesh       DependencyKind = "mesh"
	KindAccessor   DependencyKind = "accessor"
	KindBufferView DependencyKind = "bufferView"
	KindBuffer     DependencyKind = "buffer"
	KindMaterial   DependencyKind = "material"
	KindTexture    DependencyKind = "texture"
	KindSkin       DependencyKind = "skin"
	KindAnimation  DependencyKind = "animation"
	KindCamera     DependencyKind = "camera"

	// KindLight is resolved by the KHR_lights_punctual extension.
	KindLight DependencyKind = "light"
)

// DependencyKey identifies one resolved definition within a parse.
type DependencyKey struct {
	Kind  DependencyKind
	Index int
}

// dependencyCache memoizes in-flight and completed resolutions. Callers hold the parser mutex.
type dependencyCache struct {
	entries map[DependencyKey]*future.Future[any]
}

func newDependencyCache() *dependencyCache {
	return &dependencyCache{entries: make(map[DependencyKey]*future.Future[any])}
}

func (c *dependencyCache) get(key DependencyKey) (*future.Future[any], bool) {
	f, ok := c.entries[key]
	return f, ok
}

func (c *dependencyCache) add(key DependencyKey, f *future.Future[any]) {
	c.entries[key] = f
}

func (c *dependencyCache) len() int {
	return len(c.entries)
}
