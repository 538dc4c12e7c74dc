package loader

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// Association records which glTF definitions a runtime object was built from.
type Association struct {
	Materials  *int
	Meshes     *int
	Primitives *int
	Textures   *int
	Nodes      *int
}

// refCount tracks the nodes referencing a resource, in node-index order, and how many
// placements were handed out. uses never exceeds refs.
type refCount struct {
	refs  int
	uses  int
	nodes []int

	// template is an untouched copy taken at the first request; placements after the first clone it.
	template scene.Object
}

// referenceCache counts node references per resource index.
type referenceCache struct {
	entries map[int]*refCount
}

func newReferenceCache() *referenceCache {
	return &referenceCache{entries: make(map[int]*refCount)}
}

func (c *referenceCache) addRef(index, node int) {
	rc, ok := c.entries[index]
	if !ok {
		rc = &refCount{}
		c.entries[index] = rc
	}
	rc.refs++
	rc.nodes = append(rc.nodes, node)
}

// Refs returns the number of node references recorded for index.
func (c *referenceCache) Refs(index int) int {
	if rc, ok := c.entries[index]; ok {
		return rc.refs
	}
	return 0
}

// placement returns the ordinal of node among the references to the resource. Nodes that were
// not recorded get ordinals after the recorded ones, in request order.
func (rc *refCount) placement(node int) int {
	for k, n := range rc.nodes {
		if n == node {
			return k
		}
	}
	rc.uses++
	return len(rc.nodes) + rc.uses - 1
}

// AddNodeRef records that node references a resource. Extensions call it from MarkDefs, visiting
// nodes in index order.
//
// Parameters:
//   - cache: the reference cache of the resource kind
//   - index: the resource index
//   - node: the referencing node index
func (p *Parser) AddNodeRef(cache *referenceCache, index, node int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cache.addRef(index, node)
}

// GetNodeRef returns the placement of a shared resource for one referencing node.
// A resource referenced at most once is returned unchanged. Otherwise the lowest-indexed
// referencing node gets obj itself and every other one a deep clone named with an
// "_instance_k" suffix, k being the node's rank among the references. The result does not
// depend on the order in which nodes resolve. Clones carry the associations of the objects
// they copy.
//
// Parameters:
//   - cache: the reference cache of the resource kind
//   - index: the resource index
//   - node: the referencing node index
//   - obj: the resolved resource
//
// Returns:
//   - scene.Object: obj or a clone of it
func (p *Parser) GetNodeRef(cache *referenceCache, index, node int, obj scene.Object) scene.Object {
	p.mu.Lock()
	defer p.mu.Unlock()

	rc, ok := cache.entries[index]
	if !ok || rc.refs <= 1 {
		return obj
	}

	// taken before any placement is returned, so obj is still untouched
	if rc.template == nil {
		rc.template = obj.Clone(true)
		p.copyAssociations(obj, rc.template)
	}

	k := rc.placement(node)
	if k == 0 {
		return obj
	}
	ref := rc.template.Clone(true)
	p.copyAssociations(rc.template, ref)
	ref.Base().Name += "_instance_" + strconv.Itoa(k)
	return ref
}

// copyAssociations maps clone and its descendants to the associations of original's matching nodes.
// Caller holds p.mu.
func (p *Parser) copyAssociations(original, clone scene.Object) {
	if a, ok := p.associations[original]; ok {
		c := *a
		p.associations[clone] = &c
	}
	src := original.Base().Children()
	dst := clone.Base().Children()
	for i := range src {
		if i < len(dst) {
			p.copyAssociations(src[i], dst[i])
		}
	}
}

// associate merges fields of a into the association of key.
func (p *Parser) associate(key any, a Association) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.associateLocked(key, a)
}

func (p *Parser) associateLocked(key any, a Association) {
	cur, ok := p.associations[key]
	if !ok {
		cur = &Association{}
		p.associations[key] = cur
	}
	if a.Materials != nil {
		cur.Materials = a.Materials
	}
	if a.Meshes != nil {
		cur.Meshes = a.Meshes
	}
	if a.Primitives != nil {
		cur.Primitives = a.Primitives
	}
	if a.Textures != nil {
		cur.Textures = a.Textures
	}
	if a.Nodes != nil {
		cur.Nodes = a.Nodes
	}
}

// shareAssociation makes dst use a copy of src's association, if any.
func (p *Parser) shareAssociation(src, dst any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.associations[src]; ok {
		c := *a
		p.associations[dst] = &c
	}
}

// Association returns the provenance of a runtime object built by the last parse.
//
// Parameters:
//   - obj: a scene object, *model.Material or *model.Texture
//
// Returns:
//   - Association: the definition indices the object was built from
//   - bool: false if obj has no recorded provenance
func (p *Parser) Association(obj any) (Association, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.associations[obj]; ok {
		return *a, true
	}
	return Association{}, false
}

// pruneAssociations keeps materials, textures and objects reachable from roots.
func (p *Parser) pruneAssociations(roots []*scene.Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reduced := make(map[any]*Association, len(p.associations))
	for key, a := range p.associations {
		switch key.(type) {
		case *model.Material, *model.Texture:
			reduced[key] = a
		}
	}
	for _, root := range roots {
		root.Traverse(func(o scene.Object) {
			if a, ok := p.associations[o]; ok {
				reduced[o] = a
			}
		})
	}
	dropped := len(p.associations) - len(reduced)
	p.associations = reduced
	if dropped > 0 {
		common.LogDebug("pruned %d dangling associations", dropped)
	}
}
