package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// LoadNode builds a node with its children and binds skinned meshes attached to it.
//
// Parameters:
//   - ctx: bounds the attachment and child loads
//   - index: the node index
//
// Returns:
//   - *future.Future[scene.Object]: the node
func (p *Parser) LoadNode(ctx context.Context, index int) *future.Future[scene.Object] {
	def, err := definition(p.doc.Nodes, KindNode, index)
	if err != nil {
		return future.Rejected[scene.Object](err)
	}

	nodeF := p.loadNodeShallow(ctx, index)
	childrenF := make([]*future.Future[scene.Object], len(def.Children))
	for i, child := range def.Children {
		childrenF[i] = dependency[scene.Object](ctx, p, KindNode, child)
	}
	skeletonF := future.Resolved[*scene.Skeleton](nil)
	if def.Skin != nil {
		skeletonF = dependency[*scene.Skeleton](ctx, p, KindSkin, *def.Skin)
	}

	return future.Go(func() (scene.Object, error) {
		node, err := nodeF.Await(ctx)
		if err != nil {
			return nil, err
		}
		children, err := future.WaitAll(ctx, childrenF...)
		if err != nil {
			return nil, err
		}
		skeleton, err := skeletonF.Await(ctx)
		if err != nil {
			return nil, err
		}

		if skeleton != nil {
			node.Base().Traverse(func(o scene.Object) {
				if sm, ok := o.(*scene.SkinnedMesh); ok {
					sm.Bind(skeleton, mgl32.Ident4())
				}
			})
		}
		node.Base().Add(children...)
		return node, nil
	})
}

// loadNodeShallow builds a node and its attachments without children. Skins reference joints
// through this, so joints are the same objects that appear in the scene graph.
func (p *Parser) loadNodeShallow(ctx context.Context, index int) *future.Future[scene.Object] {
	p.mu.Lock()
	if f, ok := p.nodeCache[index]; ok {
		p.mu.Unlock()
		return f
	}
	promise := future.NewPromise[scene.Object]()
	p.nodeCache[index] = promise.Future()
	p.mu.Unlock()

	if index < 0 || index >= len(p.doc.Nodes) {
		promise.Reject(fmt.Errorf("%w: node %d of %d", ErrIndexOutOfRange, index, len(p.doc.Nodes)))
		return promise.Future()
	}
	def := &p.doc.Nodes[index]

	nodeName := ""
	if def.Name != "" {
		nodeName = p.uniqueName(nameSlot{kind: KindNode, index: index}, def.Name)
	}

	var pending []*future.Future[scene.Object]
	if meshF, ok := invokeOne(p, func(c NodeMeshCreator) (*future.Future[scene.Object], bool) {
		return some(c.CreateNodeMesh(ctx, index))
	}); ok {
		pending = append(pending, meshF)
	}
	if def.Camera != nil {
		cameraIndex := *def.Camera
		pending = append(pending, future.Then(ctx, p.GetDependency(ctx, KindCamera, cameraIndex), func(v any) (scene.Object, error) {
			cam, _ := v.(scene.Object)
			if cam == nil {
				return nil, nil
			}
			return p.GetNodeRef(p.cameraRefs, cameraIndex, index, cam), nil
		}))
	}
	pending = append(pending, invokeAll(p, func(a NodeAttachmentProvider) (*future.Future[scene.Object], bool) {
		return some(a.CreateNodeAttachment(ctx, index))
	})...)

	go func() {
		node, err := p.assembleNode(ctx, index, def, nodeName, pending)
		if err != nil {
			promise.Reject(err)
			return
		}
		promise.Resolve(node)
	}()
	return promise.Future()
}

func (p *Parser) assembleNode(ctx context.Context, index int, def *gltf.Node, nodeName string, pending []*future.Future[scene.Object]) (scene.Object, error) {
	results, err := future.WaitAll(ctx, pending...)
	if err != nil {
		return nil, err
	}
	objects := results[:0]
	for _, o := range results {
		if o != nil {
			objects = append(objects, o)
		}
	}

	p.mu.Lock()
	isBone := p.boneNodes[index]
	p.mu.Unlock()

	var node scene.Object
	switch {
	case isBone:
		node = scene.NewBone()
	case len(objects) > 1:
		node = scene.NewGroup()
	case len(objects) == 1:
		node = objects[0]
	default:
		node = scene.NewNode()
	}
	base := node.Base()
	if len(objects) == 0 || node != objects[0] {
		base.Add(objects...)
	}

	if def.Name != "" {
		base.UserData["name"] = def.Name
		base.Name = nodeName
	}
	assignExtras(base.UserData, def.Extras)
	p.addUnknownExtensions(base.UserData, def.Extensions)

	if def.Matrix != nil {
		base.ApplyMatrix(common.Mat4FromSlice(def.Matrix[:]))
	} else {
		if def.Translation != nil {
			base.Position = common.Vec3FromSlice(def.Translation[:], base.Position)
		}
		if def.Rotation != nil {
			base.Quaternion = common.QuatFromSlice(def.Rotation[:])
		}
		if def.Scale != nil {
			base.Scale = common.Vec3FromSlice(def.Scale[:], base.Scale)
		}
	}

	p.associate(node, Association{Nodes: common.Ptr(index)})
	return node, nil
}

// CreateNodeMesh places the node's mesh, cloning it when other nodes reference the same mesh,
// and applies the node's morph weights.
//
// Parameters:
//   - ctx: bounds the mesh load
//   - index: the node index
//
// Returns:
//   - *future.Future[scene.Object]: the mesh placement, nil when the node has no mesh
func (p *Parser) CreateNodeMesh(ctx context.Context, index int) *future.Future[scene.Object] {
	if index < 0 || index >= len(p.doc.Nodes) {
		return nil
	}
	def := &p.doc.Nodes[index]
	if def.Mesh == nil {
		return nil
	}
	meshIndex := *def.Mesh
	return future.Then(ctx, dependency[scene.Object](ctx, p, KindMesh, meshIndex), func(mesh scene.Object) (scene.Object, error) {
		node := p.GetNodeRef(p.meshRefs, meshIndex, index, mesh)
		if len(def.Weights) > 0 {
			node.Base().Traverse(func(o scene.Object) {
				m := scene.AsMesh(o)
				if m == nil {
					return
				}
				for i, w := range def.Weights {
					if i < len(m.MorphTargetInfluences) {
						m.MorphTargetInfluences[i] = w
					}
				}
			})
		}
		return node, nil
	})
}

// loadSkin builds a skeleton from the skin's joints and inverse bind matrices.
// Joints that fail to load are skipped with a warning.
func (p *Parser) loadSkin(ctx context.Context, index int) (*scene.Skeleton, error) {
	def, err := definition(p.doc.Skins, KindSkin, index)
	if err != nil {
		return nil, err
	}

	jointsF := make([]*future.Future[scene.Object], len(def.Joints))
	for i, joint := range def.Joints {
		jointsF[i] = p.loadNodeShallow(ctx, joint)
	}

	var ibm []float32
	if def.InverseBindMatrices != nil {
		attr, err := dependency[model.Attribute](ctx, p, KindAccessor, *def.InverseBindMatrices).Await(ctx)
		if err != nil {
			return nil, err
		}
		if attr != nil {
			ibm = attr.Float32s()
		}
	}

	var (
		bones    []scene.Object
		inverses []mgl32.Mat4
	)
	for i, f := range jointsF {
		joint, err := f.Await(ctx)
		if err != nil || joint == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			common.LogWarn("joint %d could not be found: %v", def.Joints[i], err)
			continue
		}
		bones = append(bones, joint)

		m := mgl32.Ident4()
		if ibm != nil && (i+1)*16 <= len(ibm) {
			m = common.Mat4FromSlice(ibm[i*16 : (i+1)*16])
		}
		inverses = append(inverses, m)
	}
	return scene.NewSkeleton(bones, inverses), nil
}

// loadScene builds a scene root holding its top-level nodes.
func (p *Parser) loadScene(ctx context.Context, index int) (*scene.Scene, error) {
	def, err := definition(p.doc.Scenes, KindScene, index)
	if err != nil {
		return nil, err
	}

	var options []scene.SceneBuilderOption
	if def.Name != "" {
		options = append(options, scene.WithName(p.uniqueName(nameSlot{kind: KindScene, index: index}, def.Name)))
	}
	s := scene.NewScene(options...)
	assignExtras(s.UserData, def.Extras)
	p.addUnknownExtensions(s.UserData, def.Extensions)

	nodesF := make([]*future.Future[scene.Object], len(def.Nodes))
	for i, n := range def.Nodes {
		nodesF[i] = dependency[scene.Object](ctx, p, KindNode, n)
	}
	nodes, err := future.WaitAll(ctx, nodesF...)
	if err != nil {
		return nil, err
	}
	s.Add(nodes...)
	return s, nil
}
