package scene

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Object is anything that can be placed in the scene graph.
//
// Every concrete object embeds a Node, which carries the transform and the
// parent/child links. Object adds the one operation a Node cannot provide on
// its own: a clone that preserves the concrete type.
type Object interface {
	// Base returns the embedded Node holding the transform and hierarchy.
	//
	// Returns:
	//   - *Node: the node
	Base() *Node

	// Clone copies the object with a new UUID and an independent user data bag.
	// Geometry, materials and skeletons are shared with the original.
	//
	// Parameters:
	//   - recursive: whether children are cloned too
	//
	// Returns:
	//   - Object: the copy, of the same concrete type
	Clone(recursive bool) Object
}

// Node is a transform in the scene graph. A node owns its children; a node has at most one parent.
type Node struct {
	// UUID uniquely identifies the node.
	UUID string

	// Name is the node identifier, unique within one parse.
	Name string

	// Position is the local translation.
	Position mgl32.Vec3

	// Quaternion is the local rotation.
	Quaternion mgl32.Quat

	// Scale is the local scale.
	Scale mgl32.Vec3

	// Visible reports whether the node is drawn.
	Visible bool

	// UserData carries arbitrary application data, including glTF extras.
	UserData map[string]any

	self     Object
	parent   Object
	children []Object
}

var _ Object = &Node{}

// NewNode creates an empty transform node at the origin.
//
// Returns:
//   - *Node: the node
func NewNode() *Node {
	n := &Node{}
	n.Init(n)
	return n
}

// Init prepares a node embedded in self. Constructors of every object type call it once.
func (n *Node) Init(self Object) {
	n.UUID = uuid.NewString()
	n.Quaternion = mgl32.QuatIdent()
	n.Scale = mgl32.Vec3{1, 1, 1}
	n.Visible = true
	n.UserData = make(map[string]any)
	n.self = self
}

// Base returns n.
func (n *Node) Base() *Node {
	return n
}

// Object returns the concrete object that embeds n.
func (n *Node) Object() Object {
	if n.self == nil {
		return n
	}
	return n.self
}

// Clone copies the node.
func (n *Node) Clone(recursive bool) Object {
	c := &Node{}
	c.Init(c)
	c.CopyFrom(n, recursive)
	return c
}

// CopyFrom copies the transform, name and user data of src, and clones its children when recursive.
// The parent link is not copied.
func (n *Node) CopyFrom(src *Node, recursive bool) {
	n.Name = src.Name
	n.Position = src.Position
	n.Quaternion = src.Quaternion
	n.Scale = src.Scale
	n.Visible = src.Visible
	n.UserData = common.CloneUserData(src.UserData)
	if n.UserData == nil {
		n.UserData = make(map[string]any)
	}
	if recursive {
		for _, child := range src.children {
			n.Add(child.Clone(true))
		}
	}
}

// Parent returns the parent object, or nil for a root.
func (n *Node) Parent() Object {
	return n.parent
}

// Children returns the direct children in insertion order.
func (n *Node) Children() []Object {
	return n.children
}

// Add attaches children to n, detaching each from its previous parent first.
// Adding a node to itself is ignored.
//
// Parameters:
//   - children: the objects to attach
func (n *Node) Add(children ...Object) {
	for _, child := range children {
		if child == nil {
			continue
		}
		cb := child.Base()
		if cb == n {
			common.LogWarn("scene: node %q cannot be added as a child of itself", n.Name)
			continue
		}
		if cb.parent != nil {
			cb.parent.Base().Remove(child)
		}
		cb.parent = n.Object()
		n.children = append(n.children, child)
	}
}

// Remove detaches child from n. Removing an object that is not a child is a no-op.
func (n *Node) Remove(child Object) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.Base().parent = nil
			return
		}
	}
}

// Traverse calls fn on n and then on every descendant, depth first.
//
// Parameters:
//   - fn: the visitor
func (n *Node) Traverse(fn func(Object)) {
	fn(n.Object())
	for _, child := range n.children {
		child.Base().Traverse(fn)
	}
}

// GetObjectByName returns the first object in the subtree named name.
//
// Parameters:
//   - name: the name to look for
//
// Returns:
//   - Object: the match, or nil
func (n *Node) GetObjectByName(name string) Object {
	var found Object
	n.Traverse(func(o Object) {
		if found == nil && o.Base().Name == name {
			found = o
		}
	})
	return found
}

// Matrix returns the local transform composed from position, rotation and scale.
func (n *Node) Matrix() mgl32.Mat4 {
	return common.ComposeMatrix(n.Position, n.Quaternion, n.Scale)
}

// SetMatrix decomposes m into the local position, rotation and scale.
func (n *Node) SetMatrix(m mgl32.Mat4) {
	n.Position, n.Quaternion, n.Scale = common.DecomposeMatrix(m)
}

// ApplyMatrix premultiplies the local transform by m.
func (n *Node) ApplyMatrix(m mgl32.Mat4) {
	n.SetMatrix(m.Mul4(n.Matrix()))
}

// MatrixWorld returns the transform from local space to the space of the root.
func (n *Node) MatrixWorld() mgl32.Mat4 {
	m := n.Matrix()
	for p := n.parent; p != nil; p = p.Base().parent {
		m = p.Base().Matrix().Mul4(m)
	}
	return m
}

// Group is a node whose only purpose is to hold children.
type Group struct {
	Node
}

var _ Object = &Group{}

// NewGroup creates an empty group.
func NewGroup() *Group {
	g := &Group{}
	g.Init(g)
	return g
}

// Clone copies the group.
func (g *Group) Clone(recursive bool) Object {
	c := NewGroup()
	c.CopyFrom(&g.Node, recursive)
	return c
}

// Bone is a node referenced as a skin joint.
type Bone struct {
	Node
}

var _ Object = &Bone{}

// NewBone creates a bone at the origin.
func NewBone() *Bone {
	b := &Bone{}
	b.Init(b)
	return b
}

// Clone copies the bone.
func (b *Bone) Clone(recursive bool) Object {
	c := NewBone()
	c.CopyFrom(&b.Node, recursive)
	return c
}
