package scene

// Scene is the root of one glTF scene.
type Scene struct {
	Node
}

var _ Object = &Scene{}

// NewScene creates an empty scene root.
//
// Parameters:
//   - options: optional configuration applied in order
//
// Returns:
//   - *Scene: the scene
func NewScene(options ...SceneBuilderOption) *Scene {
	s := &Scene{}
	s.Init(s)
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Clone copies the scene.
func (s *Scene) Clone(recursive bool) Object {
	c := NewScene()
	c.CopyFrom(&s.Node, recursive)
	return c
}

// Meshes returns every mesh in the scene, depth first.
func (s *Scene) Meshes() []*Mesh {
	var out []*Mesh
	s.Traverse(func(o Object) {
		if m := AsMesh(o); m != nil {
			out = append(out, m)
		}
	})
	return out
}

// Count returns the number of objects in the scene, including the root.
func (s *Scene) Count() int {
	n := 0
	s.Traverse(func(Object) { n++ })
	return n
}
