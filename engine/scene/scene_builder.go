package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *Scene)

// WithName sets the scene name.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *Scene) {
		s.Name = name
	}
}

// WithObjects adds initial children to the scene.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...Object) SceneBuilderOption {
	return func(s *Scene) {
		s.Add(objects...)
	}
}

// WithUserData merges entries into the scene's user data.
//
// Parameters:
//   - data: the entries to merge
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUserData(data map[string]any) SceneBuilderOption {
	return func(s *Scene) {
		for k, v := range data {
			s.UserData[k] = v
		}
	}
}
