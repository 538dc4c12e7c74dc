package camera

// PerspectiveOption configures a PerspectiveCamera during construction.
type PerspectiveOption func(*PerspectiveCamera)

// OrthographicOption configures an OrthographicCamera during construction.
type OrthographicOption func(*OrthographicCamera)

// WithFov sets the vertical field of view in degrees.
//
// Parameters:
//   - fov: field of view in degrees
//
// Returns:
//   - PerspectiveOption: a function that sets the camera's field of view
func WithFov(fov float32) PerspectiveOption {
	return func(c *PerspectiveCamera) {
		c.Fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - PerspectiveOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) PerspectiveOption {
	return func(c *PerspectiveCamera) {
		c.Aspect = aspect
	}
}

// WithClipPlanes sets the near and far clipping plane distances of a perspective camera.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - PerspectiveOption: a function that sets both planes
func WithClipPlanes(near, far float32) PerspectiveOption {
	return func(c *PerspectiveCamera) {
		c.ZNear = near
		c.ZFar = far
	}
}

// WithName sets the camera name.
//
// Parameters:
//   - name: the camera name
//
// Returns:
//   - PerspectiveOption: a function that sets the name
func WithName(name string) PerspectiveOption {
	return func(c *PerspectiveCamera) {
		c.Name = name
	}
}

// WithOrthoClipPlanes sets the near and far clipping plane distances of an orthographic camera.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - OrthographicOption: a function that sets both planes
func WithOrthoClipPlanes(near, far float32) OrthographicOption {
	return func(c *OrthographicCamera) {
		c.ZNear = near
		c.ZFar = far
	}
}

// WithOrthoName sets the camera name.
func WithOrthoName(name string) OrthographicOption {
	return func(c *OrthographicCamera) {
		c.Name = name
	}
}
