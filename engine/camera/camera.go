package camera

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a scene object with a projection.
type Camera interface {
	scene.Object

	// ProjectionMatrix returns the 4x4 projection matrix (column-major).
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32
}

// PerspectiveCamera projects with a vertical field of view.
type PerspectiveCamera struct {
	scene.Node

	// Fov is the vertical field of view in degrees.
	Fov float32

	// Aspect is width / height.
	Aspect float32

	// ZNear is the near clipping plane distance.
	ZNear float32

	// ZFar is the far clipping plane distance.
	ZFar float32
}

var _ Camera = &PerspectiveCamera{}

// NewPerspectiveCamera creates a perspective camera.
// Defaults are a 50 degree field of view, aspect 1, near 0.1 and far 2000.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - *PerspectiveCamera: the camera
func NewPerspectiveCamera(options ...PerspectiveOption) *PerspectiveCamera {
	c := &PerspectiveCamera{Fov: 50, Aspect: 1, ZNear: 0.1, ZFar: 2000}
	c.Init(c)
	for _, option := range options {
		option(c)
	}
	return c
}

// Clone copies the camera.
func (c *PerspectiveCamera) Clone(recursive bool) scene.Object {
	out := &PerspectiveCamera{Fov: c.Fov, Aspect: c.Aspect, ZNear: c.ZNear, ZFar: c.ZFar}
	out.Init(out)
	out.CopyFrom(&c.Node, recursive)
	return out
}

func (c *PerspectiveCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), c.Aspect, c.ZNear, c.ZFar)
}

func (c *PerspectiveCamera) Near() float32 {
	return c.ZNear
}

func (c *PerspectiveCamera) Far() float32 {
	return c.ZFar
}

// YFov returns the vertical field of view in radians.
func (c *PerspectiveCamera) YFov() float32 {
	return mgl32.DegToRad(c.Fov)
}

// OrthographicCamera projects without perspective onto the box [Left, Right] x [Bottom, Top].
type OrthographicCamera struct {
	scene.Node

	Left, Right, Top, Bottom float32

	// ZNear is the near clipping plane distance.
	ZNear float32

	// ZFar is the far clipping plane distance.
	ZFar float32
}

var _ Camera = &OrthographicCamera{}

// NewOrthographicCamera creates an orthographic camera over the given frustum.
//
// Parameters:
//   - left, right, top, bottom: the frustum planes
//   - options: functional options to configure the camera
//
// Returns:
//   - *OrthographicCamera: the camera
func NewOrthographicCamera(left, right, top, bottom float32, options ...OrthographicOption) *OrthographicCamera {
	c := &OrthographicCamera{Left: left, Right: right, Top: top, Bottom: bottom, ZNear: 0.1, ZFar: 2000}
	c.Init(c)
	for _, option := range options {
		option(c)
	}
	return c
}

// Clone copies the camera.
func (c *OrthographicCamera) Clone(recursive bool) scene.Object {
	out := &OrthographicCamera{Left: c.Left, Right: c.Right, Top: c.Top, Bottom: c.Bottom, ZNear: c.ZNear, ZFar: c.ZFar}
	out.Init(out)
	out.CopyFrom(&c.Node, recursive)
	return out
}

func (c *OrthographicCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.ZNear, c.ZFar)
}

func (c *OrthographicCamera) Near() float32 {
	return c.ZNear
}

func (c *OrthographicCamera) Far() float32 {
	return c.ZFar
}

// XMag returns half the horizontal extent of the frustum.
func (c *OrthographicCamera) XMag() float32 {
	return (c.Right - c.Left) / 2
}

// YMag returns half the vertical extent of the frustum.
func (c *OrthographicCamera) YMag() float32 {
	return (c.Top - c.Bottom) / 2
}
