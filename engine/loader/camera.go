package loader

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/camera"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"

	"github.com/chewxy/math32"
)

const (
	defaultZNear = 1
	defaultZFar  = 2e6
)

// loadCamera builds a camera. A definition without parameters for its type resolves to nil.
func (p *Parser) loadCamera(index int) (camera.Camera, error) {
	def, err := definition(p.doc.Cameras, KindCamera, index)
	if err != nil {
		return nil, err
	}

	var cam camera.Camera
	switch {
	case def.Type == gltf.CameraPerspective && def.Perspective != nil:
		params := def.Perspective
		aspect := float32(1)
		if params.AspectRatio != nil && *params.AspectRatio != 0 {
			aspect = *params.AspectRatio
		}
		far := float32(defaultZFar)
		if params.Zfar != nil && *params.Zfar != 0 {
			far = *params.Zfar
		}
		cam = camera.NewPerspectiveCamera(
			camera.WithFov(params.Yfov*180/math32.Pi),
			camera.WithAspect(aspect),
			camera.WithClipPlanes(common.Coalesce(params.Znear, defaultZNear), far),
		)
	case def.Type == gltf.CameraOrthographic && def.Orthographic != nil:
		params := def.Orthographic
		cam = camera.NewOrthographicCamera(-params.Xmag, params.Xmag, params.Ymag, -params.Ymag,
			camera.WithOrthoClipPlanes(params.Znear, params.Zfar))
	default:
		common.LogWarn("missing camera parameters for camera %d", index)
		return nil, nil
	}

	base := cam.Base()
	if def.Name != "" {
		base.Name = p.uniqueName(nameSlot{kind: KindCamera, index: index}, def.Name)
	}
	assignExtras(base.UserData, def.Extras)
	return cam, nil
}
