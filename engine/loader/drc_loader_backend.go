package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// dracoLoaderBackend decodes standalone .drc files into a scene holding one mesh.
// Point clouds become point meshes.
type dracoLoaderBackend struct {
	loader *loader
}

var _ loaderBackend = &dracoLoaderBackend{}

func newDracoLoaderBackend(l *loader) loaderBackend {
	return &dracoLoaderBackend{loader: l}
}

func (b *dracoLoaderBackend) Parse(ctx context.Context, data []byte, path string) (*GLTF, error) {
	if b.loader.dracoSched == nil {
		return nil, fmt.Errorf("%w: no Draco scheduler configured", ErrMissingRequiredCapability)
	}

	geometry, err := b.loader.dracoSched.DecodeFile(ctx, data).Await(ctx)
	if err != nil {
		return nil, err
	}
	if geometry.BoundingSphere == nil {
		geometry.ComputeBoundingSphere()
	}

	var obj scene.Object
	if geometry.Index == nil {
		obj = scene.NewMesh(geometry, model.NewMaterial(model.MaterialPoints, model.DefaultMaterialParams()), model.DrawPoints)
	} else {
		obj = scene.NewMesh(geometry, model.NewMaterial(model.MaterialStandard, model.DefaultMaterialParams()), model.DrawTriangles)
	}

	s := scene.NewScene(scene.WithObjects(obj))
	return &GLTF{
		Scene:    s,
		Scenes:   []*scene.Scene{s},
		Asset:    gltf.Asset{Version: "2.0"},
		UserData: make(map[string]any),
	}, nil
}
