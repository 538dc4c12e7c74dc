package loader

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct {
	loader *loader
}

// gltfLoaderBackend is a loaderBackend implementation for glTF JSON and GLB files.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - l: the loader whose sources, decoders and plugins each parse uses
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(l *loader) gltfLoaderBackend {
	return &gltfLoaderBackendImpl{loader: l}
}

func (b *gltfLoaderBackendImpl) Parse(ctx context.Context, data []byte, path string) (*GLTF, error) {
	stop := b.loader.prof.Start(profiler.PhaseParse)
	doc, body, err := decodeDocument(data)
	stop()
	if err != nil {
		return nil, err
	}
	if err := checkAssetVersion(doc.Asset); err != nil {
		return nil, err
	}

	options := append(b.loader.parserOptions(), WithBody(body), WithPath(path))
	return NewParser(doc, options...).Parse(ctx)
}

// decodeDocument splits data into the glTF document and, for GLB input, the BIN chunk.
func decodeDocument(data []byte) (*gltf.Document, []byte, error) {
	content := data
	var body []byte
	if gltf.IsBinaryContainer(data) {
		container, err := gltf.ParseBinaryContainer(data)
		if err != nil {
			return nil, nil, err
		}
		content = []byte(container.Content)
		body = container.Body
	}
	doc, err := gltf.ParseDocument(bytes.TrimPrefix(content, utf8BOM))
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

// checkAssetVersion rejects assets without a version or with a major version below 2.
func checkAssetVersion(asset gltf.Asset) error {
	if asset.Version == "" {
		return fmt.Errorf("%w: missing asset.version", ErrUnsupportedAssetVersion)
	}
	major, err := strconv.Atoi(strings.SplitN(asset.Version, ".", 2)[0])
	if err != nil || major < 2 {
		return fmt.Errorf("%w: got %q", ErrUnsupportedAssetVersion, asset.Version)
	}
	return nil
}
