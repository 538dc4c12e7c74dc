package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// textureSourceExtension decodes a texture-level source extension. ok is false when the texture does not carry it.
func textureSourceExtension(p *Parser, index int, name string) (source int, ok bool) {
	if index < 0 || index >= len(p.doc.Textures) {
		return 0, false
	}
	var ext gltf.TextureSource
	found, err := gltf.DecodeExtension(p.doc.Textures[index].Extensions, name, &ext)
	if err != nil {
		common.LogWarn("texture %d: %v", index, err)
		return 0, false
	}
	return ext.Source, found
}

// --- KHR_texture_basisu ---

type textureBasisuExtension struct {
	parser *Parser
}

var _ TextureLoader = &textureBasisuExtension{}

func newTextureBasisuExtension(p *Parser) Extension {
	return &textureBasisuExtension{parser: p}
}

func (e *textureBasisuExtension) Name() string {
	return gltf.ExtTextureBasisu
}

// LoadTexture transcodes the KTX2 source. Without a decoder it defers to the texture's core
// source, unless the asset requires the extension.
func (e *textureBasisuExtension) LoadTexture(ctx context.Context, index int) *future.Future[*model.Texture] {
	p := e.parser
	source, ok := textureSourceExtension(p, index, e.Name())
	if !ok {
		return nil
	}
	if p.ktx2 == nil {
		if p.doc.ExtensionRequired(e.Name()) {
			return future.Rejected[*model.Texture](fmt.Errorf("%w: a KTX2 decoder must be configured to load %s textures", ErrMissingRequiredCapability, e.Name()))
		}
		return nil
	}
	return p.loadTextureImage(ctx, index, source, func(ctx context.Context, data []byte, _ string) *future.Future[*common.ImageData] {
		return p.ktx2.DecodeKTX2(ctx, data)
	})
}

// --- EXT_texture_webp ---

type textureWebPExtension struct {
	parser *Parser
}

var _ TextureLoader = &textureWebPExtension{}

func newTextureWebPExtension(p *Parser) Extension {
	return &textureWebPExtension{parser: p}
}

func (e *textureWebPExtension) Name() string {
	return gltf.ExtTextureWebP
}

// LoadTexture decodes the WebP source when the image source supports it, and otherwise
// defers to the texture's core source.
func (e *textureWebPExtension) LoadTexture(ctx context.Context, index int) *future.Future[*model.Texture] {
	p := e.parser
	source, ok := textureSourceExtension(p, index, e.Name())
	if !ok {
		return nil
	}
	if !p.images().Supports("image/webp") {
		if p.doc.ExtensionRequired(e.Name()) {
			return future.Rejected[*model.Texture](fmt.Errorf("%w: WebP required by asset but unsupported", ErrMissingRequiredCapability))
		}
		return nil
	}
	return p.loadTextureImage(ctx, index, source, p.images().Decode)
}

// --- KHR_texture_transform ---

type textureTransformExtension struct{}

var _ Extension = &textureTransformExtension{}

func (e *textureTransformExtension) Name() string {
	return gltf.ExtTextureTransform
}

// extendTexture returns tex with the uv transform applied, cloning when anything changes.
func (e *textureTransformExtension) extendTexture(p *Parser, tex *model.Texture, transform gltf.TextureTransform) *model.Texture {
	if (transform.TexCoord == nil || *transform.TexCoord == tex.Channel) &&
		transform.Offset == nil && transform.Rotation == nil && transform.Scale == nil {
		return tex
	}

	tex = p.cloneTexture(tex)
	if transform.TexCoord != nil {
		tex.Channel = *transform.TexCoord
	}
	if transform.Offset != nil {
		tex.Offset = *transform.Offset
	}
	if transform.Rotation != nil {
		tex.Rotation = *transform.Rotation
	}
	if transform.Scale != nil {
		tex.Repeat = *transform.Scale
	}
	return tex
}
