package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// imageDecodeFunc turns encoded image bytes into pixels.
type imageDecodeFunc func(ctx context.Context, data []byte, mimeType string) *future.Future[*common.ImageData]

// LoadTexture resolves a texture through its core source image.
//
// Parameters:
//   - ctx: bounds the image fetch and decode
//   - index: the texture index
//
// Returns:
//   - *future.Future[*model.Texture]: the texture, nil when its image could not be loaded
func (p *Parser) LoadTexture(ctx context.Context, index int) *future.Future[*model.Texture] {
	def, err := definition(p.doc.Textures, KindTexture, index)
	if err != nil {
		return future.Rejected[*model.Texture](err)
	}
	if def.Source == nil {
		return future.Rejected[*model.Texture](fmt.Errorf("loader: texture %d has no source", index))
	}
	return p.loadTextureImage(ctx, index, *def.Source, p.images().Decode)
}

// loadTextureImage builds the texture for one (image, sampler) pair. Textures sharing both
// share one result.
func (p *Parser) loadTextureImage(ctx context.Context, textureIndex, sourceIndex int, decode imageDecodeFunc) *future.Future[*model.Texture] {
	texDef := &p.doc.Textures[textureIndex]
	srcDef, err := definition(p.doc.Images, "image", sourceIndex)
	if err != nil {
		return future.Rejected[*model.Texture](err)
	}

	sampler := -1
	if texDef.Sampler != nil {
		sampler = *texDef.Sampler
	}
	key := common.HashKey(sourceIndex, sampler)

	p.mu.Lock()
	if f, ok := p.textureCache[key]; ok {
		p.mu.Unlock()
		return f
	}
	p.mu.Unlock()

	f := future.Then(ctx, p.loadImageSource(ctx, sourceIndex, decode), func(tex *model.Texture) (*model.Texture, error) {
		if tex == nil {
			return nil, nil
		}
		tex.FlipY = false
		tex.Name = common.Coalesce(texDef.Name, srcDef.Name)
		if tex.Name == "" && srcDef.URI != "" && !isDataImageURI(srcDef.URI) {
			tex.Name = srcDef.URI
		}

		tex.Sampler = common.DefaultSampler()
		if sampler >= 0 && sampler < len(p.doc.Samplers) {
			s := p.doc.Samplers[sampler]
			if s.MagFilter != nil {
				tex.Sampler.MagFilter = common.FilterMode(*s.MagFilter)
			}
			if s.MinFilter != nil {
				tex.Sampler.MinFilter = common.FilterMode(*s.MinFilter)
			}
			if s.WrapS != nil {
				tex.Sampler.WrapS = common.WrapMode(*s.WrapS)
			}
			if s.WrapT != nil {
				tex.Sampler.WrapT = common.WrapMode(*s.WrapT)
			}
		}

		p.associate(tex, Association{Textures: common.Ptr(textureIndex)})
		return tex, nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.textureCache[key]; ok {
		return existing
	}
	p.textureCache[key] = f
	return f
}

// loadImageSource decodes an image once. Every request gets its own clone sharing the pixels, so
// the cached source is never written after it resolves. Failures are logged and resolve to nil so
// a broken image never fails the parse.
func (p *Parser) loadImageSource(ctx context.Context, sourceIndex int, decode imageDecodeFunc) *future.Future[*model.Texture] {
	p.mu.Lock()
	source, ok := p.sourceCache[sourceIndex]
	if !ok {
		promise := future.NewPromise[*model.Texture]()
		source = promise.Future()
		p.sourceCache[sourceIndex] = source

		srcDef := &p.doc.Images[sourceIndex]
		go func() {
			tex, err := p.decodeImageSource(ctx, srcDef, decode)
			if err != nil {
				if ctx.Err() != nil {
					promise.Reject(ctx.Err())
					return
				}
				common.LogError("couldn't load texture %s: %v", common.Coalesce(srcDef.URI, srcDef.Name, fmt.Sprintf("image %d", sourceIndex)), err)
				promise.Resolve(nil)
				return
			}
			promise.Resolve(tex)
		}()
	}
	p.mu.Unlock()

	return future.Then(ctx, source, func(tex *model.Texture) (*model.Texture, error) {
		if tex == nil {
			return nil, nil
		}
		return tex.Clone(), nil
	})
}

func (p *Parser) decodeImageSource(ctx context.Context, srcDef *gltf.Image, decode imageDecodeFunc) (*model.Texture, error) {
	data, mimeType, err := p.imageBytes(ctx, srcDef)
	if err != nil {
		return nil, err
	}
	img, err := decode(ctx, data, mimeType).Await(ctx)
	if err != nil {
		return nil, err
	}

	tex := model.NewTexture(img)
	assignExtras(tex.UserData, srcDef.Extras)
	if mime := common.Coalesce(srcDef.MimeType, mimeType); mime != "" {
		tex.UserData["mimeType"] = mime
	}
	return tex, nil
}

// imageBytes returns the encoded bytes of an image and its declared mime type.
func (p *Parser) imageBytes(ctx context.Context, srcDef *gltf.Image) ([]byte, string, error) {
	switch {
	case srcDef.BufferView != nil:
		data, err := dependency[[]byte](ctx, p, KindBufferView, *srcDef.BufferView).Await(ctx)
		return data, srcDef.MimeType, err
	case srcDef.URI != "" && dataURIPattern.MatchString(srcDef.URI):
		data, mimeType, err := decodeDataURI(srcDef.URI)
		return data, common.Coalesce(srcDef.MimeType, mimeType), err
	case srcDef.URI != "":
		data, err := p.byteSource.Fetch(ctx, resolveURL(srcDef.URI, p.path)).Await(ctx)
		return data, srcDef.MimeType, err
	}
	return nil, "", ErrMissingImageSource
}

// AssignTexture resolves the texture referenced by info and passes it to set. A texture that
// failed to load is skipped. When the reference needs a different uv channel, uv transform or
// color space than the shared texture, set receives a clone.
//
// Parameters:
//   - ctx: bounds the texture load
//   - params: the material parameters receiving the texture
//   - set: stores the texture into its slot
//   - info: the texture reference, may be nil
//   - colorSpace: model.ColorSpaceSRGB for color textures, model.ColorSpaceNone otherwise
//
// Returns:
//   - *future.Future[struct{}]: settles once the slot is written
func (p *Parser) AssignTexture(ctx context.Context, params *MaterialParamsBuilder, set func(*model.MaterialParams, *model.Texture), info *gltf.TextureInfo, colorSpace string) *future.Future[struct{}] {
	if info == nil {
		return future.Resolved(struct{}{})
	}
	return future.Then(ctx, dependency[*model.Texture](ctx, p, KindTexture, info.Index), func(tex *model.Texture) (struct{}, error) {
		if tex == nil {
			return struct{}{}, nil
		}

		if info.TexCoord > 0 {
			tex = p.cloneTexture(tex)
			tex.Channel = info.TexCoord
		}

		if ext, ok := p.extensions[gltf.ExtTextureTransform].(*textureTransformExtension); ok {
			var transform gltf.TextureTransform
			found, err := gltf.DecodeExtension(info.Extensions, gltf.ExtTextureTransform, &transform)
			if err != nil {
				common.LogWarn("%v", err)
			} else if found {
				tex = ext.extendTexture(p, tex, transform)
			}
		}

		if tex.ColorSpace != colorSpace {
			tex = p.cloneTexture(tex)
			tex.ColorSpace = colorSpace
		}

		params.Update(func(mp *model.MaterialParams) {
			set(mp, tex)
		})
		return struct{}{}, nil
	})
}

// cloneTexture clones tex and carries over its association.
func (p *Parser) cloneTexture(tex *model.Texture) *model.Texture {
	c := tex.Clone()
	p.shareAssociation(tex, c)
	return c
}
