package exporter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// processMaterial exports a material, reusing the index of a material exported earlier.
//
// Parameters:
//   - m: the material to export
//
// Returns:
//   - int: the material index
//   - error: error if a texture image cannot be encoded
func (w *writer) processMaterial(m *model.Material) (int, error) {
	if idx, ok := w.materials[m]; ok {
		return idx, nil
	}

	def := gltf.Material{
		Name:       m.Name,
		Extras:     encodeExtras(m.UserData),
		Extensions: w.encodeExtensions(m.UserData),
	}

	pbr := &gltf.PbrMetallicRoughness{
		BaseColorFactor: &[4]float32{m.Color[0], m.Color[1], m.Color[2], m.Opacity},
		MetallicFactor:  common.Ptr(m.Metalness),
		RoughnessFactor: common.Ptr(m.Roughness),
	}
	var err error
	if pbr.BaseColorTexture, err = w.textureInfo(m.Map); err != nil {
		return -1, err
	}
	if pbr.MetallicRoughnessTexture, err = w.textureInfo(common.Coalesce(m.MetalnessMap, m.RoughnessMap)); err != nil {
		return -1, err
	}
	def.PbrMetallicRoughness = pbr

	switch {
	case m.Transparent:
		def.AlphaMode = gltf.AlphaBlend
	case m.AlphaTest > 0:
		def.AlphaMode = gltf.AlphaMask
		def.AlphaCutoff = common.Ptr(m.AlphaTest)
	}
	def.DoubleSided = m.Side == model.DoubleSide

	if m.Kind == model.MaterialBasic {
		pbr.MetallicFactor = common.Ptr(float32(0))
		pbr.RoughnessFactor = common.Ptr(float32(0.9))
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsUnlit, struct{}{}); err != nil {
			return -1, err
		}
	} else if err := w.surfaceProperties(m, &def); err != nil {
		return -1, err
	}

	w.doc.Materials = append(w.doc.Materials, def)
	idx := len(w.doc.Materials) - 1
	w.materials[m] = idx
	return idx, nil
}

// surfaceProperties writes the lit-only parameters: normal, occlusion, emission and the
// physical extensions.
func (w *writer) surfaceProperties(m *model.Material, def *gltf.Material) error {
	info, err := w.textureInfo(m.NormalMap)
	if err != nil {
		return err
	}
	if info != nil {
		def.NormalTexture = &gltf.NormalTextureInfo{TextureInfo: *info}
		if m.NormalScale[0] != 1 {
			def.NormalTexture.Scale = common.Ptr(m.NormalScale[0])
		}
	}

	if info, err = w.textureInfo(m.AOMap); err != nil {
		return err
	}
	if info != nil {
		def.OcclusionTexture = &gltf.OcclusionTextureInfo{TextureInfo: *info}
		if m.AOMapIntensity != 1 {
			def.OcclusionTexture.Strength = common.Ptr(m.AOMapIntensity)
		}
	}

	if m.Emissive != ([3]float32{}) {
		def.EmissiveFactor = common.Ptr(m.Emissive)
	}
	if def.EmissiveTexture, err = w.textureInfo(m.EmissiveMap); err != nil {
		return err
	}
	if m.EmissiveIntensity != 1 && (def.EmissiveFactor != nil || def.EmissiveTexture != nil) {
		ext := gltf.MaterialsEmissiveStrength{EmissiveStrength: common.Ptr(m.EmissiveIntensity)}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsEmissiveStrength, ext); err != nil {
			return err
		}
	}

	if m.Kind != model.MaterialPhysical {
		return nil
	}
	return w.physicalProperties(m, def)
}

func (w *writer) physicalProperties(m *model.Material, def *gltf.Material) error {
	var err error
	if m.Clearcoat > 0 {
		ext := gltf.MaterialsClearcoat{
			ClearcoatFactor:          common.Ptr(m.Clearcoat),
			ClearcoatRoughnessFactor: common.Ptr(m.ClearcoatRoughness),
		}
		if ext.ClearcoatTexture, err = w.textureInfo(m.ClearcoatMap); err != nil {
			return err
		}
		if ext.ClearcoatRoughnessTexture, err = w.textureInfo(m.ClearcoatRoughnessMap); err != nil {
			return err
		}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsClearcoat, ext); err != nil {
			return err
		}
	}

	if m.Sheen > 0 {
		ext := gltf.MaterialsSheen{
			SheenColorFactor:     common.Ptr(m.SheenColor),
			SheenRoughnessFactor: common.Ptr(m.SheenRoughness),
		}
		if ext.SheenColorTexture, err = w.textureInfo(m.SheenColorMap); err != nil {
			return err
		}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsSheen, ext); err != nil {
			return err
		}
	}

	if m.Transmission > 0 {
		ext := gltf.MaterialsTransmission{TransmissionFactor: common.Ptr(m.Transmission)}
		if ext.TransmissionTexture, err = w.textureInfo(m.TransmissionMap); err != nil {
			return err
		}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsTransmission, ext); err != nil {
			return err
		}
	}

	if m.IOR != 1.5 {
		ext := gltf.MaterialsIOR{IOR: common.Ptr(m.IOR)}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsIOR, ext); err != nil {
			return err
		}
	}

	if m.SpecularIntensity != 1 || m.SpecularColor != [3]float32{1, 1, 1} {
		ext := gltf.MaterialsSpecular{
			SpecularFactor:      common.Ptr(m.SpecularIntensity),
			SpecularColorFactor: common.Ptr(m.SpecularColor),
		}
		if def.Extensions, err = w.addExtension(def.Extensions, gltf.ExtMaterialsSpecular, ext); err != nil {
			return err
		}
	}
	return nil
}

// textureInfo exports t and returns a reference to it. A nil texture, a texture without pixels
// or disabled image embedding yields nil.
func (w *writer) textureInfo(t *model.Texture) (*gltf.TextureInfo, error) {
	if t == nil || t.Image == nil || !w.opts.EmbedImages {
		return nil, nil
	}
	idx, err := w.processTexture(t)
	if err != nil {
		return nil, err
	}
	info := &gltf.TextureInfo{Index: idx, TexCoord: t.Channel}

	if t.Offset != ([2]float32{}) || t.Repeat != ([2]float32{1, 1}) || t.Rotation != 0 {
		transform := gltf.TextureTransform{
			Offset:   common.Ptr(t.Offset),
			Rotation: common.Ptr(t.Rotation),
			Scale:    common.Ptr(t.Repeat),
		}
		if info.Extensions, err = w.addExtension(nil, gltf.ExtTextureTransform, transform); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (w *writer) processTexture(t *model.Texture) (int, error) {
	key := textureKey{image: t.Image, sampler: t.Sampler}
	if idx, ok := w.textures[key]; ok {
		return idx, nil
	}

	source, err := w.processImage(t.Image, t.Name)
	if err != nil {
		return -1, err
	}
	def := gltf.Texture{
		Name:    t.Name,
		Source:  common.Ptr(source),
		Sampler: common.Ptr(w.processSampler(t.Sampler)),
		Extras:  encodeExtras(t.UserData),
	}
	w.doc.Textures = append(w.doc.Textures, def)
	idx := len(w.doc.Textures) - 1
	w.textures[key] = idx
	return idx, nil
}

// processImage encodes pixels as PNG. Identical pixel data is stored once.
//
// Parameters:
//   - img: the decoded RGBA pixels
//   - name: the image name
//
// Returns:
//   - int: the image index
//   - error: error if the PNG encoding fails
func (w *writer) processImage(img *common.ImageData, name string) (int, error) {
	hash := common.HashKey(img.Width, img.Height, string(img.Pixels))
	if idx, ok := w.images[hash]; ok {
		return idx, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToImage()); err != nil {
		return -1, fmt.Errorf("failed to encode image %q: %w", name, err)
	}

	def := gltf.Image{Name: name, MimeType: "image/png"}
	if w.opts.Binary {
		def.BufferView = common.Ptr(w.writeBufferView(buf.Bytes(), nil))
	} else {
		def.URI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	w.doc.Images = append(w.doc.Images, def)
	idx := len(w.doc.Images) - 1
	w.images[hash] = idx
	return idx, nil
}

func (w *writer) processSampler(s common.SamplerState) int {
	if idx, ok := w.samplers[s]; ok {
		return idx
	}
	w.doc.Samplers = append(w.doc.Samplers, gltf.Sampler{
		MagFilter: common.Ptr(int(s.MagFilter)),
		MinFilter: common.Ptr(int(s.MinFilter)),
		WrapS:     common.Ptr(int(s.WrapS)),
		WrapT:     common.Ptr(int(s.WrapT)),
	})
	idx := len(w.doc.Samplers) - 1
	w.samplers[s] = idx
	return idx
}
