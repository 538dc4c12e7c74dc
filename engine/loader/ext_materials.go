package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// materialExtension decodes the named extension of a material. A malformed payload is logged and treated as absent.
func materialExtension[T any](p *Parser, index int, name string) (*T, bool) {
	if index < 0 || index >= len(p.doc.Materials) {
		return nil, false
	}
	var ext T
	found, err := gltf.DecodeExtension(p.doc.Materials[index].Extensions, name, &ext)
	if err != nil {
		common.LogWarn("material %d: %v", index, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &ext, true
}

// physicalMaterialType selects MaterialPhysical for materials carrying name.
func physicalMaterialType(p *Parser, index int, name string) (model.MaterialKind, bool) {
	if index < 0 || index >= len(p.doc.Materials) {
		return 0, false
	}
	if _, ok := p.doc.Materials[index].Extensions[name]; !ok {
		return 0, false
	}
	return model.MaterialPhysical, true
}

// join settles once every pending assignment has settled.
func join(ctx context.Context, pending ...*future.Future[struct{}]) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		_, err := future.WaitAll(ctx, pending...)
		return struct{}{}, err
	})
}

// --- KHR_materials_unlit ---

type materialsUnlitExtension struct {
	parser *Parser
}

var _ Extension = &materialsUnlitExtension{}

func (e *materialsUnlitExtension) Name() string {
	return gltf.ExtMaterialsUnlit
}

// MaterialType is always MaterialBasic.
func (e *materialsUnlitExtension) MaterialType() model.MaterialKind {
	return model.MaterialBasic
}

// extendParams reads base color and its texture from the metallic-roughness block.
func (e *materialsUnlitExtension) extendParams(ctx context.Context, def *gltf.Material, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	builder.Update(func(mp *model.MaterialParams) {
		mp.Color = [3]float32{1, 1, 1}
		mp.Opacity = 1
	})
	pbr := def.PbrMetallicRoughness
	if pbr == nil {
		return future.Resolved(struct{}{})
	}
	if f := pbr.BaseColorFactor; f != nil {
		builder.Update(func(mp *model.MaterialParams) {
			mp.Color = [3]float32{f[0], f[1], f[2]}
			mp.Opacity = f[3]
		})
	}
	return e.parser.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.Map = t }, pbr.BaseColorTexture, model.ColorSpaceSRGB)
}

// --- KHR_materials_clearcoat ---

type materialsClearcoatExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsClearcoatExtension{}

func newMaterialsClearcoatExtension(p *Parser) Extension {
	return &materialsClearcoatExtension{parser: p}
}

func (e *materialsClearcoatExtension) Name() string {
	return gltf.ExtMaterialsClearcoat
}

func (e *materialsClearcoatExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsClearcoatExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsClearcoat](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		if ext.ClearcoatFactor != nil {
			mp.Clearcoat = *ext.ClearcoatFactor
		}
		if ext.ClearcoatRoughnessFactor != nil {
			mp.ClearcoatRoughness = *ext.ClearcoatRoughnessFactor
		}
		if n := ext.ClearcoatNormalTexture; n != nil && n.Scale != nil {
			mp.ClearcoatNormalScale = [2]float32{*n.Scale, *n.Scale}
		}
	})

	p := e.parser
	pending := []*future.Future[struct{}]{
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.ClearcoatMap = t }, ext.ClearcoatTexture, model.ColorSpaceNone),
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.ClearcoatRoughnessMap = t }, ext.ClearcoatRoughnessTexture, model.ColorSpaceNone),
	}
	if n := ext.ClearcoatNormalTexture; n != nil {
		pending = append(pending, p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.ClearcoatNormalMap = t }, &n.TextureInfo, model.ColorSpaceNone))
	}
	return join(ctx, pending...)
}

// --- KHR_materials_sheen ---

type materialsSheenExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsSheenExtension{}

func newMaterialsSheenExtension(p *Parser) Extension {
	return &materialsSheenExtension{parser: p}
}

func (e *materialsSheenExtension) Name() string {
	return gltf.ExtMaterialsSheen
}

func (e *materialsSheenExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsSheenExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsSheen](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		mp.SheenColor = [3]float32{}
		mp.SheenRoughness = 0
		mp.Sheen = 1
		if ext.SheenColorFactor != nil {
			mp.SheenColor = *ext.SheenColorFactor
		}
		if ext.SheenRoughnessFactor != nil {
			mp.SheenRoughness = *ext.SheenRoughnessFactor
		}
	})

	p := e.parser
	return join(ctx,
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.SheenColorMap = t }, ext.SheenColorTexture, model.ColorSpaceSRGB),
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.SheenRoughnessMap = t }, ext.SheenRoughnessTexture, model.ColorSpaceNone),
	)
}

// --- KHR_materials_transmission ---

type materialsTransmissionExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsTransmissionExtension{}

func newMaterialsTransmissionExtension(p *Parser) Extension {
	return &materialsTransmissionExtension{parser: p}
}

func (e *materialsTransmissionExtension) Name() string {
	return gltf.ExtMaterialsTransmission
}

func (e *materialsTransmissionExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsTransmissionExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsTransmission](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	if ext.TransmissionFactor != nil {
		builder.Update(func(mp *model.MaterialParams) { mp.Transmission = *ext.TransmissionFactor })
	}
	return e.parser.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.TransmissionMap = t }, ext.TransmissionTexture, model.ColorSpaceNone)
}

// --- KHR_materials_volume ---

type materialsVolumeExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsVolumeExtension{}

func newMaterialsVolumeExtension(p *Parser) Extension {
	return &materialsVolumeExtension{parser: p}
}

func (e *materialsVolumeExtension) Name() string {
	return gltf.ExtMaterialsVolume
}

func (e *materialsVolumeExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsVolumeExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsVolume](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		defaults := model.DefaultMaterialParams()
		mp.Thickness = 0
		mp.AttenuationDistance = defaults.AttenuationDistance
		mp.AttenuationColor = defaults.AttenuationColor
		if ext.ThicknessFactor != nil {
			mp.Thickness = *ext.ThicknessFactor
		}
		if ext.AttenuationDistance != nil {
			mp.AttenuationDistance = *ext.AttenuationDistance
		}
		if ext.AttenuationColor != nil {
			mp.AttenuationColor = *ext.AttenuationColor
		}
	})
	return e.parser.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.ThicknessMap = t }, ext.ThicknessTexture, model.ColorSpaceNone)
}

// --- KHR_materials_ior ---

type materialsIORExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsIORExtension{}

func newMaterialsIORExtension(p *Parser) Extension {
	return &materialsIORExtension{parser: p}
}

func (e *materialsIORExtension) Name() string {
	return gltf.ExtMaterialsIOR
}

func (e *materialsIORExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsIORExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsIOR](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		mp.IOR = 1.5
		if ext.IOR != nil {
			mp.IOR = *ext.IOR
		}
	})
	return future.Resolved(struct{}{})
}

// --- KHR_materials_emissive_strength ---

type materialsEmissiveStrengthExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsEmissiveStrengthExtension{}

func newMaterialsEmissiveStrengthExtension(p *Parser) Extension {
	return &materialsEmissiveStrengthExtension{parser: p}
}

func (e *materialsEmissiveStrengthExtension) Name() string {
	return gltf.ExtMaterialsEmissiveStrength
}

func (e *materialsEmissiveStrengthExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsEmissiveStrength](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	if ext.EmissiveStrength != nil {
		builder.Update(func(mp *model.MaterialParams) { mp.EmissiveIntensity = *ext.EmissiveStrength })
	}
	return future.Resolved(struct{}{})
}

// --- KHR_materials_specular ---

type materialsSpecularExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsSpecularExtension{}

func newMaterialsSpecularExtension(p *Parser) Extension {
	return &materialsSpecularExtension{parser: p}
}

func (e *materialsSpecularExtension) Name() string {
	return gltf.ExtMaterialsSpecular
}

func (e *materialsSpecularExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsSpecularExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsSpecular](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		mp.SpecularIntensity = 1
		mp.SpecularColor = [3]float32{1, 1, 1}
		if ext.SpecularFactor != nil {
			mp.SpecularIntensity = *ext.SpecularFactor
		}
		if ext.SpecularColorFactor != nil {
			mp.SpecularColor = *ext.SpecularColorFactor
		}
	})

	p := e.parser
	return join(ctx,
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.SpecularIntensityMap = t }, ext.SpecularTexture, model.ColorSpaceNone),
		p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.SpecularColorMap = t }, ext.SpecularColorTexture, model.ColorSpaceSRGB),
	)
}

// --- KHR_materials_anisotropy ---

type materialsAnisotropyExtension struct {
	parser *Parser
}

var _ MaterialParamsExtender = &materialsAnisotropyExtension{}

func newMaterialsAnisotropyExtension(p *Parser) Extension {
	return &materialsAnisotropyExtension{parser: p}
}

func (e *materialsAnisotropyExtension) Name() string {
	return gltf.ExtMaterialsAnisotropy
}

func (e *materialsAnisotropyExtension) MaterialType(index int) (model.MaterialKind, bool) {
	return physicalMaterialType(e.parser, index, e.Name())
}

func (e *materialsAnisotropyExtension) ExtendMaterialParams(ctx context.Context, index int, builder *MaterialParamsBuilder) *future.Future[struct{}] {
	ext, ok := materialExtension[gltf.MaterialsAnisotropy](e.parser, index, e.Name())
	if !ok {
		return nil
	}
	builder.Update(func(mp *model.MaterialParams) {
		if ext.AnisotropyStrength != nil {
			mp.Anisotropy = *ext.AnisotropyStrength
		}
		if ext.AnisotropyRotation != nil {
			mp.AnisotropyRotation = *ext.AnisotropyRotation
		}
	})
	return e.parser.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.AnisotropyMap = t }, ext.AnisotropyTexture, model.ColorSpaceNone)
}
