package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// LoadMaterial builds a material from its metallic-roughness definition and every registered
// material extension.
//
// Parameters:
//   - ctx: bounds the texture loads
//   - index: the material index
//
// Returns:
//   - *future.Future[*model.Material]: the material
func (p *Parser) LoadMaterial(ctx context.Context, index int) *future.Future[*model.Material] {
	def, err := definition(p.doc.Materials, KindMaterial, index)
	if err != nil {
		return future.Rejected[*model.Material](err)
	}
	return future.Go(func() (*model.Material, error) {
		return p.loadMaterial(ctx, index, def)
	})
}

// MaterialType selects MaterialStandard. Extensions needing physical shading take precedence.
func (p *Parser) MaterialType(index int) (model.MaterialKind, bool) {
	return model.MaterialStandard, true
}

func (p *Parser) loadMaterial(ctx context.Context, index int, def *gltf.Material) (*model.Material, error) {
	builder := NewMaterialParamsBuilder(model.DefaultMaterialParams())
	var pending []*future.Future[struct{}]

	var kind model.MaterialKind
	unlit, hasUnlit := p.extensions[gltf.ExtMaterialsUnlit].(*materialsUnlitExtension)
	if _, ok := def.Extensions[gltf.ExtMaterialsUnlit]; ok && hasUnlit {
		kind = unlit.MaterialType()
		pending = append(pending, unlit.extendParams(ctx, def, builder))
	} else {
		pbr := def.PbrMetallicRoughness
		if pbr == nil {
			pbr = &gltf.PbrMetallicRoughness{}
		}
		builder.Update(func(mp *model.MaterialParams) {
			if f := pbr.BaseColorFactor; f != nil {
				mp.Color = [3]float32{f[0], f[1], f[2]}
				mp.Opacity = f[3]
			}
			if pbr.MetallicFactor != nil {
				mp.Metalness = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mp.Roughness = *pbr.RoughnessFactor
			}
		})
		pending = append(pending,
			p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.Map = t }, pbr.BaseColorTexture, model.ColorSpaceSRGB),
			p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) {
				mp.MetalnessMap = t
				mp.RoughnessMap = t
			}, pbr.MetallicRoughnessTexture, model.ColorSpaceNone),
		)

		kind, _ = invokeOne(p, func(m MaterialTypeProvider) (model.MaterialKind, bool) {
			return m.MaterialType(index)
		})
		pending = append(pending, invokeAll(p, func(e MaterialParamsExtender) (*future.Future[struct{}], bool) {
			return some(e.ExtendMaterialParams(ctx, index, builder))
		})...)
	}

	builder.Update(func(mp *model.MaterialParams) {
		if def.DoubleSided {
			mp.Side = model.DoubleSide
		}
		switch def.AlphaMode {
		case gltf.AlphaBlend:
			mp.Transparent = true
			mp.DepthWrite = false
		case gltf.AlphaMask:
			mp.Transparent = false
			mp.AlphaTest = 0.5
			if def.AlphaCutoff != nil {
				mp.AlphaTest = *def.AlphaCutoff
			}
		default:
			mp.Transparent = false
		}
	})

	if kind != model.MaterialBasic {
		if nt := def.NormalTexture; nt != nil {
			pending = append(pending, p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.NormalMap = t }, &nt.TextureInfo, model.ColorSpaceNone))
			builder.Update(func(mp *model.MaterialParams) {
				mp.NormalScale = [2]float32{1, 1}
				if nt.Scale != nil {
					mp.NormalScale = [2]float32{*nt.Scale, *nt.Scale}
				}
			})
		}
		if ot := def.OcclusionTexture; ot != nil {
			pending = append(pending, p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.AOMap = t }, &ot.TextureInfo, model.ColorSpaceNone))
			if ot.Strength != nil {
				builder.Update(func(mp *model.MaterialParams) { mp.AOMapIntensity = *ot.Strength })
			}
		}
		if def.EmissiveFactor != nil {
			builder.Update(func(mp *model.MaterialParams) { mp.Emissive = *def.EmissiveFactor })
		}
		pending = append(pending, p.AssignTexture(ctx, builder, func(mp *model.MaterialParams, t *model.Texture) { mp.EmissiveMap = t }, def.EmissiveTexture, model.ColorSpaceSRGB))
	}

	if _, err := future.WaitAll(ctx, pending...); err != nil {
		return nil, err
	}

	params := builder.Params()
	params.Name = def.Name
	material := model.NewMaterial(kind, params)
	assignExtras(material.UserData, def.Extras)
	p.addUnknownExtensions(material.UserData, def.Extensions)
	p.associate(material, Association{Materials: common.Ptr(index)})
	return material, nil
}
