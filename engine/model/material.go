package model

import (
	"math"

	"github.com/Carmen-Shannon/oxy-gltf/common"

	"github.com/google/uuid"
)

// MaterialKind selects the concrete shading model of a Material.
type MaterialKind int

const (
	// MaterialStandard is metallic-roughness PBR.
	MaterialStandard MaterialKind = iota
	// MaterialPhysical is MaterialStandard plus clearcoat, sheen, transmission, volume, ior, specular and anisotropy.
	MaterialPhysical
	// MaterialBasic is unlit.
	MaterialBasic
	// MaterialPoints shades point primitives.
	MaterialPoints
	// MaterialLineBasic shades line primitives.
	MaterialLineBasic
)

func (k MaterialKind) String() string {
	switch k {
	case MaterialStandard:
		return "MeshStandardMaterial"
	case MaterialPhysical:
		return "MeshPhysicalMaterial"
	case MaterialBasic:
		return "MeshBasicMaterial"
	case MaterialPoints:
		return "PointsMaterial"
	case MaterialLineBasic:
		return "LineBasicMaterial"
	}
	return "UnknownMaterial"
}

// Side selects which faces are rendered.
type Side int

const (
	FrontSide Side = iota
	DoubleSide
)

// MaterialParams accumulates material properties before the concrete material is constructed.
type MaterialParams struct {
	Name string

	// --- Base ---

	Color   [3]float32
	Opacity float32
	Map     *Texture

	Side        Side
	Transparent bool
	DepthWrite  bool
	AlphaTest   float32

	VertexColors bool
	FlatShading  bool

	// --- Metallic-roughness ---

	Metalness    float32
	Roughness    float32
	MetalnessMap *Texture
	RoughnessMap *Texture

	NormalMap   *Texture
	NormalScale [2]float32

	AOMap          *Texture
	AOMapIntensity float32

	Emissive          [3]float32
	EmissiveMap       *Texture
	EmissiveIntensity float32

	// --- Physical extensions ---

	Clearcoat             float32
	ClearcoatMap          *Texture
	ClearcoatRoughness    float32
	ClearcoatRoughnessMap *Texture
	ClearcoatNormalMap    *Texture
	ClearcoatNormalScale  [2]float32

	Sheen             float32
	SheenColor        [3]float32
	SheenColorMap     *Texture
	SheenRoughness    float32
	SheenRoughnessMap *Texture

	Transmission    float32
	TransmissionMap *Texture

	Thickness           float32
	ThicknessMap        *Texture
	AttenuationDistance float32
	AttenuationColor    [3]float32

	IOR float32

	SpecularIntensity    float32
	SpecularIntensityMap *Texture
	SpecularColor        [3]float32
	SpecularColorMap     *Texture

	Anisotropy         float32
	AnisotropyRotation float32
	AnisotropyMap      *Texture

	// --- Points and lines ---

	Size            float32
	SizeAttenuation bool

	UserData map[string]any
}

// DefaultMaterialParams returns the glTF metallic-roughness defaults: opaque white, fully metallic and rough.
//
// Returns:
//   - MaterialParams: the default parameter set
func DefaultMaterialParams() MaterialParams {
	return MaterialParams{
		Color:                [3]float32{1, 1, 1},
		Opacity:              1,
		DepthWrite:           true,
		Metalness:            1,
		Roughness:            1,
		NormalScale:          [2]float32{1, 1},
		AOMapIntensity:       1,
		EmissiveIntensity:    1,
		ClearcoatNormalScale: [2]float32{1, 1},
		SheenRoughness:       1,
		AttenuationDistance:  float32(math.Inf(1)),
		AttenuationColor:     [3]float32{1, 1, 1},
		IOR:                  1.5,
		SpecularIntensity:    1,
		SpecularColor:        [3]float32{1, 1, 1},
		Size:                 1,
		SizeAttenuation:      true,
		UserData:             make(map[string]any),
	}
}

// Material is a constructed material of a specific kind.
type Material struct {
	// UUID uniquely identifies the material.
	UUID string

	// Kind is the shading model.
	Kind MaterialKind

	MaterialParams
}

// NewMaterial constructs a material of kind from params.
// Unlit, points and line materials keep only the properties their shading model reads.
//
// Parameters:
//   - kind: the shading model
//   - params: the accumulated parameters
//
// Returns:
//   - *Material: the material
func NewMaterial(kind MaterialKind, params MaterialParams) *Material {
	m := &Material{UUID: uuid.NewString(), Kind: kind}
	switch kind {
	case MaterialStandard, MaterialPhysical:
		m.MaterialParams = params
	default:
		base := DefaultMaterialParams()
		base.Name = params.Name
		base.Color = params.Color
		base.Opacity = params.Opacity
		base.Map = params.Map
		base.Side = params.Side
		base.Transparent = params.Transparent
		base.DepthWrite = params.DepthWrite
		base.AlphaTest = params.AlphaTest
		base.VertexColors = params.VertexColors
		base.Size = params.Size
		base.SizeAttenuation = params.SizeAttenuation
		base.UserData = params.UserData
		base.Metalness, base.Roughness = 0, 0
		m.MaterialParams = base
	}
	if m.UserData == nil {
		m.UserData = make(map[string]any)
	}
	return m
}

// Clone returns a copy sharing textures, with a new UUID.
//
// Returns:
//   - *Material: the copy
func (m *Material) Clone() *Material {
	c := *m
	c.UUID = uuid.NewString()
	c.UserData = common.CloneUserData(m.UserData)
	return &c
}

// Textures returns every non-nil texture slot of the material.
func (m *Material) Textures() []*Texture {
	all := []*Texture{
		m.Map, m.MetalnessMap, m.RoughnessMap, m.NormalMap, m.AOMap, m.EmissiveMap,
		m.ClearcoatMap, m.ClearcoatRoughnessMap, m.ClearcoatNormalMap,
		m.SheenColorMap, m.SheenRoughnessMap, m.TransmissionMap, m.ThicknessMap,
		m.SpecularIntensityMap, m.SpecularColorMap, m.AnisotropyMap,
	}
	out := all[:0]
	for _, t := range all {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
