package gltf

import (
	"encoding/json"
	"fmt"
)

// Extension names.
const (
	ExtDracoMeshCompression      = "KHR_draco_mesh_compression"
	ExtLightsPunctual            = "KHR_lights_punctual"
	ExtMaterialsClearcoat        = "KHR_materials_clearcoat"
	ExtMaterialsSheen            = "KHR_materials_sheen"
	ExtMaterialsTransmission     = "KHR_materials_transmission"
	ExtMaterialsVolume           = "KHR_materials_volume"
	ExtMaterialsIOR              = "KHR_materials_ior"
	ExtMaterialsSpecular         = "KHR_materials_specular"
	ExtMaterialsUnlit            = "KHR_materials_unlit"
	ExtMaterialsAnisotropy       = "KHR_materials_anisotropy"
	ExtMaterialsEmissiveStrength = "KHR_materials_emissive_strength"
	ExtTextureBasisu             = "KHR_texture_basisu"
	ExtTextureTransform          = "KHR_texture_transform"
	ExtMeshQuantization          = "KHR_mesh_quantization"
	ExtTextureWebP               = "EXT_texture_webp"
	ExtMeshoptCompression        = "EXT_meshopt_compression"
)

// DecodeExtension unmarshals the named entry of an extensions object into v.
//
// Parameters:
//   - exts: the extensions object of a definition
//   - name: the extension name
//   - v: a pointer to the destination struct
//
// Returns:
//   - bool: false when the extension is absent
//   - error: error if the entry is present but malformed
func DecodeExtension(exts map[string]json.RawMessage, name string, v any) (bool, error) {
	raw, ok := exts[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("extension %s: %w", name, err)
	}
	return true, nil
}

// EncodeExtension marshals v and stores it under name, allocating exts if needed.
//
// Parameters:
//   - exts: the extensions object to update, may be nil
//   - name: the extension name
//   - v: the extension payload
//
// Returns:
//   - map[string]json.RawMessage: exts with the entry set
//   - error: error if v cannot be marshaled
func EncodeExtension(exts map[string]json.RawMessage, name string, v any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return exts, fmt.Errorf("extension %s: %w", name, err)
	}
	if exts == nil {
		exts = make(map[string]json.RawMessage)
	}
	exts[name] = raw
	return exts, nil
}

// --- KHR_lights_punctual ---

// LightsPunctual is the root-level KHR_lights_punctual object.
type LightsPunctual struct {
	Lights []Light `json:"lights"`
}

// Light is one punctual light definition.
// Reference: https://github.com/KhronosGroup/glTF/tree/main/extensions/2.0/Khronos/KHR_lights_punctual
type Light struct {
	Name      string      `json:"name,omitempty"`
	Type      string      `json:"type"`
	Color     *[3]float32 `json:"color,omitempty"`
	Intensity *float32    `json:"intensity,omitempty"`
	Range     *float32    `json:"range,omitempty"`
	Spot      *LightSpot  `json:"spot,omitempty"`

	Extras json.RawMessage `json:"extras,omitempty"`
}

// LightSpot holds the cone angles of a spot light, in radians.
type LightSpot struct {
	InnerConeAngle *float32 `json:"innerConeAngle,omitempty"`
	OuterConeAngle *float32 `json:"outerConeAngle,omitempty"`
}

// NodeLight is the node-level KHR_lights_punctual reference.
type NodeLight struct {
	Light int `json:"light"`
}

// --- Compression ---

// DracoPrimitive is the KHR_draco_mesh_compression primitive extension.
type DracoPrimitive struct {
	BufferView int            `json:"bufferView"`
	Attributes map[string]int `json:"attributes"`
}

// MeshoptBufferView is the EXT_meshopt_compression buffer view extension.
type MeshoptBufferView struct {
	Buffer     int    `json:"buffer"`
	ByteOffset int    `json:"byteOffset,omitempty"`
	ByteLength int    `json:"byteLength"`
	ByteStride int    `json:"byteStride"`
	Count      int    `json:"count"`
	Mode       string `json:"mode"`
	Filter     string `json:"filter,omitempty"`
}

// MeshoptBuffer is the EXT_meshopt_compression buffer extension.
type MeshoptBuffer struct {
	Fallback bool `json:"fallback,omitempty"`
}

// --- Textures ---

// TextureTransform is the KHR_texture_transform texture info extension.
type TextureTransform struct {
	Offset   *[2]float32 `json:"offset,omitempty"`
	Rotation *float32    `json:"rotation,omitempty"`
	Scale    *[2]float32 `json:"scale,omitempty"`
	TexCoord *int        `json:"texCoord,omitempty"`
}

// TextureSource is the payload of texture-level source extensions (KHR_texture_basisu, EXT_texture_webp).
type TextureSource struct {
	Source int `json:"source"`
}

// --- Materials ---

// MaterialsClearcoat is the KHR_materials_clearcoat extension.
type MaterialsClearcoat struct {
	ClearcoatFactor           *float32           `json:"clearcoatFactor,omitempty"`
	ClearcoatTexture          *TextureInfo       `json:"clearcoatTexture,omitempty"`
	ClearcoatRoughnessFactor  *float32           `json:"clearcoatRoughnessFactor,omitempty"`
	ClearcoatRoughnessTexture *TextureInfo       `json:"clearcoatRoughnessTexture,omitempty"`
	ClearcoatNormalTexture    *NormalTextureInfo `json:"clearcoatNormalTexture,omitempty"`
}

// MaterialsSheen is the KHR_materials_sheen extension.
type MaterialsSheen struct {
	SheenColorFactor      *[3]float32  `json:"sheenColorFactor,omitempty"`
	SheenColorTexture     *TextureInfo `json:"sheenColorTexture,omitempty"`
	SheenRoughnessFactor  *float32     `json:"sheenRoughnessFactor,omitempty"`
	SheenRoughnessTexture *TextureInfo `json:"sheenRoughnessTexture,omitempty"`
}

// MaterialsTransmission is the KHR_materials_transmission extension.
type MaterialsTransmission struct {
	TransmissionFactor  *float32     `json:"transmissionFactor,omitempty"`
	TransmissionTexture *TextureInfo `json:"transmissionTexture,omitempty"`
}

// MaterialsVolume is the KHR_materials_volume extension.
type MaterialsVolume struct {
	ThicknessFactor     *float32     `json:"thicknessFactor,omitempty"`
	ThicknessTexture    *TextureInfo `json:"thicknessTexture,omitempty"`
	AttenuationDistance *float32     `json:"attenuationDistance,omitempty"`
	AttenuationColor    *[3]float32  `json:"attenuationColor,omitempty"`
}

// MaterialsIOR is the KHR_materials_ior extension.
type MaterialsIOR struct {
	IOR *float32 `json:"ior,omitempty"`
}

// MaterialsSpecular is the KHR_materials_specular extension.
type MaterialsSpecular struct {
	SpecularFactor       *float32     `json:"specularFactor,omitempty"`
	SpecularTexture      *TextureInfo `json:"specularTexture,omitempty"`
	SpecularColorFactor  *[3]float32  `json:"specularColorFactor,omitempty"`
	SpecularColorTexture *TextureInfo `json:"specularColorTexture,omitempty"`
}

// MaterialsAnisotropy is the KHR_materials_anisotropy extension.
type MaterialsAnisotropy struct {
	AnisotropyStrength *float32     `json:"anisotropyStrength,omitempty"`
	AnisotropyRotation *float32     `json:"anisotropyRotation,omitempty"`
	AnisotropyTexture  *TextureInfo `json:"anisotropyTexture,omitempty"`
}

// MaterialsEmissiveStrength is the KHR_materials_emissive_strength extension.
type MaterialsEmissiveStrength struct {
	EmissiveStrength *float32 `json:"emissiveStrength,omitempty"`
}
