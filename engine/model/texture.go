package model

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Color space tags for textures.
const (
	ColorSpaceNone = ""
	ColorSpaceSRGB = "srgb"
)

// Texture is a decoded image together with its sampling state and uv transform.
type Texture struct {
	// UUID uniquely identifies the texture.
	UUID string

	// Name is the texture identifier.
	Name string

	// Image holds the decoded pixels. Nil for compressed textures handled by an external decoder.
	Image *common.ImageData

	// Sampler holds the wrap and filter modes.
	Sampler common.SamplerState

	// FlipY reports whether rows must be flipped on upload. Always false for glTF.
	FlipY bool

	// ColorSpace is ColorSpaceSRGB for color textures and empty for data textures.
	ColorSpace string

	// Channel is the texture coordinate set the texture reads (TEXCOORD_n).
	Channel int

	// Offset is the uv translation.
	Offset [2]float32

	// Repeat is the uv scale.
	Repeat [2]float32

	// Rotation is the uv rotation in radians.
	Rotation float32

	// Center is the pivot of the uv rotation.
	Center [2]float32

	// UserData carries arbitrary application data, including glTF extras.
	UserData map[string]any
}

// NewTexture creates a texture over img with the default sampler.
//
// Parameters:
//   - img: the decoded image, may be nil
//
// Returns:
//   - *Texture: the texture with identity uv transform
func NewTexture(img *common.ImageData) *Texture {
	return &Texture{
		UUID:     uuid.NewString(),
		Image:    img,
		Sampler:  common.DefaultSampler(),
		Repeat:   [2]float32{1, 1},
		UserData: make(map[string]any),
	}
}

// Clone returns a copy that shares the image but has its own uv transform and a new UUID.
//
// Returns:
//   - *Texture: the copy
func (t *Texture) Clone() *Texture {
	c := *t
	c.UUID = uuid.NewString()
	c.UserData = common.CloneUserData(t.UserData)
	return &c
}

// Matrix returns the 3x3 uv transform built from Offset, Repeat, Rotation and Center.
func (t *Texture) Matrix() mgl32.Mat3 {
	return common.UVTransform(t.Offset, t.Repeat, t.Rotation, t.Center)
}
