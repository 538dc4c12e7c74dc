// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// WrapMode is a texture addressing mode, using the numeric values defined by glTF.
type WrapMode int

const (
	WrapClampToEdge    WrapMode = 33071
	WrapMirroredRepeat WrapMode = 33648
	WrapRepeat         WrapMode = 10497
)

// FilterMode is a texture filter, using the numeric values defined by glTF.
type FilterMode int

const (
	FilterNearest              FilterMode = 9728
	FilterLinear               FilterMode = 9729
	FilterNearestMipmapNearest FilterMode = 9984
	FilterLinearMipmapNearest  FilterMode = 9985
	FilterNearestMipmapLinear  FilterMode = 9986
	FilterLinearMipmapLinear   FilterMode = 9987
)

// SamplerState holds the addressing and filtering configuration of a texture.
type SamplerState struct {
	// WrapS, WrapT specify the addressing mode for texture coordinates outside the [0, 1] range.
	WrapS, WrapT WrapMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter FilterMode
}

// DefaultSampler returns the linear/repeat sampler used when a texture does not reference one.
//
// Returns:
//   - SamplerState: repeat wrapping with linear magnification and trilinear minification
func DefaultSampler() SamplerState {
	return SamplerState{
		WrapS:     WrapRepeat,
		WrapT:     WrapRepeat,
		MagFilter: FilterLinear,
		MinFilter: FilterLinearMipmapLinear,
	}
}

// ImageData holds decoded RGBA pixel data for a texture image.
type ImageData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel in row-major order.
	Pixels []byte
	// Width is the width of the image in pixels.
	Width int
	// Height is the height of the image in pixels.
	Height int
	// MimeType is the format the image was decoded from (e.g. "image/png").
	MimeType string
}

// ToImage wraps the pixel data in an *image.RGBA without copying.
//
// Returns:
//   - *image.RGBA: an image view over Pixels
func (d *ImageData) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    d.Pixels,
		Stride: d.Width * 4,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}
}

var errEmptyImage = errors.New("image data is empty")

// DecodeImage decodes PNG, JPEG, GIF, BMP or WebP bytes into RGBA pixel data.
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - *ImageData: the decoded pixels and dimensions
//   - error: error if the data cannot be decoded
func DecodeImage(data []byte) (*ImageData, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &ImageData{
		Pixels:   rgba.Pix,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MimeType: "image/" + format,
	}, nil
}

// DetectImageMimeType sniffs the mime type of encoded image bytes from their magic numbers.
// Returns an empty string when the format is not recognized.
func DetectImageMimeType(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}):
		return "image/png"
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return "image/jpeg"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "image/gif"
	case len(data) >= 2 && string(data[:2]) == "BM":
		return "image/bmp"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	case len(data) >= 12 && bytes.Equal(data[:12], []byte{0xab, 'K', 'T', 'X', ' ', '2', '0', 0xbb, '\r', '\n', 0x1a, '\n'}):
		return "image/ktx2"
	}
	return ""
}
