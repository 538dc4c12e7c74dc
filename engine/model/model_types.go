package model

import (
	"fmt"
	"math"
)

// --- Component Types ---

// ComponentType identifies the numeric type of one attribute component.
// Values match the glTF accessor componentType codes.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#accessor-data-types
type ComponentType int

const (
	ComponentInt8    ComponentType = 5120
	ComponentUint8   ComponentType = 5121
	ComponentInt16   ComponentType = 5122
	ComponentUint16  ComponentType = 5123
	ComponentUint32  ComponentType = 5125
	ComponentFloat32 ComponentType = 5126
)

// Size returns the byte size of one component, or 0 for an unknown type.
func (c ComponentType) Size() int {
	switch c {
	case ComponentInt8, ComponentUint8:
		return 1
	case ComponentInt16, ComponentUint16:
		return 2
	case ComponentUint32, ComponentFloat32:
		return 4
	}
	return 0
}

// Valid reports whether c is one of the known component types.
func (c ComponentType) Valid() bool {
	return c.Size() > 0
}

func (c ComponentType) String() string {
	switch c {
	case ComponentInt8:
		return "int8"
	case ComponentUint8:
		return "uint8"
	case ComponentInt16:
		return "int16"
	case ComponentUint16:
		return "uint16"
	case ComponentUint32:
		return "uint32"
	case ComponentFloat32:
		return "float32"
	}
	return fmt.Sprintf("ComponentType(%d)", int(c))
}

// NormalizationDivisor returns the divisor mapping a normalized integer component to [-1, 1] or [0, 1].
//
// Parameters:
//   - c: the component type
//
// Returns:
//   - float64: 127, 255, 32767 or 65535
//   - error: error if c has no normalized form
func NormalizationDivisor(c ComponentType) (float64, error) {
	switch c {
	case ComponentInt8:
		return 127, nil
	case ComponentUint8:
		return 255, nil
	case ComponentInt16:
		return 32767, nil
	case ComponentUint16:
		return 65535, nil
	}
	return 0, fmt.Errorf("unsupported normalized component type %s", c)
}

// Normalize converts a raw integer component to its normalized float value.
// Signed values are clamped at -1. Unknown types are returned unchanged.
func Normalize(v float64, c ComponentType) float64 {
	div, err := NormalizationDivisor(c)
	if err != nil {
		return v
	}
	n := v / div
	if c == ComponentInt8 || c == ComponentInt16 {
		return math.Max(n, -1)
	}
	return n
}

// Denormalize converts a normalized float value back to the nearest raw integer component.
func Denormalize(v float64, c ComponentType) float64 {
	div, err := NormalizationDivisor(c)
	if err != nil {
		return v
	}
	return math.Round(v * div)
}

// --- Draw Modes ---

// DrawMode is the primitive topology of a drawable, using glTF mesh.primitive.mode codes.
type DrawMode int

const (
	DrawPoints        DrawMode = 0
	DrawLines         DrawMode = 1
	DrawLineLoop      DrawMode = 2
	DrawLineStrip     DrawMode = 3
	DrawTriangles     DrawMode = 4
	DrawTriangleStrip DrawMode = 5
	DrawTriangleFan   DrawMode = 6
)

func (m DrawMode) String() string {
	switch m {
	case DrawPoints:
		return "POINTS"
	case DrawLines:
		return "LINES"
	case DrawLineLoop:
		return "LINE_LOOP"
	case DrawLineStrip:
		return "LINE_STRIP"
	case DrawTriangles:
		return "TRIANGLES"
	case DrawTriangleStrip:
		return "TRIANGLE_STRIP"
	case DrawTriangleFan:
		return "TRIANGLE_FAN"
	}
	return fmt.Sprintf("DrawMode(%d)", int(m))
}
