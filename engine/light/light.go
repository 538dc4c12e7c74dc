package light

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// It shines along the node's local -Z axis toward its target.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to Distance when Distance is non-zero.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along -Z.
	// Attenuates with both distance and angle from the cone axis.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	}
	return "unknown"
}

// ParseLightType maps a KHR_lights_punctual type name to a LightType.
//
// Parameters:
//   - s: "directional", "point" or "spot"
//
// Returns:
//   - LightType: the matching type
//   - bool: false if s is not a known light type
func ParseLightType(s string) (LightType, bool) {
	switch s {
	case "directional":
		return LightTypeDirectional, true
	case "point":
		return LightTypePoint, true
	case "spot":
		return LightTypeSpot, true
	}
	return 0, false
}

// Light is a punctual light placed in the scene graph.
//
// Directional and spot lights carry a Target child one unit down the local -Z axis,
// so the light's world direction follows its node transform.
type Light struct {
	scene.Node

	// Type is the kind of light source.
	Type LightType

	// Color is the linear RGB color.
	Color [3]float32

	// Intensity is the scalar intensity multiplier.
	Intensity float32

	// Distance is the attenuation range. Zero means unlimited.
	Distance float32

	// Decay is the physically based falloff exponent.
	Decay float32

	// Angle is the outer cone half-angle of a spot light, in radians.
	Angle float32

	// Penumbra is the fraction of the cone over which a spot light fades, in [0, 1].
	Penumbra float32

	// Target is the point the light aims at. Nil for point lights.
	Target *scene.Node
}

var _ scene.Object = &Light{}

// NewLight creates a light of the given type with white color, unit intensity and decay 2.
//
// Parameters:
//   - lightType: the kind of light
//   - opts: functional options applied in order
//
// Returns:
//   - *Light: the light
func NewLight(lightType LightType, opts ...LightBuilderOption) *Light {
	l := &Light{
		Type:      lightType,
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Decay:     2,
		Angle:     math32.Pi / 4,
	}
	l.Init(l)
	if lightType != LightTypePoint {
		l.Target = scene.NewNode()
		l.Target.Position = mgl32.Vec3{0, 0, -1}
		l.Add(l.Target)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clone copies the light. The copy aims at its own target.
func (l *Light) Clone(recursive bool) scene.Object {
	c := &Light{
		Type:      l.Type,
		Color:     l.Color,
		Intensity: l.Intensity,
		Distance:  l.Distance,
		Decay:     l.Decay,
		Angle:     l.Angle,
		Penumbra:  l.Penumbra,
	}
	c.Init(c)
	c.CopyFrom(&l.Node, recursive)

	if l.Target == nil {
		return c
	}
	if recursive {
		for i, child := range l.Children() {
			if child.Base() == l.Target {
				c.Target = c.Children()[i].Base()
				return c
			}
		}
	}
	c.Target = l.Target.Clone(false).Base()
	c.Add(c.Target)
	return c
}

// InnerConeAngle returns the spot cone angle inside which intensity is full, in radians.
func (l *Light) InnerConeAngle() float32 {
	return l.Angle * (1 - l.Penumbra)
}

// Direction returns the normalized world-space direction from the light toward its target.
// Point lights return the zero vector.
func (l *Light) Direction() mgl32.Vec3 {
	if l.Target == nil {
		return mgl32.Vec3{}
	}
	from := l.MatrixWorld().Col(3).Vec3()
	to := l.Target.MatrixWorld().Col(3).Vec3()
	d := to.Sub(from)
	if d.Len() == 0 {
		return d
	}
	return d.Normalize()
}
