package light

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*Light)

// WithColor is an option builder that sets the linear RGB color of the light.
//
// Parameters:
//   - r: the red component
//   - g: the green component
//   - b: the blue component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a Light
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *Light) {
		l.Color = [3]float32{r, g, b}
	}
}

// WithIntensity is an option builder that sets the intensity of the light.
//
// Parameters:
//   - intensity: the intensity multiplier
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a Light
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *Light) {
		l.Intensity = intensity
	}
}

// WithRange is an option builder that sets the attenuation distance of point and spot lights.
// Zero means unlimited range.
//
// Parameters:
//   - lightRange: the attenuation distance
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a Light
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *Light) {
		l.Distance = lightRange
	}
}

// WithSpotCone is an option builder that sets the spot cone from glTF inner and outer
// cone angles in radians. The penumbra is the fraction of the outer cone outside the inner cone.
//
// Parameters:
//   - inner: the inner cone angle in radians
//   - outer: the outer cone angle in radians
//
// Returns:
//   - LightBuilderOption: a function that applies the cone option to a Light
func WithSpotCone(inner, outer float32) LightBuilderOption {
	return func(l *Light) {
		l.Angle = outer
		if outer > 0 {
			l.Penumbra = 1 - inner/outer
		}
	}
}

// WithName is an option builder that sets the light name.
//
// Parameters:
//   - name: the light name
//
// Returns:
//   - LightBuilderOption: a function that applies the name option to a Light
func WithName(name string) LightBuilderOption {
	return func(l *Light) {
		l.Name = name
	}
}
