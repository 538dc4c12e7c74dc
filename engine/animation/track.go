package animation

import (
	"fmt"
	"strings"
)

// Interpolation selects how a track blends between keyframes.
type Interpolation int

const (
	InterpolateLinear Interpolation = iota
	InterpolateDiscrete
	InterpolateCubicSpline
)

func (i Interpolation) String() string {
	switch i {
	case InterpolateLinear:
		return "LINEAR"
	case InterpolateDiscrete:
		return "STEP"
	case InterpolateCubicSpline:
		return "CUBICSPLINE"
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// ParseInterpolation maps a glTF sampler interpolation name to an Interpolation.
// An empty name is LINEAR; unknown names are reported as errors.
//
// Parameters:
//   - s: the glTF interpolation name
//
// Returns:
//   - Interpolation: the matching mode
//   - error: error if s is not a glTF interpolation name
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "LINEAR":
		return InterpolateLinear, nil
	case "STEP":
		return InterpolateDiscrete, nil
	case "CUBICSPLINE":
		return InterpolateCubicSpline, nil
	}
	return InterpolateLinear, fmt.Errorf("unknown interpolation %q", s)
}

// TrackKind is the value type of a keyframe track.
type TrackKind int

const (
	// TrackVector animates position or scale.
	TrackVector TrackKind = iota
	// TrackQuaternion animates rotation stored as (x, y, z, w).
	TrackQuaternion
	// TrackNumber animates scalars, one per morph target.
	TrackNumber
)

func (k TrackKind) String() string {
	switch k {
	case TrackVector:
		return "vector"
	case TrackQuaternion:
		return "quaternion"
	case TrackNumber:
		return "number"
	}
	return "unknown"
}

// Animated property names, matching the scene object fields they drive.
const (
	PropertyPosition              = "position"
	PropertyQuaternion            = "quaternion"
	PropertyScale                 = "scale"
	PropertyMorphTargetInfluences = "morphTargetInfluences"
)

// KeyframeTrack is a timed sequence of values for one property of one object.
// Cubic-spline tracks store (in-tangent, value, out-tangent) triples per keyframe.
type KeyframeTrack struct {
	// Name is "<object name>.<property>".
	Name string

	// Kind is the value type.
	Kind TrackKind

	// Times holds the keyframe times in seconds, ascending.
	Times []float32

	// Values holds the flattened keyframe values.
	Values []float32

	// Interpolation selects the interpolant.
	Interpolation Interpolation
}

// NewKeyframeTrack creates a track.
//
// Parameters:
//   - name: "<object name>.<property>"
//   - kind: the value type
//   - times: keyframe times
//   - values: flattened keyframe values
//   - interpolation: the blend mode
//
// Returns:
//   - *KeyframeTrack: the track
func NewKeyframeTrack(name string, kind TrackKind, times, values []float32, interpolation Interpolation) *KeyframeTrack {
	return &KeyframeTrack{Name: name, Kind: kind, Times: times, Values: values, Interpolation: interpolation}
}

// ValueSize returns the number of components of one keyframe value, excluding tangents.
func (t *KeyframeTrack) ValueSize() int {
	if len(t.Times) == 0 {
		return 0
	}
	size := len(t.Values) / len(t.Times)
	if t.Interpolation == InterpolateCubicSpline {
		size /= 3
	}
	return size
}

// TargetName returns the part of Name before the last '.'.
func (t *KeyframeTrack) TargetName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[:i]
	}
	return t.Name
}

// Property returns the part of Name after the last '.'.
func (t *KeyframeTrack) Property() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return ""
}

// Duration returns the time of the last keyframe.
func (t *KeyframeTrack) Duration() float32 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1]
}

// CreateInterpolant returns the interpolant matching the track's kind and interpolation.
// Cubic-spline quaternion tracks renormalize their output.
//
// Returns:
//   - Interpolant: a new interpolant with its own result buffer
func (t *KeyframeTrack) CreateInterpolant() Interpolant {
	base := newInterpolantBase(t.Times, t.Values, t.ValueSize())
	switch t.Interpolation {
	case InterpolateDiscrete:
		return &discreteInterpolant{base}
	case InterpolateCubicSpline:
		if t.Kind == TrackQuaternion {
			return &cubicSplineQuaternionInterpolant{cubicSplineInterpolant{base}}
		}
		return &cubicSplineInterpolant{base}
	}
	if t.Kind == TrackQuaternion {
		return &quaternionLinearInterpolant{base}
	}
	return &linearInterpolant{base}
}

// Validate checks that times ascend and values fill every keyframe.
//
// Returns:
//   - error: the first problem found, or nil
func (t *KeyframeTrack) Validate() error {
	if len(t.Times) == 0 {
		return fmt.Errorf("track %q has no keyframes", t.Name)
	}
	stride := len(t.Values) / len(t.Times)
	if stride == 0 || stride*len(t.Times) != len(t.Values) {
		return fmt.Errorf("track %q has %d values for %d keyframes", t.Name, len(t.Values), len(t.Times))
	}
	for i := 1; i < len(t.Times); i++ {
		if t.Times[i] < t.Times[i-1] {
			return fmt.Errorf("track %q times are out of order at keyframe %d", t.Name, i)
		}
	}
	return nil
}
