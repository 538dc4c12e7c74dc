package animation

import (
	"github.com/google/uuid"
)

// AnimationClip is a named set of tracks played together.
type AnimationClip struct {
	// UUID uniquely identifies the clip.
	UUID string

	// Name is the clip identifier.
	Name string

	// Duration is the clip length in seconds.
	Duration float32

	// Tracks are the animated properties.
	Tracks []*KeyframeTrack

	// UserData carries arbitrary application data, including glTF extras.
	UserData map[string]any
}

// NewAnimationClip creates a clip. A negative duration is computed from the tracks.
//
// Parameters:
//   - name: the clip name
//   - duration: the length in seconds, or -1 to derive it
//   - tracks: the tracks
//
// Returns:
//   - *AnimationClip: the clip
func NewAnimationClip(name string, duration float32, tracks []*KeyframeTrack) *AnimationClip {
	c := &AnimationClip{
		UUID:     uuid.NewString(),
		Name:     name,
		Duration: duration,
		Tracks:   tracks,
		UserData: make(map[string]any),
	}
	if duration < 0 {
		c.ResetDuration()
	}
	return c
}

// ResetDuration sets Duration to the latest keyframe time across all tracks.
func (c *AnimationClip) ResetDuration() {
	var d float32
	for _, t := range c.Tracks {
		d = max(d, t.Duration())
	}
	c.Duration = d
}

// Track returns the first track named name, or nil.
func (c *AnimationClip) Track(name string) *KeyframeTrack {
	for _, t := range c.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}
