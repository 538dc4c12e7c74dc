package animation

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Interpolant samples a keyframe track at arbitrary times.
type Interpolant interface {
	// Evaluate returns the value at time t. Times outside the track clamp to the first or last keyframe.
	// The returned slice is reused by the next call.
	//
	// Parameters:
	//   - t: the time in seconds
	//
	// Returns:
	//   - []float32: ValueSize components
	Evaluate(t float32) []float32
}

type interpolantBase struct {
	times     []float32
	values    []float32
	valueSize int
	result    []float32
}

func newInterpolantBase(times, values []float32, valueSize int) interpolantBase {
	return interpolantBase{times: times, values: values, valueSize: valueSize, result: make([]float32, valueSize)}
}

// locate returns the index of the first keyframe after t.
// 0 means t precedes the track and len(times) means t is at or after the last keyframe.
func (b *interpolantBase) locate(t float32) int {
	return sort.Search(len(b.times), func(i int) bool { return b.times[i] > t })
}

// sampleOffset is the offset of keyframe i's value within values.
type sampleOffset func(i int) int

func (b *interpolantBase) evaluate(t float32, offset sampleOffset, interpolate func(i1 int, t0, t, t1 float32)) []float32 {
	n := len(b.times)
	if n == 0 {
		return b.result
	}
	i1 := b.locate(t)
	switch {
	case i1 == 0:
		b.copySample(offset(0))
	case i1 >= n:
		b.copySample(offset(n - 1))
	default:
		t0, t1 := b.times[i1-1], b.times[i1]
		if t1 == t0 {
			b.copySample(offset(i1))
			break
		}
		interpolate(i1, t0, t, t1)
	}
	return b.result
}

func (b *interpolantBase) copySample(off int) {
	copy(b.result, b.values[off:off+b.valueSize])
}

func (b *interpolantBase) packedOffset(i int) int {
	return i * b.valueSize
}

type discreteInterpolant struct {
	interpolantBase
}

func (d *discreteInterpolant) Evaluate(t float32) []float32 {
	return d.evaluate(t, d.packedOffset, func(i1 int, _, _, _ float32) {
		d.copySample(d.packedOffset(i1 - 1))
	})
}

type linearInterpolant struct {
	interpolantBase
}

func (l *linearInterpolant) Evaluate(t float32) []float32 {
	return l.evaluate(t, l.packedOffset, func(i1 int, t0, t, t1 float32) {
		w := (t - t0) / (t1 - t0)
		off1 := i1 * l.valueSize
		off0 := off1 - l.valueSize
		for i := 0; i < l.valueSize; i++ {
			l.result[i] = l.values[off0+i]*(1-w) + l.values[off1+i]*w
		}
	})
}

type quaternionLinearInterpolant struct {
	interpolantBase
}

func (q *quaternionLinearInterpolant) Evaluate(t float32) []float32 {
	return q.evaluate(t, q.packedOffset, func(i1 int, t0, t, t1 float32) {
		w := (t - t0) / (t1 - t0)
		off1 := i1 * q.valueSize
		off0 := off1 - q.valueSize
		a := quatAt(q.values, off0)
		b := quatAt(q.values, off1)
		if a.Dot(b) < 0 {
			b = b.Scale(-1)
		}
		r := mgl32.QuatSlerp(a, b, w)
		q.result[0], q.result[1], q.result[2], q.result[3] = r.V[0], r.V[1], r.V[2], r.W
	})
}

func quatAt(values []float32, off int) mgl32.Quat {
	return mgl32.Quat{W: values[off+3], V: mgl32.Vec3{values[off], values[off+1], values[off+2]}}
}

// cubicSplineInterpolant performs Hermite blending over glTF CUBICSPLINE samples,
// where each keyframe stores an in-tangent, a value and an out-tangent.
type cubicSplineInterpolant struct {
	interpolantBase
}

func (c *cubicSplineInterpolant) splineOffset(i int) int {
	return i*c.valueSize*3 + c.valueSize
}

func (c *cubicSplineInterpolant) Evaluate(t float32) []float32 {
	return c.evaluate(t, c.splineOffset, c.hermite)
}

func (c *cubicSplineInterpolant) hermite(i1 int, t0, t, t1 float32) {
	stride := c.valueSize
	stride2 := stride * 2
	stride3 := stride * 3

	td := t1 - t0
	p := (t - t0) / td
	pp := p * p
	ppp := pp * p

	offset1 := i1 * stride3
	offset0 := offset1 - stride3

	s2 := -2*ppp + 3*pp
	s3 := ppp - pp
	s0 := 1 - s2
	s1 := s3 - pp + p

	for i := 0; i < stride; i++ {
		p0 := c.values[offset0+i+stride]
		m0 := c.values[offset0+i+stride2] * td
		p1 := c.values[offset1+i+stride]
		m1 := c.values[offset1+i] * td
		c.result[i] = s0*p0 + s1*m0 + s2*p1 + s3*m1
	}
}

// cubicSplineQuaternionInterpolant renormalizes the blended quaternion to unit length.
type cubicSplineQuaternionInterpolant struct {
	cubicSplineInterpolant
}

func (c *cubicSplineQuaternionInterpolant) Evaluate(t float32) []float32 {
	out := c.evaluate(t, c.splineOffset, c.hermite)
	normalize4(out)
	return out
}

func normalize4(v []float32) {
	if len(v) < 4 {
		return
	}
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2] + v[3]*v[3])
	if l == 0 {
		v[0], v[1], v[2], v[3] = 0, 0, 0, 1
		return
	}
	inv := 1 / l
	for i := 0; i < 4; i++ {
		v[i] *= inv
	}
}
