package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mat4FromSlice reads a column-major 4x4 matrix from the first 16 elements of v.
// Short slices leave the remaining elements at identity.
//
// Parameters:
//   - v: column-major matrix elements
//
// Returns:
//   - mgl32.Mat4: the matrix
func Mat4FromSlice(v []float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	copy(m[:], v)
	return m
}

// Vec3FromSlice reads the first three elements of v.
// Missing elements default to fallback.
func Vec3FromSlice(v []float32, fallback mgl32.Vec3) mgl32.Vec3 {
	out := fallback
	copy(out[:], v)
	return out
}

// QuatFromSlice reads an (x, y, z, w) quaternion as stored by glTF.
// A slice shorter than four elements yields the identity rotation.
func QuatFromSlice(v []float32) mgl32.Quat {
	if len(v) < 4 {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// QuatToSlice flattens q into glTF (x, y, z, w) order.
func QuatToSlice(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

// ComposeMatrix builds the local matrix T * R * S.
//
// Parameters:
//   - t: translation
//   - r: rotation
//   - s: scale
//
// Returns:
//   - mgl32.Mat4: the composed column-major matrix
func ComposeMatrix(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(r.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// DecomposeMatrix splits an affine matrix into translation, rotation and scale.
// A negative determinant is folded into the X scale.
//
// Parameters:
//   - m: the column-major affine matrix
//
// Returns:
//   - mgl32.Vec3: translation
//   - mgl32.Quat: rotation
//   - mgl32.Vec3: scale
func DecomposeMatrix(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Det() < 0 {
		sx = -sx
	}

	t := mgl32.Vec3{m[12], m[13], m[14]}

	rot := m
	inv := [3]float32{safeInverse(sx), safeInverse(sy), safeInverse(sz)}
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			rot[c*4+r] *= inv[c]
		}
	}
	rot[12], rot[13], rot[14] = 0, 0, 0

	return t, mgl32.Mat4ToQuat(rot).Normalize(), mgl32.Vec3{sx, sy, sz}
}

func safeInverse(v float32) float32 {
	if v == 0 {
		return 0
	}
	return 1 / v
}

// UVTransform builds the 3x3 texture coordinate transform used by KHR_texture_transform.
// Rotation is applied around center, followed by repeat and offset.
//
// Parameters:
//   - offset: uv translation
//   - repeat: uv scale
//   - rotation: counter-clockwise rotation in radians
//   - center: the pivot of the rotation
//
// Returns:
//   - mgl32.Mat3: the column-major uv matrix
func UVTransform(offset, repeat [2]float32, rotation float32, center [2]float32) mgl32.Mat3 {
	s, c := math32.Sincos(rotation)
	sx, sy := repeat[0], repeat[1]
	cx, cy := center[0], center[1]

	return mgl32.Mat3{
		sx * c, -sy * s, 0,
		sx * s, sy * c, 0,
		-sx*(c*cx+s*cy) + cx + offset[0], -sy*(-s*cx+c*cy) + cy + offset[1], 1,
	}
}
