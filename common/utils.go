package common

import (
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"github.com/twmb/murmur3"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// CloneUserData deep-copies a user data bag so clones never share nested maps or slices.
// A copy failure falls back to a shallow copy and is logged.
//
// Parameters:
//   - src: the bag to copy, may be nil
//
// Returns:
//   - map[string]any: an independent copy, or nil when src is nil
func CloneUserData(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	var dst map[string]any
	if err := deepcopy.Copy(&dst, src); err != nil {
		LogWarn("user data deep copy failed, falling back to shallow copy: %v", err)
		dst = make(map[string]any, len(src))
		for k, v := range src {
			dst[k] = v
		}
	}
	return dst
}

// HashKey joins parts with ':' and returns a 128-bit murmur3 digest in hex.
// It is used to build compact cache keys from structural descriptions.
//
// Parameters:
//   - parts: the values making up the key, formatted with %v
//
// Returns:
//   - string: a 32 character hex digest
func HashKey(parts ...any) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%v", p)
	}
	h1, h2 := murmur3.StringSum128(sb.String())
	return fmt.Sprintf("%016x%016x", h1, h2)
}
