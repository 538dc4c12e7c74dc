package model

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// TypedArray is a little-endian array of numeric components backed by raw bytes.
// A shared array is a zero-copy view into bytes owned by someone else (usually a glTF buffer)
// and must be cloned before it is written to.
type TypedArray struct {
	componentType ComponentType
	data          []byte
	shared        bool
}

// NewTypedArray allocates a zeroed array of length components.
//
// Parameters:
//   - ct: the component type
//   - length: the number of components
//
// Returns:
//   - *TypedArray: the owned array
func NewTypedArray(ct ComponentType, length int) *TypedArray {
	return &TypedArray{componentType: ct, data: make([]byte, length*ct.Size())}
}

// ViewTypedArray wraps data without copying. Trailing bytes that do not form a whole
// component are ignored.
//
// Parameters:
//   - ct: the component type
//   - data: the bytes to view
//
// Returns:
//   - *TypedArray: a shared view over data
func ViewTypedArray(ct ComponentType, data []byte) *TypedArray {
	size := ct.Size()
	if size == 0 {
		return &TypedArray{componentType: ct, shared: true}
	}
	n := len(data) / size
	return &TypedArray{componentType: ct, data: data[:n*size:n*size], shared: true}
}

// FromSlice encodes a Go numeric slice into a new owned array of the given component type.
//
// Parameters:
//   - ct: the destination component type
//   - src: the values to encode
//
// Returns:
//   - *TypedArray: the owned array
func FromSlice[T constraints.Integer | constraints.Float](ct ComponentType, src []T) *TypedArray {
	a := NewTypedArray(ct, len(src))
	for i, v := range src {
		a.Set(i, float64(v))
	}
	return a
}

// ComponentType returns the numeric type of the array.
func (a *TypedArray) ComponentType() ComponentType {
	return a.componentType
}

// Len returns the number of components in the array.
func (a *TypedArray) Len() int {
	size := a.componentType.Size()
	if size == 0 {
		return 0
	}
	return len(a.data) / size
}

// Bytes returns the raw little-endian bytes of the array.
func (a *TypedArray) Bytes() []byte {
	return a.data
}

// Shared reports whether the array is a view into memory it does not own.
func (a *TypedArray) Shared() bool {
	return a.shared
}

// At returns component i converted to float64.
func (a *TypedArray) At(i int) float64 {
	switch a.componentType {
	case ComponentInt8:
		return float64(int8(a.data[i]))
	case ComponentUint8:
		return float64(a.data[i])
	case ComponentInt16:
		return float64(int16(binary.LittleEndian.Uint16(a.data[i*2:])))
	case ComponentUint16:
		return float64(binary.LittleEndian.Uint16(a.data[i*2:]))
	case ComponentUint32:
		return float64(binary.LittleEndian.Uint32(a.data[i*4:]))
	case ComponentFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(a.data[i*4:])))
	}
	panic(fmt.Sprintf("model: unsupported component type %s", a.componentType))
}

// Set stores v at component i, truncating toward zero for integer types.
func (a *TypedArray) Set(i int, v float64) {
	switch a.componentType {
	case ComponentInt8:
		a.data[i] = byte(int8(int64(v)))
	case ComponentUint8:
		a.data[i] = byte(uint8(int64(v)))
	case ComponentInt16:
		binary.LittleEndian.PutUint16(a.data[i*2:], uint16(int16(int64(v))))
	case ComponentUint16:
		binary.LittleEndian.PutUint16(a.data[i*2:], uint16(int64(v)))
	case ComponentUint32:
		binary.LittleEndian.PutUint32(a.data[i*4:], uint32(int64(v)))
	case ComponentFloat32:
		binary.LittleEndian.PutUint32(a.data[i*4:], math.Float32bits(float32(v)))
	default:
		panic(fmt.Sprintf("model: unsupported component type %s", a.componentType))
	}
}

// Clone returns an owned copy of the array.
func (a *TypedArray) Clone() *TypedArray {
	data := make([]byte, len(a.data))
	copy(data, a.data)
	return &TypedArray{componentType: a.componentType, data: data}
}

// Float32s decodes the array into a new float32 slice.
func (a *TypedArray) Float32s() []float32 {
	out := make([]float32, a.Len())
	for i := range out {
		out[i] = float32(a.At(i))
	}
	return out
}

// Uint32s decodes the array into a new uint32 slice.
func (a *TypedArray) Uint32s() []uint32 {
	out := make([]uint32, a.Len())
	for i := range out {
		out[i] = uint32(a.At(i))
	}
	return out
}

// --- Attributes ---

// Attribute is a per-vertex (or per-keyframe) data stream of fixed-size items.
type Attribute interface {
	// Count returns the number of items.
	Count() int

	// ItemSize returns the number of components per item.
	ItemSize() int

	// Normalized reports whether integer components represent normalized values.
	Normalized() bool

	// ComponentType returns the numeric type of the components.
	ComponentType() ComponentType

	// Component returns the raw value of one component.
	//
	// Parameters:
	//   - index: the item index
	//   - component: the component within the item
	//
	// Returns:
	//   - float64: the raw, un-normalized component value
	Component(index, component int) float64

	// SetComponent stores the raw value of one component.
	//
	// Parameters:
	//   - index: the item index
	//   - component: the component within the item
	//   - v: the raw value
	SetComponent(index, component int, v float64)

	// Float32s returns the items flattened into a new slice, applying normalization.
	//
	// Returns:
	//   - []float32: Count()*ItemSize() values
	Float32s() []float32

	// Clone returns a tightly packed, owned copy of the attribute.
	//
	// Returns:
	//   - *BufferAttribute: the deinterleaved copy
	Clone() *BufferAttribute
}

// BufferAttribute is an attribute whose items are tightly packed in its own array.
type BufferAttribute struct {
	array      *TypedArray
	itemSize   int
	normalized bool
}

var _ Attribute = &BufferAttribute{}

// NewBufferAttribute wraps array as an attribute of itemSize-wide items.
//
// Parameters:
//   - array: the component data
//   - itemSize: the number of components per item
//   - normalized: whether integer components are normalized
//
// Returns:
//   - *BufferAttribute: the attribute
func NewBufferAttribute(array *TypedArray, itemSize int, normalized bool) *BufferAttribute {
	return &BufferAttribute{array: array, itemSize: itemSize, normalized: normalized}
}

// Array returns the backing array.
func (b *BufferAttribute) Array() *TypedArray {
	return b.array
}

// SetArray replaces the backing array.
func (b *BufferAttribute) SetArray(array *TypedArray) {
	b.array = array
}

func (b *BufferAttribute) Count() int {
	if b.itemSize == 0 {
		return 0
	}
	return b.array.Len() / b.itemSize
}

func (b *BufferAttribute) ItemSize() int {
	return b.itemSize
}

func (b *BufferAttribute) Normalized() bool {
	return b.normalized
}

func (b *BufferAttribute) ComponentType() ComponentType {
	return b.array.ComponentType()
}

func (b *BufferAttribute) Component(index, component int) float64 {
	return b.array.At(index*b.itemSize + component)
}

func (b *BufferAttribute) SetComponent(index, component int, v float64) {
	b.array.Set(index*b.itemSize+component, v)
}

func (b *BufferAttribute) Float32s() []float32 {
	return attributeFloat32s(b)
}

func (b *BufferAttribute) Clone() *BufferAttribute {
	return &BufferAttribute{array: b.array.Clone(), itemSize: b.itemSize, normalized: b.normalized}
}

// InterleavedBuffer is an array shared by several attributes whose items alternate.
type InterleavedBuffer struct {
	array  *TypedArray
	stride int
}

// NewInterleavedBuffer wraps array with a stride measured in components.
//
// Parameters:
//   - array: the interleaved component data
//   - stride: the number of components between consecutive items
//
// Returns:
//   - *InterleavedBuffer: the buffer
func NewInterleavedBuffer(array *TypedArray, stride int) *InterleavedBuffer {
	return &InterleavedBuffer{array: array, stride: stride}
}

// Array returns the backing array.
func (ib *InterleavedBuffer) Array() *TypedArray {
	return ib.array
}

// Stride returns the number of components between consecutive items.
func (ib *InterleavedBuffer) Stride() int {
	return ib.stride
}

// Count returns the number of strides in the buffer.
func (ib *InterleavedBuffer) Count() int {
	if ib.stride == 0 {
		return 0
	}
	return ib.array.Len() / ib.stride
}

// InterleavedBufferAttribute is an attribute reading one item per stride of an InterleavedBuffer.
type InterleavedBufferAttribute struct {
	buffer     *InterleavedBuffer
	itemSize   int
	offset     int
	normalized bool
}

var _ Attribute = &InterleavedBufferAttribute{}

// NewInterleavedBufferAttribute creates an attribute at offset components into each stride.
//
// Parameters:
//   - buffer: the shared interleaved buffer
//   - itemSize: the number of components per item
//   - offset: the component offset of this attribute within a stride
//   - normalized: whether integer components are normalized
//
// Returns:
//   - *InterleavedBufferAttribute: the attribute
func NewInterleavedBufferAttribute(buffer *InterleavedBuffer, itemSize, offset int, normalized bool) *InterleavedBufferAttribute {
	return &InterleavedBufferAttribute{buffer: buffer, itemSize: itemSize, offset: offset, normalized: normalized}
}

// Buffer returns the shared interleaved buffer.
func (a *InterleavedBufferAttribute) Buffer() *InterleavedBuffer {
	return a.buffer
}

// Offset returns the component offset of the attribute within a stride.
func (a *InterleavedBufferAttribute) Offset() int {
	return a.offset
}

func (a *InterleavedBufferAttribute) Count() int {
	return a.buffer.Count()
}

func (a *InterleavedBufferAttribute) ItemSize() int {
	return a.itemSize
}

func (a *InterleavedBufferAttribute) Normalized() bool {
	return a.normalized
}

func (a *InterleavedBufferAttribute) ComponentType() ComponentType {
	return a.buffer.array.ComponentType()
}

func (a *InterleavedBufferAttribute) Component(index, component int) float64 {
	return a.buffer.array.At(index*a.buffer.stride + a.offset + component)
}

func (a *InterleavedBufferAttribute) SetComponent(index, component int, v float64) {
	a.buffer.array.Set(index*a.buffer.stride+a.offset+component, v)
}

func (a *InterleavedBufferAttribute) Float32s() []float32 {
	return attributeFloat32s(a)
}

func (a *InterleavedBufferAttribute) Clone() *BufferAttribute {
	count := a.Count()
	out := NewTypedArray(a.ComponentType(), count*a.itemSize)
	for i := 0; i < count; i++ {
		for c := 0; c < a.itemSize; c++ {
			out.Set(i*a.itemSize+c, a.Component(i, c))
		}
	}
	return NewBufferAttribute(out, a.itemSize, a.normalized)
}

func attributeFloat32s(a Attribute) []float32 {
	count, size := a.Count(), a.ItemSize()
	normalized := a.Normalized() && a.ComponentType() != ComponentFloat32
	out := make([]float32, count*size)
	for i := 0; i < count; i++ {
		for c := 0; c < size; c++ {
			v := a.Component(i, c)
			if normalized {
				v = Normalize(v, a.ComponentType())
			}
			out[i*size+c] = float32(v)
		}
	}
	return out
}
