package loader

import (
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

func TestAccessorWithoutBufferViewIsZeroFilled(t *testing.T) {
	f := newFixture()
	idx := f.addAccessor(gltf.Accessor{ComponentType: int(model.ComponentFloat32), Count: 3, Type: gltf.TypeVec3})
	p := f.parser()

	attr, err := p.loadAccessor(testContext(t), idx)
	if err != nil {
		t.Fatalf("loadAccessor: %v", err)
	}
	if attr.Count() != 3 || attr.ItemSize() != 3 {
		t.Fatalf("got count %d itemSize %d, want 3 and 3", attr.Count(), attr.ItemSize())
	}
	for i, v := range attr.Float32s() {
		if v != 0 {
			t.Errorf("component %d = %v, want 0", i, v)
		}
	}
}

func TestAccessorLengthIgnoresRestOfView(t *testing.T) {
	f := newFixture()
	view := f.addView(float32Bytes(9, 1, 2, 3, 9, 9), 0)
	idx := f.addAccessor(gltf.Accessor{
		BufferView:    common.Ptr(view),
		ByteOffset:    4,
		ComponentType: int(model.ComponentFloat32),
		Count:         1,
		Type:          gltf.TypeVec3,
	})
	p := f.parser()

	attr, err := p.loadAccessor(testContext(t), idx)
	if err != nil {
		t.Fatalf("loadAccessor: %v", err)
	}
	ba, ok := attr.(*model.BufferAttribute)
	if !ok {
		t.Fatalf("got %T, want *model.BufferAttribute", attr)
	}
	if got := ba.Array().Len(); got != 3 {
		t.Errorf("array length = %d, want 3", got)
	}
	if got := attr.Float32s(); !slices.Equal(got, []float32{1, 2, 3}) {
		t.Errorf("values = %v, want [1 2 3]", got)
	}
}

func TestAccessorOutOfViewBounds(t *testing.T) {
	f := newFixture()
	view := f.addView(float32Bytes(1, 2), 0)
	idx := f.addAccessor(gltf.Accessor{
		BufferView:    common.Ptr(view),
		ComponentType: int(model.ComponentFloat32),
		Count:         1,
		Type:          gltf.TypeVec3,
	})
	p := f.parser()

	if _, err := p.loadAccessor(testContext(t), idx); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestInterleavedAccessorsShareBuffer(t *testing.T) {
	f := newFixture()
	view := f.addView(float32Bytes(
		1, 2, 3, 0, 0, 1,
		4, 5, 6, 0, 1, 0,
	), 24)
	pos := f.addAccessor(gltf.Accessor{BufferView: common.Ptr(view), ComponentType: int(model.ComponentFloat32), Count: 2, Type: gltf.TypeVec3})
	nrm := f.addAccessor(gltf.Accessor{BufferView: common.Ptr(view), ByteOffset: 12, ComponentType: int(model.ComponentFloat32), Count: 2, Type: gltf.TypeVec3})
	p := f.parser()
	ctx := testContext(t)

	a, err := p.loadAccessor(ctx, pos)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	b, err := p.loadAccessor(ctx, nrm)
	if err != nil {
		t.Fatalf("normal: %v", err)
	}

	ia, ok := a.(*model.InterleavedBufferAttribute)
	if !ok {
		t.Fatalf("position is %T, want interleaved", a)
	}
	ib, ok := b.(*model.InterleavedBufferAttribute)
	if !ok {
		t.Fatalf("normal is %T, want interleaved", b)
	}
	if ia.Buffer() != ib.Buffer() {
		t.Errorf("accessors over the same view do not share an interleaved buffer")
	}
	if ia.Offset() != 0 || ib.Offset() != 3 {
		t.Errorf("offsets = %d, %d, want 0, 3", ia.Offset(), ib.Offset())
	}
	if got := a.Float32s(); !slices.Equal(got, []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("positions = %v", got)
	}
	if got := b.Float32s(); !slices.Equal(got, []float32{0, 0, 1, 0, 1, 0}) {
		t.Errorf("normals = %v", got)
	}
}

func TestSparseAccessorLeavesSourceUntouched(t *testing.T) {
	f := newFixture()
	view := f.addView(float32Bytes(1, 2, 3, 4), 0)
	indices := f.addView(uint16Bytes(2), 0)
	values := f.addView(float32Bytes(9), 0)

	dense := f.addAccessor(gltf.Accessor{BufferView: common.Ptr(view), ComponentType: int(model.ComponentFloat32), Count: 4, Type: gltf.TypeScalar})
	sparse := f.addAccessor(gltf.Accessor{
		BufferView:    common.Ptr(view),
		ComponentType: int(model.ComponentFloat32),
		Count:         4,
		Type:          gltf.TypeScalar,
		Sparse: &gltf.AccessorSparse{
			Count:   1,
			Indices: gltf.SparseIndices{BufferView: indices, ComponentType: int(model.ComponentUint16)},
			Values:  gltf.SparseValues{BufferView: values},
		},
	})
	p := f.parser()
	ctx := testContext(t)

	for i := range 2 {
		attr, err := p.loadAccessor(ctx, sparse)
		if err != nil {
			t.Fatalf("sparse load %d: %v", i, err)
		}
		if got := attr.Float32s(); !slices.Equal(got, []float32{1, 2, 9, 4}) {
			t.Errorf("sparse load %d = %v, want [1 2 9 4]", i, got)
		}
	}

	attr, err := p.loadAccessor(ctx, dense)
	if err != nil {
		t.Fatalf("dense load: %v", err)
	}
	if got := attr.Float32s(); !slices.Equal(got, []float32{1, 2, 3, 4}) {
		t.Errorf("dense accessor = %v after sparse loads, want [1 2 3 4]", got)
	}
}

func TestSparseAccessorRejectsWideItems(t *testing.T) {
	f := newFixture()
	indices := f.addView(uint16Bytes(0), 0)
	values := f.addView(float32Bytes(make([]float32, 9)...), 0)
	idx := f.addAccessor(gltf.Accessor{
		ComponentType: int(model.ComponentFloat32),
		Count:         1,
		Type:          gltf.TypeMat3,
		Sparse: &gltf.AccessorSparse{
			Count:   1,
			Indices: gltf.SparseIndices{BufferView: indices, ComponentType: int(model.ComponentUint16)},
			Values:  gltf.SparseValues{BufferView: values},
		},
	})
	p := f.parser()

	if _, err := p.loadAccessor(testContext(t), idx); !errors.Is(err, ErrUnsupportedSparseItemSize) {
		t.Fatalf("err = %v, want ErrUnsupportedSparseItemSize", err)
	}
}

func TestLoadBuffer(t *testing.T) {
	tests := []struct {
		name   string
		buffer gltf.Buffer
		body   []byte
		want   error
	}{
		{name: "body", buffer: gltf.Buffer{ByteLength: 4}, body: []byte{1, 2, 3, 4}},
		{name: "missing body", buffer: gltf.Buffer{ByteLength: 4}, want: ErrBufferFetchFailure},
		{name: "bad type", buffer: gltf.Buffer{ByteLength: 4, Type: "text"}, body: []byte{1, 2, 3, 4}, want: ErrUnsupportedBufferType},
		{name: "unreadable uri", buffer: gltf.Buffer{ByteLength: 4, URI: "does-not-exist.bin"}, want: ErrBufferFetchFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0"}, Buffers: []gltf.Buffer{tt.buffer}}
			p := NewParser(doc, WithBody(tt.body), WithPath(t.TempDir()+"/"))

			data, err := p.loadBuffer(testContext(t), 0)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadBuffer: %v", err)
			}
			if !slices.Equal(data, tt.body) {
				t.Errorf("data = %v, want %v", data, tt.body)
			}
		})
	}
}

func TestBufferViewIsZeroCopy(t *testing.T) {
	f := newFixture()
	f.addView([]byte{1, 2, 3, 4}, 0)
	view := f.addView([]byte{5, 6, 7, 8}, 0)
	p := f.parser()

	data, err := p.LoadBufferView(testContext(t), view).Await(testContext(t))
	if err != nil {
		t.Fatalf("LoadBufferView: %v", err)
	}
	if !slices.Equal(data, []byte{5, 6, 7, 8}) {
		t.Fatalf("view = %v", data)
	}
	f.bin[4] = 42
	if data[0] != 42 {
		t.Errorf("view does not alias the buffer")
	}
}
