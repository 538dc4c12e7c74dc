package draco

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// fakeModule decodes every buffer as a single triangle. A buffer whose first byte has a
// registered gate blocks until the gate is closed; 'x' fails with a not-ok status.
type fakeModule struct {
	mu    *sync.Mutex
	gates map[byte]chan struct{}
}

type fakeDecoder struct {
	m *fakeModule
}

type fakeGeometry struct{}

type fakeAttribute struct{ n int }

func newFakeModule(gated ...byte) *fakeModule {
	m := &fakeModule{mu: &sync.Mutex{}, gates: make(map[byte]chan struct{})}
	for _, b := range gated {
		m.gates[b] = make(chan struct{})
	}
	return m
}

func (m *fakeModule) open(b byte) {
	close(m.gates[b])
}

func (m *fakeModule) NewDecoder() NativeDecoder {
	return &fakeDecoder{m: m}
}

func (d *fakeDecoder) GeometryType(data []byte) GeometryType {
	return TriangularMesh
}

func (d *fakeDecoder) DecodeMesh(data []byte) (NativeGeometry, Status) {
	if len(data) > 0 {
		d.m.mu.Lock()
		gate := d.m.gates[data[0]]
		d.m.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if data[0] == 'x' {
			return nil, Status{OK: false, Message: "corrupt"}
		}
	}
	return fakeGeometry{}, Status{OK: true}
}

func (d *fakeDecoder) DecodePointCloud(data []byte) (NativeGeometry, Status) {
	return d.DecodeMesh(data)
}

func (d *fakeDecoder) AttributeByUniqueID(g NativeGeometry, id int) NativeAttribute {
	if id == 0 {
		return fakeAttribute{n: 3}
	}
	return nil
}

func (d *fakeDecoder) AttributeID(g NativeGeometry, t AttributeType) int {
	if t == AttributePosition || t == AttributeNormal {
		return int(t)
	}
	return -1
}

func (d *fakeDecoder) Attribute(g NativeGeometry, id int) NativeAttribute {
	return fakeAttribute{n: 3}
}

func (d *fakeDecoder) AttributeData(g NativeGeometry, a NativeAttribute, ct model.ComponentType) ([]byte, error) {
	out := model.NewTypedArray(ct, g.NumPoints()*a.NumComponents())
	for i := 0; i < out.Len(); i++ {
		out.Set(i, float64(i))
	}
	return out.Bytes(), nil
}

func (d *fakeDecoder) TriangleIndices(g NativeGeometry) ([]uint32, error) {
	return []uint32{0, 1, 2}, nil
}

func (d *fakeDecoder) Release() {}

func (fakeGeometry) NumPoints() int { return 3 }
func (fakeGeometry) NumFaces() int  { return 1 }
func (fakeGeometry) Release()       {}

func (a fakeAttribute) NumComponents() int { return a.n }

func factoryFor(m *fakeModule, inits *int32) ModuleFactory {
	return func(cfg DecoderConfig) (Module, error) {
		if inits != nil {
			atomic.AddInt32(inits, 1)
		}
		return m, nil
	}
}

func buffer(first byte, size int) *BufferHandle {
	data := make([]byte, size)
	data[0] = first
	return NewBufferHandle(data)
}

func positionConfig() TaskConfig {
	return TaskConfig{
		AttributeIDs:     map[string]int{"position": 0},
		AttributeTypes:   map[string]model.ComponentType{"position": model.ComponentFloat32},
		UseUniqueIDs:     true,
		VertexColorSpace: "",
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func loads(s Scheduler) []int {
	stats := s.Stats()
	out := make([]int, len(stats))
	for i, st := range stats {
		out[i] = st.TaskLoad
	}
	return out
}

func TestSchedulerLeastLoadedPlacement(t *testing.T) {
	ctx := testContext(t)
	var inits int32
	m := newFakeModule('a', 'b', 'c')
	s := NewScheduler(WithWorkerLimit(2), WithModuleFactory(factoryFor(m, &inits)))
	defer s.Dispose()

	fa := s.Decode(ctx, buffer('a', 100), positionConfig())
	fb := s.Decode(ctx, buffer('b', 10), positionConfig())
	fc := s.Decode(ctx, buffer('c', 5), positionConfig())

	if got := loads(s); len(got) != 2 || got[0] != 100 || got[1] != 15 {
		t.Fatalf("loads = %v, want [100 15]", got)
	}

	m.open('b')
	if _, err := fb.Await(ctx); err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if got := loads(s); got[0] != 100 || got[1] != 5 {
		t.Fatalf("loads after b = %v, want [100 5]", got)
	}

	m.open('a')
	m.open('c')
	for _, f := range []*future.Future[*model.Geometry]{fa, fc} {
		g, err := f.Await(ctx)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if g.VertexCount() != 3 || g.Index == nil || g.Index.Count() != 3 {
			t.Fatalf("geometry = %d vertices, index %v", g.VertexCount(), g.Index)
		}
	}

	for i, st := range s.Stats() {
		if st.TaskLoad != 0 || st.Outstanding != 0 {
			t.Fatalf("worker %d still loaded: %+v", i, st)
		}
	}
	if n := atomic.LoadInt32(&inits); n != 2 {
		t.Fatalf("module initialized %d times, want 2", n)
	}
}

func TestSchedulerCachesByHandleAndConfig(t *testing.T) {
	ctx := testContext(t)
	s := NewScheduler(WithModuleFactory(factoryFor(newFakeModule(), nil)))
	defer s.Dispose()

	h := buffer('z', 12)
	first := s.Decode(ctx, h, positionConfig())
	if again := s.Decode(ctx, h, positionConfig()); again != first {
		t.Fatal("same handle and config should return the cached future")
	}
	if h.Len() != 0 || !h.Transferred() {
		t.Fatal("handle should be empty after transfer")
	}
	if _, err := first.Await(ctx); err != nil {
		t.Fatalf("decode: %v", err)
	}

	other := positionConfig()
	other.AttributeIDs["normal"] = 1
	if _, err := s.Decode(ctx, h, other).Await(ctx); !errors.Is(err, ErrBufferTransferred) {
		t.Fatalf("err = %v, want ErrBufferTransferred", err)
	}
}

func TestSchedulerDecodeFailure(t *testing.T) {
	ctx := testContext(t)
	s := NewScheduler(WithModuleFactory(factoryFor(newFakeModule(), nil)))
	defer s.Dispose()

	_, err := s.Decode(ctx, buffer('x', 4), positionConfig()).Await(ctx)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("err = %v, want ErrDecodeFailure", err)
	}
	for _, st := range s.Stats() {
		if st.TaskLoad != 0 {
			t.Fatalf("failed task not released: %+v", st)
		}
	}
}

func TestSchedulerMissingModule(t *testing.T) {
	ctx := testContext(t)
	s := NewScheduler()
	defer s.Dispose()

	if _, err := s.DecodeFile(ctx, []byte{1, 2, 3}).Await(ctx); !errors.Is(err, ErrMissingModule) {
		t.Fatalf("err = %v, want ErrMissingModule", err)
	}
}

func TestDecodeFileUsesSemanticIDs(t *testing.T) {
	ctx := testContext(t)
	s := NewScheduler(WithModuleFactory(factoryFor(newFakeModule(), nil)))
	defer s.Dispose()

	g, err := s.DecodeFile(ctx, []byte{'f', 0, 0, 0}).Await(ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !g.HasAttribute("position") || !g.HasAttribute("normal") {
		t.Fatalf("attributes = %v, want position and normal", g.Attributes)
	}
	if g.HasAttribute("color") || g.HasAttribute("uv") {
		t.Fatal("absent semantics should be skipped")
	}
	if got := g.Attribute("position").Float32s(); got[4] != 4 {
		t.Fatalf("position data = %v", got)
	}
}

func TestSchedulerDisposeRejectsPending(t *testing.T) {
	ctx := testContext(t)
	m := newFakeModule('p')
	s := NewScheduler(WithModuleFactory(factoryFor(m, nil)))

	f := s.Decode(ctx, buffer('p', 8), positionConfig())
	s.Dispose()
	m.open('p')

	if _, err := f.Await(ctx); !errors.Is(err, ErrSchedulerDisposed) {
		t.Fatalf("err = %v, want ErrSchedulerDisposed", err)
	}
	if _, err := s.DecodeFile(ctx, []byte{1}).Await(ctx); !errors.Is(err, ErrSchedulerDisposed) {
		t.Fatalf("decode after dispose: %v", err)
	}
}

func TestBuildGeometryNormalizesIntegerColor(t *testing.T) {
	raw := &rawGeometry{attributes: []rawAttribute{{
		name:             "color",
		array:            model.FromSlice(model.ComponentUint8, []uint8{255, 0, 0}),
		itemSize:         3,
		vertexColorSpace: model.ColorSpaceSRGB,
	}}}
	g := buildGeometry(raw)
	color := g.Attribute("color")
	if !color.Normalized() || color.Float32s()[0] != 1 {
		t.Fatalf("color = normalized %v, %v", color.Normalized(), color.Float32s())
	}
	if g.UserData["vertexColorSpace"] != model.ColorSpaceSRGB {
		t.Fatal("vertex color space not recorded")
	}
}
