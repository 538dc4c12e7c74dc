package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// riggedFixture builds a two-joint skinned triangle with a cubic-spline rotation channel on the child joint.
func riggedFixture() *fixture {
	f := newFixture()
	pos := f.addFloats(gltf.TypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	jointsView := f.addView([]byte{0, 1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0}, 0)
	joints := f.addAccessor(gltf.Accessor{
		BufferView:    common.Ptr(jointsView),
		ComponentType: int(model.ComponentUint8),
		Count:         3,
		Type:          gltf.TypeVec4,
	})
	weights := f.addFloats(gltf.TypeVec4, 2, 2, 0, 0, 1, 1, 0, 0, 4, 0, 0, 0)
	ibm := f.addFloats(gltf.TypeMat4,
		1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1,
		1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, -1, 0, 1,
	)
	times := f.addFloats(gltf.TypeScalar, 0, 1)
	values := f.addFloats(gltf.TypeVec4,
		0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0.7071068, 0.7071068, 0, 0, 0, 0,
	)

	f.doc.Meshes = []gltf.Mesh{{
		Name: "body",
		Primitives: []gltf.Primitive{{
			Attributes: map[string]int{"POSITION": pos, "JOINTS_0": joints, "WEIGHTS_0": weights},
		}},
	}}
	f.doc.Nodes = []gltf.Node{
		{Name: "Body", Mesh: common.Ptr(0), Skin: common.Ptr(0)},
		{Name: "Root", Children: []int{2}},
		{Name: "Child", Translation: &[3]float32{0, 1, 0}},
	}
	f.doc.Skins = []gltf.Skin{{InverseBindMatrices: common.Ptr(ibm), Joints: []int{1, 2}}}
	f.doc.Animations = []gltf.Animation{{
		Name:     "wave",
		Channels: []gltf.AnimationChannel{{Sampler: 0, Target: gltf.AnimationTarget{Node: common.Ptr(2), Path: gltf.PathRotation}}},
		Samplers: []gltf.AnimationSampler{{Input: times, Output: values, Interpolation: "CUBICSPLINE"}},
	}}
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{0, 1}}}
	return f
}

func newTestLoader(t *testing.T, options ...LoaderBuilderOption) Loader {
	t.Helper()
	l := NewLoader(options...)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLoadSkinnedCubicSplineGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.glb")
	if err := os.WriteFile(path, riggedFixture().glb(t), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	l := newTestLoader(t)

	result, err := l.Load(testContext(t), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var skinned []*scene.SkinnedMesh
	result.Scene.Traverse(func(o scene.Object) {
		if sm, ok := o.(*scene.SkinnedMesh); ok {
			skinned = append(skinned, sm)
		}
	})
	if len(skinned) != 1 {
		t.Fatalf("got %d skinned meshes, want 1", len(skinned))
	}
	sm := skinned[0]
	if sm.Name != "Body" {
		t.Errorf("skinned mesh name = %q, want Body", sm.Name)
	}

	skeleton := sm.Skeleton
	if skeleton == nil || len(skeleton.Bones) != 2 {
		t.Fatalf("skeleton = %+v, want two bones", skeleton)
	}
	root := result.Scene.GetObjectByName("Root")
	if skeleton.Bones[0] != root {
		t.Errorf("first bone is not the Root node of the scene graph")
	}
	if _, ok := skeleton.Bones[1].(*scene.Bone); !ok || skeleton.Bones[1].Base().Name != "Child" {
		t.Errorf("second bone = %T %q, want *scene.Bone Child", skeleton.Bones[1], skeleton.Bones[1].Base().Name)
	}
	if got := skeleton.BoneInverses[1][13]; got != -1 {
		t.Errorf("inverse bind translation y = %v, want -1", got)
	}

	weights := sm.Geometry.Attribute("skinWeight").Float32s()
	want := []float32{0.5, 0.5, 0, 0, 0.5, 0.5, 0, 0, 1, 0, 0, 0}
	for i := range want {
		if !approx(weights[i], want[i]) {
			t.Fatalf("skin weights = %v, want %v", weights, want)
		}
	}

	if len(result.Animations) != 1 {
		t.Fatalf("got %d animations, want 1", len(result.Animations))
	}
	clip := result.Animations[0]
	if clip.Name != "wave" || !approx(clip.Duration, 1) {
		t.Errorf("clip = %q duration %v", clip.Name, clip.Duration)
	}
	track := clip.Track("Child." + animation.PropertyQuaternion)
	if track == nil {
		t.Fatalf("no Child.quaternion track in %v", clip.Tracks)
	}
	if track.Kind != animation.TrackQuaternion || track.Interpolation != animation.InterpolateCubicSpline {
		t.Errorf("track kind %v interpolation %v", track.Kind, track.Interpolation)
	}
	if track.ValueSize() != 4 || len(track.Values) != 24 {
		t.Errorf("track value size %d with %d values", track.ValueSize(), len(track.Values))
	}
	end := track.CreateInterpolant().Evaluate(1)
	if !approx(end[2], 0.7071068) || !approx(end[3], 0.7071068) {
		t.Errorf("rotation at t=1 = %v", end)
	}
}

func TestLoaderCachesAndResolvesRelativeBuffers(t *testing.T) {
	dir := t.TempDir()
	f := newFixture()
	mesh := f.triangleMesh("tri")
	f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{0}}}
	f.doc.Buffers = []gltf.Buffer{{URI: "tri.bin", ByteLength: len(f.bin)}}

	content, err := json.Marshal(f.doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, "tri.gltf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write gltf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tri.bin"), f.bin, 0o644); err != nil {
		t.Fatalf("write bin: %v", err)
	}

	l := newTestLoader(t)
	ctx := testContext(t)
	first, err := l.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := first.Scene.Meshes(); len(got) != 1 || got[0].Geometry.VertexCount() != 3 {
		t.Fatalf("meshes = %v", got)
	}

	second, err := l.Load(ctx, path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second || l.Get(path) != first || len(l.Models()) != 1 {
		t.Errorf("result was not served from the cache")
	}

	l.Evict(path)
	if l.Get(path) != nil {
		t.Errorf("Evict left the entry cached")
	}
}

func TestLoaderWatchEvictsChangedFile(t *testing.T) {
	f := newFixture()
	f.doc.Scenes = []gltf.Scene{{}}
	content, err := json.Marshal(f.doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "empty.gltf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := newTestLoader(t, WithWatch(true))
	if _, err := l.Load(testContext(t), path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.WriteFile(path, append(content, ' '), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for l.Get(path) != nil {
		if time.Now().After(deadline) {
			t.Fatalf("cached result survived a file change")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	drc := filepath.Join(dir, "mesh.drc")
	if err := os.WriteFile(drc, []byte("DRACO"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	legacy := make([]byte, 20)
	binary.LittleEndian.PutUint32(legacy[0:], gltf.GLBMagic)
	binary.LittleEndian.PutUint32(legacy[4:], 1)
	binary.LittleEndian.PutUint32(legacy[8:], 20)
	legacyPath := filepath.Join(dir, "old.glb")
	if err := os.WriteFile(legacyPath, legacy, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	v1 := filepath.Join(dir, "v1.gltf")
	if err := os.WriteFile(v1, []byte(`{"asset":{"version":"1.0"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "draco without scheduler", url: drc, want: ErrMissingRequiredCapability},
		{name: "legacy binary", url: legacyPath, want: gltf.ErrLegacyVersion},
		{name: "version 1", url: v1, want: ErrUnsupportedAssetVersion},
		{name: "missing file", url: filepath.Join(dir, "nope.glb")},
		{name: "unknown format", url: filepath.Join(dir, "model.obj")},
	}
	l := newTestLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(testContext(t), tt.url)
			if err == nil {
				t.Fatalf("Load succeeded, want an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckAssetVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{version: "2.0", ok: true},
		{version: "2.1", ok: true},
		{version: "3.0", ok: true},
		{version: "1.0"},
		{version: ""},
		{version: "two"},
	}
	for _, tt := range tests {
		err := checkAssetVersion(gltf.Asset{Version: tt.version})
		if tt.ok != (err == nil) {
			t.Errorf("checkAssetVersion(%q) = %v", tt.version, err)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedAssetVersion) {
			t.Errorf("checkAssetVersion(%q) error %v does not wrap ErrUnsupportedAssetVersion", tt.version, err)
		}
	}
}

func TestLoaderParseDetectsContainer(t *testing.T) {
	f := newFixture()
	mesh := f.triangleMesh("tri")
	f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{0}}}
	glb := f.glb(t)

	l := newTestLoader(t)
	result, err := l.Parse(testContext(t), glb, "")
	if err != nil {
		t.Fatalf("Parse GLB: %v", err)
	}
	if len(result.Scene.Meshes()) != 1 {
		t.Errorf("GLB parse lost the mesh")
	}

	content := append([]byte{0xef, 0xbb, 0xbf}, []byte(`{"asset":{"version":"2.0"},"scenes":[{"name":"only"}]}`)...)
	result, err = l.Parse(testContext(t), content, "")
	if err != nil {
		t.Fatalf("Parse JSON: %v", err)
	}
	if result.Scene == nil || result.Scene.Name != "only" {
		t.Errorf("JSON parse lost the scene")
	}
	if result.Asset.Version != "2.0" {
		t.Errorf("asset version = %q", result.Asset.Version)
	}
}
