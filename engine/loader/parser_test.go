package loader

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/camera"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/light"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// testPlugin records the hooks the parser calls on it.
type testPlugin struct {
	name  string
	calls *[]string
}

func (e *testPlugin) Name() string { return e.name }

func (e *testPlugin) MarkDefs() {
	*e.calls = append(*e.calls, e.name+":mark")
}

func (e *testPlugin) GetDependency(ctx context.Context, kind DependencyKind, index int) *future.Future[any] {
	if kind != "custom" {
		return nil
	}
	return future.Resolved[any](index * 10)
}

func (e *testPlugin) AfterRoot(ctx context.Context, result *GLTF) error {
	result.UserData[e.name] = true
	return nil
}

func TestGetDependencySharesFuture(t *testing.T) {
	f := newFixture()
	f.addFloats(gltf.TypeScalar, 1, 2)
	p := f.parser()
	ctx := testContext(t)

	a := p.GetDependency(ctx, KindAccessor, 0)
	b := p.GetDependency(ctx, KindAccessor, 0)
	if a != b {
		t.Fatalf("same key returned distinct futures")
	}
	if _, err := a.Await(ctx); err != nil {
		t.Fatalf("accessor: %v", err)
	}
}

func TestGetDependencyKinds(t *testing.T) {
	var calls []string
	factory := func(p *Parser) Extension { return &testPlugin{name: "TEST_plugin", calls: &calls} }
	p := newFixture().parser(WithPlugins(factory))
	ctx := testContext(t)

	v, err := p.GetDependency(ctx, "custom", 4).Await(ctx)
	if err != nil {
		t.Fatalf("custom kind: %v", err)
	}
	if v != 40 {
		t.Errorf("custom kind resolved to %v, want 40", v)
	}

	if _, err := p.GetDependency(ctx, "nonsense", 0).Await(ctx); !errors.Is(err, ErrUnknownDependencyKind) {
		t.Errorf("err = %v, want ErrUnknownDependencyKind", err)
	}
	if _, err := p.GetDependency(ctx, KindNode, 3).Await(ctx); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestPluginOrderAndHooks(t *testing.T) {
	var calls []string
	first := func(p *Parser) Extension { return &testPlugin{name: "TEST_first", calls: &calls} }
	second := func(p *Parser) Extension { return &testPlugin{name: "TEST_second", calls: &calls} }

	f := newFixture()
	f.doc.Scenes = []gltf.Scene{{}}
	p := f.parser(WithPlugins(first, second))

	plugins := p.Plugins()
	if len(plugins) < 2 || plugins[len(plugins)-2].Name() != "TEST_first" || plugins[len(plugins)-1].Name() != "TEST_second" {
		t.Fatalf("user plugins are not registered after the built-ins in order")
	}
	if p.Extension(gltf.ExtLightsPunctual) == nil {
		t.Errorf("built-in lights plugin is not registered")
	}

	result, err := p.Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(calls, []string{"TEST_first:mark", "TEST_second:mark"}) {
		t.Errorf("MarkDefs calls = %v", calls)
	}
	if result.UserData["TEST_first"] != true || result.UserData["TEST_second"] != true {
		t.Errorf("AfterRoot hooks did not run: %v", result.UserData)
	}
}

func TestCreateUniqueName(t *testing.T) {
	p := NewParser(&gltf.Document{Asset: gltf.Asset{Version: "2.0"}})
	tests := []struct {
		in   string
		want string
	}{
		{in: "node", want: "node"},
		{in: "node", want: "node_1"},
		{in: "node", want: "node_2"},
		{in: "left arm", want: "left_arm"},
		{in: "a.b:c/d[0]", want: "abcd0"},
		{in: "left arm", want: "left_arm_1"},
	}
	for _, tt := range tests {
		if got := p.createUniqueName(tt.in); got != tt.want {
			t.Errorf("createUniqueName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseInstancesSharedMesh(t *testing.T) {
	f := newFixture()
	mesh := f.triangleMesh("")
	a := f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})
	b := f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{a, b}}}
	p := f.parser()

	result, err := p.Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.MeshRefs().Refs(mesh); got != 2 {
		t.Errorf("mesh refs = %d, want 2", got)
	}

	meshes := result.Scene.Meshes()
	if len(meshes) != 2 {
		t.Fatalf("got %d meshes, want 2", len(meshes))
	}
	if meshes[0] == meshes[1] {
		t.Fatalf("both nodes received the same object")
	}
	if meshes[0].Geometry != meshes[1].Geometry {
		t.Errorf("instances do not share geometry")
	}

	// the lowest-indexed node keeps the original
	names := []string{meshes[0].Name, meshes[1].Name}
	if !slices.Equal(names, []string{"mesh_0", "mesh_0_instance_1"}) {
		t.Errorf("names = %v, want [mesh_0 mesh_0_instance_1]", names)
	}
	for _, m := range result.Scene.Base().Children() {
		assoc, ok := p.Association(m)
		if !ok || assoc.Meshes == nil || *assoc.Meshes != mesh {
			t.Errorf("%s has association %+v, want mesh %d", m.Base().Name, assoc, mesh)
		}
	}
	if p.State() != StateDone {
		t.Errorf("state = %v, want Done", p.State())
	}
}

func TestParseNamesFollowDocumentOrder(t *testing.T) {
	f := newFixture()
	mesh := f.triangleMesh("Dup")
	var nodes []int
	for range 3 {
		nodes = append(nodes, f.addNode(gltf.Node{Name: "Dup", Mesh: common.Ptr(mesh)}))
	}
	f.doc.Scenes = []gltf.Scene{{Name: "Dup", Nodes: nodes}}
	f.finish()

	for range 50 {
		p := NewParser(f.doc, WithBody(f.bin))
		result, err := p.Parse(testContext(t))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if result.Scene.Name != "Dup" {
			t.Fatalf("scene name = %q, want Dup", result.Scene.Name)
		}

		var got []string
		for _, child := range result.Scene.Base().Children() {
			got = append(got, child.Base().Name)
		}
		// scene, then nodes, then the mesh primitive
		if want := []string{"Dup_1", "Dup_2", "Dup_3"}; !slices.Equal(got, want) {
			t.Fatalf("node names = %v, want %v", got, want)
		}
		for i, child := range result.Scene.Base().Children() {
			assoc, ok := p.Association(child)
			if !ok || assoc.Nodes == nil || *assoc.Nodes != nodes[i] {
				t.Fatalf("child %d has association %+v, want node %d", i, assoc, nodes[i])
			}
		}
	}
}

func TestParseUserData(t *testing.T) {
	f := newFixture()
	f.doc.Nodes = []gltf.Node{
		{
			Name:       "tagged",
			Extras:     json.RawMessage(`{"tag":"x"}`),
			Extensions: map[string]json.RawMessage{"VENDOR_thing": json.RawMessage(`{"a":1}`)},
		},
		{Name: "scalar extras", Extras: json.RawMessage(`5`)},
	}
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{0, 1}}}
	f.doc.Extensions = map[string]json.RawMessage{"VENDOR_root": json.RawMessage(`true`)}
	f.doc.Extras = json.RawMessage(`{"author":"me"}`)
	f.doc.ExtensionsUsed = []string{"VENDOR_thing", "VENDOR_root"}

	result, err := f.parser().Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tagged := result.Scene.GetObjectByName("tagged")
	if tagged == nil {
		t.Fatalf("node tagged not found")
	}
	ud := tagged.Base().UserData
	if ud["tag"] != "x" || ud["name"] != "tagged" {
		t.Errorf("user data = %v", ud)
	}
	exts, _ := ud["gltfExtensions"].(map[string]any)
	thing, _ := exts["VENDOR_thing"].(map[string]any)
	if thing["a"] != float64(1) {
		t.Errorf("unknown node extension not preserved: %v", ud["gltfExtensions"])
	}

	plain := result.Scene.GetObjectByName("scalar_extras")
	if plain == nil {
		t.Fatalf("node scalar_extras not found")
	}
	if _, ok := plain.Base().UserData["0"]; ok || len(plain.Base().UserData) != 1 {
		t.Errorf("scalar extras were merged: %v", plain.Base().UserData)
	}

	if result.UserData["author"] != "me" {
		t.Errorf("document extras missing: %v", result.UserData)
	}
	rootExts, _ := result.UserData["gltfExtensions"].(map[string]any)
	if rootExts["VENDOR_root"] != true {
		t.Errorf("unknown root extension missing: %v", result.UserData)
	}
}

func TestParseDefaultScene(t *testing.T) {
	f := newFixture()
	f.doc.Scenes = []gltf.Scene{{Name: "first"}, {Name: "second"}}
	f.doc.Scene = common.Ptr(1)

	result, err := f.parser().Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Scenes) != 2 || result.Scene != result.Scenes[1] {
		t.Fatalf("default scene is not scenes[1]")
	}
	if result.Scene.Name != "second" {
		t.Errorf("scene name = %q", result.Scene.Name)
	}
}

func TestParseFailureState(t *testing.T) {
	f := newFixture()
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{7}}}
	p := f.parser()

	if _, err := p.Parse(testContext(t)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want Failed", p.State())
	}
}

func TestParseCancelled(t *testing.T) {
	f := newFixture()
	f.doc.Scenes = []gltf.Scene{{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.parser().Parse(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestParseCameras(t *testing.T) {
	f := newFixture()
	f.doc.Cameras = []gltf.Camera{
		{Name: "eye", Type: gltf.CameraPerspective, Perspective: &gltf.Perspective{Yfov: 1, Znear: 0.1}},
		{Type: gltf.CameraOrthographic, Orthographic: &gltf.Orthographic{Xmag: 2, Ymag: 1, Znear: 0.1, Zfar: 10}},
		{Type: gltf.CameraPerspective},
	}
	node := f.addNode(gltf.Node{Camera: common.Ptr(0)})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{node}}}

	result, err := f.parser().Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Cameras) != 2 {
		t.Fatalf("got %d cameras, want 2", len(result.Cameras))
	}
	persp, ok := result.Cameras[0].(*camera.PerspectiveCamera)
	if !ok {
		t.Fatalf("camera 0 is %T", result.Cameras[0])
	}
	if persp.Name != "eye" || !approx(persp.Near(), 0.1) || !approx(persp.Far(), 2e6) {
		t.Errorf("perspective camera = %q near %v far %v", persp.Name, persp.Near(), persp.Far())
	}
	ortho, ok := result.Cameras[1].(*camera.OrthographicCamera)
	if !ok {
		t.Fatalf("camera 1 is %T", result.Cameras[1])
	}
	if !approx(ortho.XMag(), 2) || !approx(ortho.YMag(), 1) {
		t.Errorf("orthographic extents = %v, %v", ortho.XMag(), ortho.YMag())
	}

	placed := result.Scene.Base().Children()
	if len(placed) != 1 || placed[0] != scene.Object(persp) {
		t.Errorf("node does not hold the camera: %v", placed)
	}
}

func TestParseSharedLights(t *testing.T) {
	f := newFixture()
	f.doc.ExtensionsUsed = []string{gltf.ExtLightsPunctual}
	f.doc.Extensions = map[string]json.RawMessage{
		gltf.ExtLightsPunctual: json.RawMessage(`{"lights":[{"type":"spot","intensity":3,"spot":{"outerConeAngle":0.5}}]}`),
	}
	nodeExt := map[string]json.RawMessage{gltf.ExtLightsPunctual: json.RawMessage(`{"light":0}`)}
	a := f.addNode(gltf.Node{Extensions: nodeExt})
	b := f.addNode(gltf.Node{Extensions: nodeExt})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{a, b}}}

	result, err := f.parser().Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var lights []*light.Light
	result.Scene.Traverse(func(o scene.Object) {
		if l, ok := o.(*light.Light); ok {
			lights = append(lights, l)
		}
	})
	if len(lights) != 2 {
		t.Fatalf("got %d lights, want 2", len(lights))
	}
	names := []string{lights[0].Name, lights[1].Name}
	if !slices.Equal(names, []string{"light_0", "light_0_instance_1"}) {
		t.Errorf("names = %v", names)
	}
	for _, l := range lights {
		if l.Type != light.LightTypeSpot || !approx(l.Intensity, 3) || !approx(l.Angle, 0.5) {
			t.Errorf("light %s = %+v", l.Name, l)
		}
	}
	if _, ok := result.UserData["gltfExtensions"]; ok {
		t.Errorf("handled root extension was copied to user data")
	}
}
