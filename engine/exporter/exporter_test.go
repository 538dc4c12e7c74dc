package exporter

import (
	"context"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/camera"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/light"
	"github.com/Carmen-Shannon/oxy-gltf/engine/loader"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"

	"github.com/go-gl/mathgl/mgl32"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func floatsAttr(itemSize int, values ...float32) *model.BufferAttribute {
	return model.NewBufferAttribute(model.FromSlice(model.ComponentFloat32, values), itemSize, false)
}

func triangleGeometry() *model.Geometry {
	g := model.NewGeometry()
	g.Name = "tri_geometry"
	g.SetAttribute("position", floatsAttr(3, 0, 0, 0, 1, 0, 0, 0, 1, 0))
	g.SetAttribute("normal", floatsAttr(3, 0, 0, 1, 0, 0, 1, 0, 0, 1))
	g.SetAttribute("uv", floatsAttr(2, 0, 0, 1, 0, 0, 1))
	g.Index = model.NewBufferAttribute(model.FromSlice(model.ComponentUint16, []uint16{0, 1, 2}), 1, false)
	return g
}

func checkerTexture() *model.Texture {
	pixels := make([]byte, 2*2*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+3] = 255, 255
	}
	tex := model.NewTexture(&common.ImageData{Pixels: pixels, Width: 2, Height: 2, MimeType: "image/png"})
	tex.Name = "checker"
	tex.Sampler.WrapS = common.WrapClampToEdge
	return tex
}

func paintMaterial(tex *model.Texture) *model.Material {
	params := model.DefaultMaterialParams()
	params.Name = "paint"
	params.Color = [3]float32{1, 0, 0}
	params.Metalness = 0.25
	params.Roughness = 0.5
	params.Map = tex
	params.Side = model.DoubleSide
	return model.NewMaterial(model.MaterialStandard, params)
}

func newTestLoader(t *testing.T) loader.Loader {
	t.Helper()
	l := loader.NewLoader()
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func find[T scene.Object](root scene.Object) T {
	var found T
	var zero T
	root.Base().Traverse(func(o scene.Object) {
		if v, ok := o.(T); ok && any(found) == any(zero) {
			found = v
		}
	})
	return found
}

func TestExportRoundTrip(t *testing.T) {
	world := scene.NewScene()
	world.Name = "World"

	mesh := scene.NewMesh(triangleGeometry(), paintMaterial(checkerTexture()), model.DrawTriangles)
	mesh.Name = "Tri"
	mesh.Position = mgl32.Vec3{1, 2, 3}
	mesh.UserData["tag"] = "hero"

	cam := camera.NewPerspectiveCamera(camera.WithFov(60), camera.WithAspect(1.5), camera.WithName("Cam"))
	spot := light.NewLight(light.LightTypeSpot, light.WithName("Spot"), light.WithIntensity(3), light.WithSpotCone(0.25, 0.5))
	world.Add(mesh, cam, spot)

	clip := animation.NewAnimationClip("move", -1, []*animation.KeyframeTrack{
		animation.NewKeyframeTrack("Tri.position", animation.TrackVector, []float32{0, 1}, []float32{1, 2, 3, 4, 5, 6}, animation.InterpolateLinear),
		animation.NewKeyframeTrack("Ghost.position", animation.TrackVector, []float32{0}, []float32{0, 0, 0}, animation.InterpolateLinear),
	})
	opts := DefaultOptions()
	opts.Animations = []*animation.AnimationClip{clip}

	ctx := testContext(t)
	result, err := NewExporter().Parse(ctx, []scene.Object{world}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	doc := result.Document
	if len(doc.Scenes) != 1 || doc.Scenes[0].Name != "World" || len(doc.Scenes[0].Nodes) != 3 {
		t.Fatalf("scenes = %+v", doc.Scenes)
	}
	if len(doc.Meshes) != 1 || len(doc.Materials) != 1 || len(doc.Textures) != 1 || len(doc.Images) != 1 || len(doc.Cameras) != 1 {
		t.Errorf("got %d meshes, %d materials, %d textures, %d images, %d cameras",
			len(doc.Meshes), len(doc.Materials), len(doc.Textures), len(doc.Images), len(doc.Cameras))
	}
	if !doc.ExtensionUsed(gltf.ExtLightsPunctual) {
		t.Errorf("extensionsUsed = %v", doc.ExtensionsUsed)
	}
	if len(doc.Animations) != 1 || len(doc.Animations[0].Channels) != 1 {
		t.Errorf("animations = %+v", doc.Animations)
	}
	if len(doc.Buffers) != 1 || !strings.HasPrefix(doc.Buffers[0].URI, "data:application/octet-stream;base64,") {
		t.Errorf("buffers = %+v", doc.Buffers)
	}
	if result.GLB != nil {
		t.Errorf("GLB written without Binary")
	}
	pos := doc.Accessors[doc.Meshes[0].Primitives[0].Attributes["POSITION"]]
	if !slices.Equal(pos.Min, []float32{0, 0, 0}) || !slices.Equal(pos.Max, []float32{1, 1, 0}) {
		t.Errorf("POSITION bounds min %v max %v", pos.Min, pos.Max)
	}

	loaded, err := newTestLoader(t).Parse(ctx, result.JSON, "")
	if err != nil {
		t.Fatalf("loader Parse: %v", err)
	}

	meshes := loaded.Scene.Meshes()
	if len(meshes) != 1 {
		t.Fatalf("got %d meshes", len(meshes))
	}
	got := meshes[0]
	if got.Name != "Tri" || got.Position != (mgl32.Vec3{1, 2, 3}) || got.UserData["tag"] != "hero" {
		t.Errorf("mesh name %q position %v user data %v", got.Name, got.Position, got.UserData)
	}
	if !slices.Equal(got.Geometry.Attribute("position").Float32s(), []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}) {
		t.Errorf("positions = %v", got.Geometry.Attribute("position").Float32s())
	}
	if got.Geometry.Index == nil || !slices.Equal(got.Geometry.Index.Array().Uint32s(), []uint32{0, 1, 2}) {
		t.Errorf("index = %+v", got.Geometry.Index)
	}

	mat := got.Material
	if mat.Name != "paint" || mat.Color != [3]float32{1, 0, 0} || !approx(mat.Metalness, 0.25) || mat.Side != model.DoubleSide {
		t.Errorf("material = %+v", mat.MaterialParams)
	}
	if mat.Map == nil || mat.Map.Image == nil || mat.Map.Image.Width != 2 || mat.Map.Sampler.WrapS != common.WrapClampToEdge {
		t.Errorf("base color texture = %+v", mat.Map)
	}

	c := find[*camera.PerspectiveCamera](loaded.Scene)
	if c == nil || !approx(c.Fov, 60) || !approx(c.Aspect, 1.5) {
		t.Errorf("camera = %+v", c)
	}
	l := find[*light.Light](loaded.Scene)
	if l == nil || l.Type != light.LightTypeSpot || !approx(l.Intensity, 3) || !approx(l.Angle, 0.5) || !approx(l.InnerConeAngle(), 0.25) {
		t.Errorf("light = %+v", l)
	}

	if len(loaded.Animations) != 1 {
		t.Fatalf("got %d animations", len(loaded.Animations))
	}
	track := loaded.Animations[0].Track("Tri.position")
	if track == nil || !slices.Equal(track.Values, []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("track = %+v", track)
	}
}

func TestExportSkinnedGLB(t *testing.T) {
	root := scene.NewBone()
	root.Name = "Root"
	tip := scene.NewBone()
	tip.Name = "Tip"
	tip.Position = mgl32.Vec3{0, 1, 0}
	root.Add(tip)

	geo := triangleGeometry()
	geo.SetAttribute("skinIndex", model.NewBufferAttribute(model.FromSlice(model.ComponentUint16, []uint16{0, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}), 4, false))
	geo.SetAttribute("skinWeight", floatsAttr(4, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0))
	body := scene.NewSkinnedMesh(geo, paintMaterial(checkerTexture()))
	body.Name = "Body"
	body.Bind(scene.NewSkeleton([]scene.Object{root, tip}, []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, -1, 0)}), mgl32.Ident4())

	rig := scene.NewGroup()
	rig.Name = "Rig"
	rig.Add(root, body)

	ctx := testContext(t)
	result, err := NewExporter().Parse(ctx, []scene.Object{rig}, Options{Binary: true, EmbedImages: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !gltf.IsBinaryContainer(result.GLB) {
		t.Fatalf("GLB output is not a binary container")
	}
	doc := result.Document
	if len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != 2 {
		t.Fatalf("skins = %+v", doc.Skins)
	}
	if doc.Images[0].BufferView == nil || doc.Images[0].URI != "" {
		t.Errorf("binary export did not store the image in a buffer view: %+v", doc.Images[0])
	}

	loaded, err := newTestLoader(t).Parse(ctx, result.GLB, "")
	if err != nil {
		t.Fatalf("loader Parse: %v", err)
	}
	skinned := find[*scene.SkinnedMesh](loaded.Scene)
	if skinned == nil || skinned.Skeleton == nil {
		t.Fatalf("skinned mesh missing")
	}
	bones := skinned.Skeleton.Bones
	if len(bones) != 2 || bones[0].Base().Name != "Root" || bones[1].Base().Name != "Tip" {
		t.Fatalf("bones = %v", bones)
	}
	if !approx(skinned.Skeleton.BoneInverses[1][13], -1) {
		t.Errorf("inverse bind matrix = %v", skinned.Skeleton.BoneInverses[1])
	}
	joints := skinned.Geometry.Attribute("skinIndex")
	if joints == nil || joints.ComponentType() != model.ComponentUint16 || joints.Component(1, 0) != 1 {
		t.Errorf("skinIndex = %+v", joints)
	}
	if skinned.Material.Map == nil || skinned.Material.Map.Image == nil {
		t.Errorf("texture lost through the binary chunk")
	}
}

func TestExportOptions(t *testing.T) {
	geo := triangleGeometry()
	mat := paintMaterial(checkerTexture())
	a := scene.NewMesh(geo, mat, model.DrawTriangles)
	a.Name = "a"
	hidden := scene.NewMesh(geo, mat, model.DrawTriangles)
	hidden.Name = "hidden"
	hidden.Visible = false
	hidden.Add(scene.NewMesh(geo, mat, model.DrawTriangles))
	b := scene.NewMesh(geo, mat, model.DrawLines)
	b.Name = "b"

	result, err := NewExporter(WithGenerator("test suite")).Parse(testContext(t), []scene.Object{a, hidden, b},
		Options{OnlyVisible: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	doc := result.Document

	if doc.Asset.Generator != "test suite" || doc.Asset.Version != "2.0" {
		t.Errorf("asset = %+v", doc.Asset)
	}
	if len(doc.Scenes) != 1 || len(doc.Scenes[0].Nodes) != 2 || len(doc.Nodes) != 2 {
		t.Errorf("got %d scenes and %d nodes", len(doc.Scenes), len(doc.Nodes))
	}
	if len(doc.Meshes) != 2 {
		t.Errorf("got %d meshes, want one per draw mode", len(doc.Meshes))
	}
	if len(doc.Accessors) != 4 {
		t.Errorf("got %d accessors, want shared attributes written once", len(doc.Accessors))
	}
	if mode := doc.Meshes[1].Primitives[0].Mode; mode == nil || *mode != gltf.ModeLines {
		t.Errorf("line mesh mode = %v", mode)
	}
	if len(doc.Textures) != 0 || len(doc.Images) != 0 || doc.Materials[0].PbrMetallicRoughness.BaseColorTexture != nil {
		t.Errorf("textures exported with EmbedImages off")
	}
}

func TestExportMaterialExtensions(t *testing.T) {
	unlitParams := model.DefaultMaterialParams()
	unlitParams.Color = [3]float32{0, 1, 0}
	unlit := model.NewMaterial(model.MaterialBasic, unlitParams)

	glowParams := model.DefaultMaterialParams()
	glowParams.Emissive = [3]float32{1, 1, 1}
	glowParams.EmissiveIntensity = 4
	glowParams.AlphaTest = 0.3
	glow := model.NewMaterial(model.MaterialStandard, glowParams)

	geo := triangleGeometry()
	flat := scene.NewMesh(geo, unlit, model.DrawTriangles)
	flat.Name = "flat"
	lit := scene.NewMesh(geo, glow, model.DrawTriangles)
	lit.Name = "lit"

	ctx := testContext(t)
	result, err := NewExporter().Parse(ctx, []scene.Object{flat, lit}, DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, ext := range []string{gltf.ExtMaterialsUnlit, gltf.ExtMaterialsEmissiveStrength} {
		if !result.Document.ExtensionUsed(ext) {
			t.Errorf("%s not in extensionsUsed %v", ext, result.Document.ExtensionsUsed)
		}
	}

	loaded, err := newTestLoader(t).Parse(ctx, result.JSON, "")
	if err != nil {
		t.Fatalf("loader Parse: %v", err)
	}
	byName := map[string]*scene.Mesh{}
	for _, m := range loaded.Scene.Meshes() {
		byName[m.Name] = m
	}
	if m := byName["flat"]; m == nil || m.Material.Kind != model.MaterialBasic || m.Material.Color != [3]float32{0, 1, 0} {
		t.Errorf("unlit material did not survive: %+v", m)
	}
	if m := byName["lit"]; m == nil || !approx(m.Material.EmissiveIntensity, 4) || !approx(m.Material.AlphaTest, 0.3) {
		t.Errorf("emissive material did not survive: %+v", m)
	}
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExporter().Parse(ctx, []scene.Object{scene.NewNode()}, DefaultOptions()); err == nil {
		t.Errorf("cancelled export succeeded")
	}
}
