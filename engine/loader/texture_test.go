package loader

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestTextureFailureIsSoft(t *testing.T) {
	f := newFixture()
	mesh := f.triangleMesh("textured")
	f.doc.Meshes[mesh].Primitives[0].Material = common.Ptr(0)
	f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{0}}}

	f.doc.Images = []gltf.Image{
		{URI: "missing.png"},
		{URI: pngDataURI(t, 2, 2)},
	}
	f.doc.Samplers = []gltf.Sampler{{WrapS: common.Ptr(int(common.WrapClampToEdge))}}
	f.doc.Textures = []gltf.Texture{
		{Source: common.Ptr(0)},
		{Name: "glow", Source: common.Ptr(1), Sampler: common.Ptr(0)},
	}
	f.doc.Materials = []gltf.Material{{
		Name: "skin",
		PbrMetallicRoughness: &gltf.PbrMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		EmissiveTexture: &gltf.TextureInfo{Index: 1, TexCoord: 1},
	}}
	p := f.parser(WithPath(t.TempDir() + "/"))

	result, err := p.Parse(testContext(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	meshes := result.Scene.Meshes()
	if len(meshes) != 1 {
		t.Fatalf("got %d meshes", len(meshes))
	}
	mat := meshes[0].Material
	if mat.Map != nil {
		t.Errorf("broken base color texture was assigned")
	}

	tex := mat.EmissiveMap
	if tex == nil {
		t.Fatalf("emissive texture missing")
	}
	if tex.Name != "glow" || tex.Channel != 1 || tex.ColorSpace != model.ColorSpaceSRGB {
		t.Errorf("texture name %q channel %d color space %q", tex.Name, tex.Channel, tex.ColorSpace)
	}
	if tex.Sampler.WrapS != common.WrapClampToEdge || tex.Sampler.WrapT != common.WrapRepeat {
		t.Errorf("sampler = %+v", tex.Sampler)
	}
	if tex.Image == nil || tex.Image.Width != 2 || tex.Image.Height != 2 {
		t.Errorf("image = %+v", tex.Image)
	}
	if assoc, ok := p.Association(tex); !ok || assoc.Textures == nil || *assoc.Textures != 1 {
		t.Errorf("texture association = %+v", assoc)
	}
}

func TestTexturesShareSourceImage(t *testing.T) {
	f := newFixture()
	f.doc.Images = []gltf.Image{{URI: pngDataURI(t, 1, 1)}}
	f.doc.Samplers = []gltf.Sampler{{}}
	f.doc.Textures = []gltf.Texture{
		{Source: common.Ptr(0)},
		{Source: common.Ptr(0)},
		{Source: common.Ptr(0), Sampler: common.Ptr(0)},
	}
	p := f.parser()
	ctx := testContext(t)

	a, err := p.LoadTexture(ctx, 0).Await(ctx)
	if err != nil {
		t.Fatalf("texture 0: %v", err)
	}
	b, err := p.LoadTexture(ctx, 1).Await(ctx)
	if err != nil {
		t.Fatalf("texture 1: %v", err)
	}
	c, err := p.LoadTexture(ctx, 2).Await(ctx)
	if err != nil {
		t.Fatalf("texture 2: %v", err)
	}
	if a != b {
		t.Errorf("textures with the same source and sampler are distinct")
	}
	if a == c {
		t.Errorf("textures with different samplers share one object")
	}
	if a.Image != c.Image {
		t.Errorf("textures of one image do not share pixels")
	}
}

func TestTexturesSharingImageLoadConcurrently(t *testing.T) {
	f := newFixture()
	f.doc.Images = []gltf.Image{{URI: pngDataURI(t, 1, 1)}}
	f.doc.Samplers = []gltf.Sampler{
		{WrapS: common.Ptr(int(common.WrapClampToEdge))},
		{WrapS: common.Ptr(int(common.WrapMirroredRepeat))},
	}
	f.doc.Textures = []gltf.Texture{
		{Name: "clamped", Source: common.Ptr(0), Sampler: common.Ptr(0)},
		{Name: "mirrored", Source: common.Ptr(0), Sampler: common.Ptr(1)},
	}
	p := f.parser()
	ctx := testContext(t)

	var wg sync.WaitGroup
	got := make([]*model.Texture, 2)
	errs := make([]error, 2)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], errs[i] = dependency[*model.Texture](ctx, p, KindTexture, i).Await(ctx)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("texture %d: %v", i, err)
		}
	}
	if got[0] == got[1] {
		t.Fatalf("textures with different samplers share one object")
	}
	if got[0].Name != "clamped" || got[0].Sampler.WrapS != common.WrapClampToEdge {
		t.Errorf("texture 0 = %q %+v", got[0].Name, got[0].Sampler)
	}
	if got[1].Name != "mirrored" || got[1].Sampler.WrapS != common.WrapMirroredRepeat {
		t.Errorf("texture 1 = %q %+v", got[1].Name, got[1].Sampler)
	}
	if got[0].Image != got[1].Image {
		t.Errorf("textures of one image do not share pixels")
	}
}

func TestParserReleasesOwnedImageSource(t *testing.T) {
	f := newFixture()
	f.doc.Images = []gltf.Image{{URI: pngDataURI(t, 1, 1)}}
	f.doc.Textures = []gltf.Texture{{Source: common.Ptr(0)}}
	f.doc.Materials = []gltf.Material{{
		PbrMetallicRoughness: &gltf.PbrMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}},
	}}
	mesh := f.triangleMesh("textured")
	f.doc.Meshes[mesh].Primitives[0].Material = common.Ptr(0)
	f.doc.Scenes = []gltf.Scene{{Nodes: []int{f.addNode(gltf.Node{Mesh: common.Ptr(mesh)})}}}
	ctx := testContext(t)

	t.Run("owned", func(t *testing.T) {
		p := f.parser()
		result, err := p.Parse(ctx)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if result.Scene.Meshes()[0].Material.Map == nil {
			t.Fatalf("texture missing")
		}
		if p.imageSource != nil {
			t.Errorf("owned image source still open after Parse")
		}
		// resolved textures stay available
		if tex, err := p.LoadTexture(ctx, 0).Await(ctx); err != nil || tex == nil {
			t.Errorf("LoadTexture after Parse = %v, %v", tex, err)
		}
	})

	t.Run("injected", func(t *testing.T) {
		source := NewImageSource(1)
		t.Cleanup(source.Close)
		p := f.parser(WithImageSource(source))
		if _, err := p.Parse(ctx); err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if p.imageSource != source {
			t.Fatalf("injected image source was replaced")
		}
		data, err := base64.StdEncoding.DecodeString(pngDataURI(t, 1, 1)[len("data:image/png;base64,"):])
		if err != nil {
			t.Fatalf("decode data uri: %v", err)
		}
		if _, err := source.Decode(ctx, data, "image/png").Await(ctx); err != nil {
			t.Errorf("injected image source closed by Parse: %v", err)
		}
	})
}
