package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/config"
	"github.com/Carmen-Shannon/oxy-gltf/engine/exporter"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

func writeTriangleModel(t *testing.T, dir string) {
	t.Helper()
	g := model.NewGeometry()
	g.SetAttribute("position", model.NewBufferAttribute(
		model.FromSlice(model.ComponentFloat32, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}), 3, false))
	mat := model.NewMaterial(model.MaterialStandard, model.DefaultMaterialParams())

	world := scene.NewScene()
	a := scene.NewMesh(g, mat, model.DrawTriangles)
	a.Name = "a"
	b := scene.NewMesh(g, mat, model.DrawTriangles)
	b.Name = "b"
	world.Add(a, b)

	result, err := exporter.NewExporter().Parse(context.Background(), []scene.Object{world}, exporter.DefaultOptions())
	if err != nil {
		t.Fatalf("export fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tri.gltf"), result.JSON, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestEngineLoadConvert(t *testing.T) {
	dir := t.TempDir()
	writeTriangleModel(t, dir)

	cfg := config.Default()
	cfg.Loader.Path = dir
	cfg.Log.Level = "error"
	e := NewEngine(WithConfig(cfg), WithProfiling(true))
	t.Cleanup(e.Dispose)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loaded, err := e.Load(ctx, "tri.gltf")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sum := Summarize(loaded)
	if sum.Scenes != 1 || sum.Nodes != 2 || sum.Meshes != 2 || sum.Materials != 1 || sum.Version != "2.0" {
		t.Errorf("summary = %+v", sum)
	}

	tests := []struct {
		name   string
		out    string
		binary bool
	}{
		{name: "glb", out: "out.glb", binary: true},
		{name: "gltf", out: "out.gltf", binary: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.out)
			if err := e.Convert(ctx, "tri.gltf", out); err != nil {
				t.Fatalf("Convert: %v", err)
			}
			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("read output: %v", err)
			}
			if gltf.IsBinaryContainer(data) != tt.binary {
				t.Errorf("binary container = %v, want %v", !tt.binary, tt.binary)
			}

			again, err := e.Load(ctx, out)
			if err != nil {
				t.Fatalf("Load converted: %v", err)
			}
			if got := Summarize(again); got.Meshes != 2 || got.Materials != 1 {
				t.Errorf("converted summary = %+v", got)
			}
		})
	}
}

func TestEngineResolveLocation(t *testing.T) {
	tests := []struct {
		base     string
		location string
		want     string
	}{
		{base: "", location: "a.gltf", want: "a.gltf"},
		{base: "models", location: "a.gltf", want: filepath.Join("models", "a.gltf")},
		{base: "models", location: "/abs/a.gltf", want: "/abs/a.gltf"},
		{base: "models", location: "https://host/a.gltf", want: "https://host/a.gltf"},
		{base: "https://cdn/models/", location: "a.gltf", want: "https://cdn/models/a.gltf"},
		{base: "models", location: "data:model/gltf+json,{}", want: "data:model/gltf+json,{}"},
	}
	for _, tt := range tests {
		e := &engine{cfg: config.Config{Loader: config.LoaderConfig{Path: tt.base}}}
		if got := e.resolveLocation(tt.location); got != tt.want {
			t.Errorf("resolveLocation(%q) with base %q = %q, want %q", tt.location, tt.base, got, tt.want)
		}
	}
}

func TestEngineDispose(t *testing.T) {
	e := NewEngine()
	e.Dispose()
	e.Dispose()
	if _, err := e.Load(context.Background(), "missing.gltf"); err == nil {
		t.Errorf("Load succeeded after Dispose")
	}
	if opts := e.ExportOptions(); !opts.EmbedImages || opts.Binary {
		t.Errorf("export options = %+v", opts)
	}
}
