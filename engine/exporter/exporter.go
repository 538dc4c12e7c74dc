package exporter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/animation"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

const defaultGenerator = "oxy-gltf exporter"

// Options controls a single export.
type Options struct {
	// Binary additionally packs the document into a GLB container.
	Binary bool

	// OnlyVisible skips invisible objects and their descendants.
	OnlyVisible bool

	// EmbedImages writes texture images as PNG. When false, materials keep their factors but lose their textures.
	EmbedImages bool

	// Animations are exported when their tracks target exported nodes.
	Animations []*animation.AnimationClip
}

// DefaultOptions returns JSON output with embedded images.
func DefaultOptions() Options {
	return Options{EmbedImages: true}
}

// Result is the output of an export.
type Result struct {
	// Document is the generated glTF JSON document.
	Document *gltf.Document

	// JSON is the marshaled document. Its buffer is embedded as a base64 data URI.
	JSON []byte

	// GLB is the binary container, set only when Options.Binary is true.
	GLB []byte
}

// Exporter serializes scene graphs into glTF 2.0.
type Exporter interface {
	// Parse walks the input objects and builds a glTF document. A *scene.Scene input becomes its own
	// glTF scene. Any other objects are collected into one default scene.
	//
	// Parameters:
	//   - ctx: checked between top-level objects
	//   - input: the objects to export
	//   - opts: the export options
	//
	// Returns:
	//   - *Result: the document and its encodings
	//   - error: error if an attribute or image cannot be encoded
	Parse(ctx context.Context, input []scene.Object, opts Options) (*Result, error)
}

type exporter struct {
	generator string
	copyright string
}

var _ Exporter = &exporter{}

// NewExporter creates a new exporter.
//
// Parameters:
//   - options: variadic list of ExporterBuilderOption to configure the exporter
//
// Returns:
//   - Exporter: the configured exporter
func NewExporter(options ...ExporterBuilderOption) Exporter {
	e := &exporter{generator: defaultGenerator}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *exporter) Parse(ctx context.Context, input []scene.Object, opts Options) (*Result, error) {
	w := newWriter(opts)
	w.doc.Asset = gltf.Asset{Version: "2.0", Generator: e.generator, Copyright: e.copyright}

	var loose []int
	for _, obj := range input {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if obj == nil {
			continue
		}

		if s, ok := obj.(*scene.Scene); ok {
			if err := w.processScene(s); err != nil {
				return nil, err
			}
			continue
		}
		idx, err := w.processNode(obj)
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			loose = append(loose, idx)
		}
	}
	if len(loose) > 0 {
		w.doc.Scenes = append(w.doc.Scenes, gltf.Scene{Nodes: loose})
	}
	if len(w.doc.Scenes) > 0 {
		w.doc.Scene = common.Ptr(0)
	}

	w.processSkins()
	for _, clip := range opts.Animations {
		w.processAnimation(clip)
	}
	if err := w.finishLights(); err != nil {
		return nil, err
	}
	slices.Sort(w.doc.ExtensionsUsed)

	result := &Result{Document: w.doc}
	bin := w.bin.Bytes()
	if len(bin) > 0 {
		w.doc.Buffers = []gltf.Buffer{{ByteLength: len(bin)}}
	}

	if opts.Binary {
		data, err := json.Marshal(w.doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal glTF document: %w", err)
		}
		result.GLB = gltf.EncodeBinaryContainer(data, bin)
	}

	if len(bin) > 0 {
		w.doc.Buffers[0].URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
	}
	data, err := json.Marshal(w.doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal glTF document: %w", err)
	}
	result.JSON = data

	common.LogDebug("exported %d nodes, %d meshes, %d materials, %d animations (%d bytes of buffer data)",
		len(w.doc.Nodes), len(w.doc.Meshes), len(w.doc.Materials), len(w.doc.Animations), len(bin))
	return result, nil
}
