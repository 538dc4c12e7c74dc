package loader

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
)

type ParserBuilderOption func(*Parser)

// WithBody sets the GLB binary chunk backing buffer 0.
//
// Parameters:
//   - body: the BIN chunk, may be nil
//
// Returns:
//   - ParserBuilderOption: a function that applies the body to the parser
func WithBody(body []byte) ParserBuilderOption {
	return func(p *Parser) {
		p.body = body
	}
}

// WithPath sets the base URL relative buffer and image URIs are resolved against.
//
// Parameters:
//   - path: the base URL, ending in "/"
//
// Returns:
//   - ParserBuilderOption: a function that applies the path to the parser
func WithPath(path string) ParserBuilderOption {
	return func(p *Parser) {
		p.path = path
	}
}

// WithByteSource sets the fetcher for external buffers and images.
func WithByteSource(source ByteSource) ParserBuilderOption {
	return func(p *Parser) {
		p.byteSource = source
	}
}

// WithImageSource sets the image decoder.
func WithImageSource(source ImageSource) ParserBuilderOption {
	return func(p *Parser) {
		p.imageSource = source
	}
}

// WithDracoScheduler sets the scheduler used for KHR_draco_mesh_compression primitives.
// Without one, Draco-compressed primitives fail with ErrMissingRequiredCapability.
func WithDracoScheduler(s draco.Scheduler) ParserBuilderOption {
	return func(p *Parser) {
		p.dracoSched = s
	}
}

// WithKTX2Decoder sets the KHR_texture_basisu transcoder.
func WithKTX2Decoder(d KTX2Decoder) ParserBuilderOption {
	return func(p *Parser) {
		p.ktx2 = d
	}
}

// WithMeshoptDecoder sets the EXT_meshopt_compression decoder.
func WithMeshoptDecoder(d MeshoptDecoder) ParserBuilderOption {
	return func(p *Parser) {
		p.meshopt = d
	}
}

// WithPlugins registers additional plugins after the built-in ones.
//
// Parameters:
//   - factories: plugin constructors, called once with the parser
//
// Returns:
//   - ParserBuilderOption: a function that appends the plugins to the parser
func WithPlugins(factories ...PluginFactory) ParserBuilderOption {
	return func(p *Parser) {
		p.factories = append(p.factories, factories...)
	}
}

// WithProfiler records phase timings of the parse.
func WithProfiler(prof *profiler.Profiler) ParserBuilderOption {
	return func(p *Parser) {
		p.prof = prof
	}
}
