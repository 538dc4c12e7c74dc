package loader

import (
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLoaderByteSource is an option builder that replaces the default file and HTTP byte source.
//
// Parameters:
//   - source: the byte source
//
// Returns:
//   - LoaderBuilderOption: a function that applies the byte source option to a loader
func WithLoaderByteSource(source ByteSource) LoaderBuilderOption {
	return func(l *loader) {
		l.byteSource = source
	}
}

// WithLoaderImageSource is an option builder that replaces the default image decoder.
// The loader does not close a source it was given.
//
// Parameters:
//   - source: the image source
//
// Returns:
//   - LoaderBuilderOption: a function that applies the image source option to a loader
func WithLoaderImageSource(source ImageSource) LoaderBuilderOption {
	return func(l *loader) {
		l.imageSource = source
	}
}

// WithImageWorkers sets how many images the default image source decodes at once.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker option to a loader
func WithImageWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.imageWorkers = n
	}
}

// WithLoaderDracoScheduler is an option builder that enables KHR_draco_mesh_compression and .drc files.
//
// Parameters:
//   - s: the Draco scheduler
//
// Returns:
//   - LoaderBuilderOption: a function that applies the scheduler option to a loader
func WithLoaderDracoScheduler(s draco.Scheduler) LoaderBuilderOption {
	return func(l *loader) {
		l.dracoSched = s
	}
}

// WithLoaderKTX2Decoder enables KHR_texture_basisu.
func WithLoaderKTX2Decoder(d KTX2Decoder) LoaderBuilderOption {
	return func(l *loader) {
		l.ktx2 = d
	}
}

// WithLoaderMeshoptDecoder enables EXT_meshopt_compression.
func WithLoaderMeshoptDecoder(d MeshoptDecoder) LoaderBuilderOption {
	return func(l *loader) {
		l.meshopt = d
	}
}

// WithPlugin registers extension plugin factories. Each parse calls every factory once.
//
// Parameters:
//   - factories: the plugin factories
//
// Returns:
//   - LoaderBuilderOption: a function that applies the plugin option to a loader
func WithPlugin(factories ...PluginFactory) LoaderBuilderOption {
	return func(l *loader) {
		l.plugins = append(l.plugins, factories...)
	}
}

// WithResourcePath sets the base that relative uris resolve against, overriding the
// directory of the loaded URL.
//
// Parameters:
//   - path: the resource base path or URL
//
// Returns:
//   - LoaderBuilderOption: a function that applies the path option to a loader
func WithResourcePath(path string) LoaderBuilderOption {
	return func(l *loader) {
		l.resourcePath = path
	}
}

// WithProgress installs a fetch progress callback on the byte source.
// It must follow any WithLoaderByteSource option.
//
// Parameters:
//   - fn: the progress callback
//
// Returns:
//   - LoaderBuilderOption: a function that applies the progress option to a loader
func WithProgress(fn ProgressFunc) LoaderBuilderOption {
	return func(l *loader) {
		l.ensureByteSource().SetProgress(fn)
	}
}

// WithRequestHeader adds a header to every HTTP fetch. It must follow any WithLoaderByteSource option.
//
// Parameters:
//   - key: the header name
//   - value: the header value
//
// Returns:
//   - LoaderBuilderOption: a function that applies the header option to a loader
func WithRequestHeader(key, value string) LoaderBuilderOption {
	return func(l *loader) {
		l.ensureByteSource().SetRequestHeader(key, value)
	}
}

// WithTimeout bounds every Load and Parse call. Zero disables the bound.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - LoaderBuilderOption: a function that applies the timeout option to a loader
func WithTimeout(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.timeout = d
	}
}

// WithWatch evicts cached results when their local files change.
//
// Parameters:
//   - enabled: true to watch loaded files
//
// Returns:
//   - LoaderBuilderOption: a function that applies the watch option to a loader
func WithWatch(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.watch = enabled
	}
}

// WithLoaderProfiler records fetch and parse phase timings.
func WithLoaderProfiler(prof *profiler.Profiler) LoaderBuilderOption {
	return func(l *loader) {
		l.prof = prof
	}
}

// WithModel is an option builder that pre-populates the result cache.
//
// Parameters:
//   - key: the cache key
//   - model: the parse result to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model *GLTF) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}

func (l *loader) ensureByteSource() ByteSource {
	if l.byteSource == nil {
		l.byteSource = NewByteSource(nil)
	}
	return l.byteSource
}
