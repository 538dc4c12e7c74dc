package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/config"
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/exporter"
	"github.com/Carmen-Shannon/oxy-gltf/engine/loader"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gltf/engine/scene"
)

// engine implements the Engine interface.
// Owns the loader, the Draco scheduler and the exporter built from one configuration.
type engine struct {
	mu *sync.Mutex

	cfg config.Config

	loader    loader.Loader
	scheduler draco.Scheduler
	exporter  exporter.Exporter

	profiler         *profiler.Profiler
	profilingEnabled bool

	moduleFactory draco.ModuleFactory
	plugins       []loader.PluginFactory
	loaderOptions []loader.LoaderBuilderOption

	disposeOnce sync.Once
	disposed    bool
}

// Summary counts the contents of a loaded model.
type Summary struct {
	Scenes     int
	Nodes      int
	Meshes     int
	Materials  int
	Cameras    int
	Animations int
	Generator  string
	Version    string
}

// Engine is the main entry point of the toolkit.
// It loads glTF, GLB and Draco files, exports scene graphs and converts between formats.
type Engine interface {
	// Load reads a model. Relative locations are resolved against the configured loader path.
	//
	// Parameters:
	//   - ctx: cancels the load
	//   - location: a file path, file:// URL, http(s) URL or data URI
	//
	// Returns:
	//   - *loader.GLTF: the parsed model
	//   - error: error if the model cannot be fetched or parsed
	Load(ctx context.Context, location string) (*loader.GLTF, error)

	// Export serializes every scene and animation of a loaded model.
	//
	// Parameters:
	//   - ctx: cancels the export
	//   - model: the model to export
	//   - opts: the export options
	//
	// Returns:
	//   - *exporter.Result: the document and its encodings
	//   - error: error if encoding fails
	Export(ctx context.Context, model *loader.GLTF, opts exporter.Options) (*exporter.Result, error)

	// Convert loads in and writes it to out. A .glb output, or the exporter.binary setting,
	// produces a binary container.
	//
	// Parameters:
	//   - ctx: cancels the conversion
	//   - in: the source location
	//   - out: the destination file
	//
	// Returns:
	//   - error: error if loading, exporting or writing fails
	Convert(ctx context.Context, in, out string) error

	// ExportOptions returns the export options derived from the configuration.
	ExportOptions() exporter.Options

	// Loader returns the underlying loader.
	Loader() loader.Loader

	// Config returns the configuration the engine was built with.
	Config() config.Config

	// EnableProfiler enables phase timing output to the log.
	EnableProfiler()

	// DisableProfiler disables phase timing output.
	DisableProfiler()

	// Dispose closes the loader and stops the Draco workers.
	// Safe to call multiple times; subsequent calls are no-ops.
	Dispose()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern, then the
// loader, scheduler and exporter are built from the resulting configuration.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:       &sync.Mutex{},
		cfg:      config.Default(),
		profiler: profiler.NewProfiler(),
	}
	for _, opt := range options {
		opt(e)
	}

	if err := common.SetLogLevel(e.cfg.Log.Level); err != nil {
		common.LogWarn("ignoring log level: %v", err)
	}

	schedulerOptions := []draco.SchedulerBuilderOption{
		draco.WithWorkerLimit(e.cfg.Draco.WorkerLimit),
		draco.WithDecoderConfig(draco.DecoderConfig{Path: e.cfg.Draco.DecoderPath}),
	}
	if e.moduleFactory != nil {
		schedulerOptions = append(schedulerOptions, draco.WithModuleFactory(e.moduleFactory))
	}
	e.scheduler = draco.NewScheduler(schedulerOptions...)

	loaderOptions := []loader.LoaderBuilderOption{
		loader.WithImageWorkers(e.cfg.Images.Workers),
		loader.WithLoaderDracoScheduler(e.scheduler),
		loader.WithResourcePath(e.cfg.Loader.ResourcePath),
		loader.WithTimeout(time.Duration(e.cfg.Loader.Timeout)),
		loader.WithWatch(e.cfg.Loader.Watch),
		loader.WithLoaderProfiler(e.profiler),
	}
	for key, value := range e.cfg.Loader.RequestHeaders {
		loaderOptions = append(loaderOptions, loader.WithRequestHeader(key, value))
	}
	if len(e.plugins) > 0 {
		loaderOptions = append(loaderOptions, loader.WithPlugin(e.plugins...))
	}
	e.loader = loader.NewLoader(append(loaderOptions, e.loaderOptions...)...)

	e.exporter = exporter.NewExporter()
	return e
}

func (e *engine) Load(ctx context.Context, location string) (*loader.GLTF, error) {
	if e.isDisposed() {
		return nil, fmt.Errorf("engine: load %s: engine disposed", location)
	}
	model, err := e.loader.Load(ctx, e.resolveLocation(location))
	if err != nil {
		return nil, err
	}
	e.reportProfile()
	return model, nil
}

func (e *engine) Export(ctx context.Context, model *loader.GLTF, opts exporter.Options) (*exporter.Result, error) {
	if model == nil {
		return nil, fmt.Errorf("engine: nothing to export")
	}
	stop := e.profiler.Start(profiler.PhaseExport)
	defer stop()

	input := make([]scene.Object, 0, len(model.Scenes))
	for _, s := range model.Scenes {
		input = append(input, s)
	}
	if opts.Animations == nil {
		opts.Animations = model.Animations
	}
	return e.exporter.Parse(ctx, input, opts)
}

func (e *engine) Convert(ctx context.Context, in, out string) error {
	model, err := e.Load(ctx, in)
	if err != nil {
		return err
	}

	opts := e.ExportOptions()
	if strings.EqualFold(filepath.Ext(out), ".glb") {
		opts.Binary = true
	}
	result, err := e.Export(ctx, model, opts)
	if err != nil {
		return fmt.Errorf("engine: export %s: %w", in, err)
	}
	e.reportProfile()

	data := result.JSON
	if opts.Binary {
		data = result.GLB
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("engine: write %s: %w", out, err)
	}
	common.LogInfo("converted %s -> %s (%d bytes)", in, out, len(data))
	return nil
}

func (e *engine) ExportOptions() exporter.Options {
	return exporter.Options{
		Binary:      e.cfg.Exporter.Binary,
		OnlyVisible: e.cfg.Exporter.OnlyVisible,
		EmbedImages: e.cfg.Exporter.EmbedImages,
	}
}

func (e *engine) Loader() loader.Loader {
	return e.loader
}

func (e *engine) Config() config.Config {
	return e.cfg
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// Dispose closes the loader and stops the Draco workers.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.mu.Lock()
		e.disposed = true
		e.mu.Unlock()

		if err := e.loader.Close(); err != nil {
			common.LogWarn("failed to close loader: %v", err)
		}
		e.scheduler.Dispose()
	})
}

func (e *engine) isDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// reportProfile logs and clears the accumulated phase timings when profiling is enabled.
func (e *engine) reportProfile() {
	e.mu.Lock()
	enabled := e.profilingEnabled
	e.mu.Unlock()
	if !enabled {
		return
	}
	e.profiler.Summary()
	e.profiler.Reset()
}

// resolveLocation prefixes relative file paths with the configured loader path.
func (e *engine) resolveLocation(location string) string {
	base := e.cfg.Loader.Path
	if base == "" || strings.Contains(location, "://") || strings.HasPrefix(location, "data:") || filepath.IsAbs(location) {
		return location
	}
	if strings.Contains(base, "://") {
		return strings.TrimSuffix(base, "/") + "/" + location
	}
	return filepath.Join(base, location)
}

// Summarize counts the scenes, nodes, meshes, materials, cameras and animations of a model.
//
// Parameters:
//   - model: the loaded model
//
// Returns:
//   - Summary: the counts and asset metadata
func Summarize(model *loader.GLTF) Summary {
	s := Summary{
		Scenes:     len(model.Scenes),
		Cameras:    len(model.Cameras),
		Animations: len(model.Animations),
		Generator:  model.Asset.Generator,
		Version:    model.Asset.Version,
	}
	materials := make(map[any]struct{})
	for _, sc := range model.Scenes {
		sc.Traverse(func(o scene.Object) {
			if o == scene.Object(sc) {
				return
			}
			s.Nodes++
			if m := scene.AsMesh(o); m != nil {
				s.Meshes++
				if m.Material != nil {
					materials[m.Material] = struct{}{}
				}
			}
		})
	}
	s.Materials = len(materials)
	return s
}
