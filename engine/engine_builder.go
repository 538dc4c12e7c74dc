package engine

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/config"
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/loader"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig replaces the default configuration.
//
// Parameters:
//   - cfg: the configuration, usually from config.Load
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithProfiling enables or disables phase timing output.
//
// Parameters:
//   - enabled: if true, logs a profile summary after each load and conversion
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithModuleFactory sets the Draco decoder module factory used by every worker.
//
// Parameters:
//   - factory: the module factory
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithModuleFactory(factory draco.ModuleFactory) EngineBuilderOption {
	return func(e *engine) {
		e.moduleFactory = factory
	}
}

// WithPlugins registers loader extensions on top of the built-in ones.
func WithPlugins(factories ...loader.PluginFactory) EngineBuilderOption {
	return func(e *engine) {
		e.plugins = append(e.plugins, factories...)
	}
}

// WithLoaderOptions appends raw loader options, applied after the ones derived from the configuration.
func WithLoaderOptions(options ...loader.LoaderBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.loaderOptions = append(e.loaderOptions, options...)
	}
}
