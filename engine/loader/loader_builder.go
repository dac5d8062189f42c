package loader

import (
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
	"github.com/Carmen-Shannon/gltf-runtime/engine/profiler"

	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}

// WithImportConfig sets the skeleton, animation and mesh-only settings used for every import.
//
// Parameters:
//   - config: the import config
//
// Returns:
//   - LoaderBuilderOption: a function that applies the import config to a loader
func WithImportConfig(config ImportConfig) LoaderBuilderOption {
	return func(l *loader) {
		l.importConfig = config
	}
}

// WithParserOptions sets options applied to every parser the loader creates (scene basis, scale, ...).
//
// Parameters:
//   - options: the parser options
//
// Returns:
//   - LoaderBuilderOption: a function that applies the parser options to a loader
func WithParserOptions(options ...ParserBuilderOption) LoaderBuilderOption {
	return func(l *loader) {
		l.parserOptions = append(l.parserOptions, options...)
	}
}

// WithLoaderLogger sets the logger shared by the loader, its importer and its parsers.
//
// Parameters:
//   - logger: the sugared logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger to a loader
func WithLoaderLogger(logger *zap.SugaredLogger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithProfiler records per-stage import timings.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - LoaderBuilderOption: a function that applies the profiler to a loader
func WithProfiler(p *profiler.Profiler) LoaderBuilderOption {
	return func(l *loader) {
		l.profiler = p
	}
}

// WithWorkers sets the LoadAll concurrency.
//
// Parameters:
//   - n: the worker count (values < 1 are ignored)
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}
