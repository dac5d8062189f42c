package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
	"github.com/Carmen-Shannon/gltf-runtime/engine/profiler"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// defaultWorkers is the LoadAll concurrency when WithWorkers is not given.
const defaultWorkers = 4

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]model.Model

	backend loaderBackend

	importConfig  ImportConfig
	parserOptions []ParserBuilderOption
	logger        *zap.SugaredLogger
	profiler      *profiler.Profiler
	workers       int
}

// Loader imports glTF documents into read-only models and caches them by path or name.
// It is safe for concurrent use: every import runs on its own Parser.
type Loader interface {
	// Load imports a model file and caches the result.
	// If the model is already cached (by file path), the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: error if the document cannot be parsed or its node graph is invalid
	Load(path string) (model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error)

	// LoadAll imports several files concurrently on a worker pool.
	// Models that load are cached and returned even when others fail.
	//
	// Parameters:
	//   - paths: the file paths to load
	//
	// Returns:
	//   - map[string]model.Model: the loaded models keyed by path
	//   - error: the combined failures, or nil
	LoadAll(paths []string) (map[string]model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Evict removes a model from the cache.
	//
	// Parameters:
	//   - name: the cache key to remove
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         sync.RWMutex{},
		modelCache: make(map[string]model.Model),
		logger:     zap.NewNop().Sugar(),
		workers:    defaultWorkers,
	}

	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(newGLTFImporter(l.importConfig, l.logger, l.profiler, l.parserOptions...))
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.modelCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	imported, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return l.store(path, imported), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.modelCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	imported, err := l.backend.LoadReader(name, r, isGLB)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	return l.store(name, imported), nil
}

// newWorkerPool builds the pool LoadAll runs a batch on.
var newWorkerPool = worker.NewDynamicWorkerPool

func (l *loader) LoadAll(paths []string) (map[string]model.Model, error) {
	if len(paths) == 0 {
		return map[string]model.Model{}, nil
	}

	type result struct {
		model model.Model
		err   error
	}
	results := make([]result, len(paths))

	pool := newWorkerPool(min(l.workers, len(paths)), len(paths), 1*time.Second)
	defer pool.Stop()
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		idx, p := i, path
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				m, err := l.Load(p)
				results[idx] = result{model: m, err: err}
				return m, err
			},
		})
	}
	wg.Wait()

	loaded := make(map[string]model.Model, len(paths))
	var errs error
	for i, r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		loaded[paths[i]] = r.model
	}
	l.logger.Infow("batch load finished", "requested", len(paths), "loaded", len(loaded), "failed", len(multierr.Errors(errs)))
	return loaded, errs
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, name)
}

// store wraps an import in a Model and caches it. When two goroutines import the same key, the first
// stored model wins so every caller observes the same instance.
func (l *loader) store(key string, imported *model.ImportedModel) model.Model {
	if imported.Errors != nil {
		l.logger.Warnw("model imported with skipped entities", "model", key, "skipped", len(multierr.Errors(imported.Errors)))
	}
	m := model.NewModelFromImport(imported)

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modelCache[key]; ok {
		return existing
	}
	l.modelCache[key] = m
	return m
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		if l.backend == nil {
			return nil, common.NewError(common.ErrConfig, "no loader backend configured")
		}
		return l.backend, nil
	default:
		return nil, common.NewError(common.ErrResource, "unsupported model format %q", ext)
	}
}
