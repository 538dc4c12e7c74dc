package loader

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/draco"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"

	"github.com/fsnotify/fsnotify"
)

// loader implements the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]*GLTF
	backends   map[string]loaderBackend

	byteSource  ByteSource
	imageSource ImageSource
	ownsImages  bool
	dracoSched  draco.Scheduler
	ktx2        KTX2Decoder
	meshopt     MeshoptDecoder
	plugins     []PluginFactory
	prof        *profiler.Profiler

	resourcePath string
	timeout      time.Duration
	imageWorkers int

	watch   bool
	watcher *fsnotify.Watcher
	watched map[string][]string
	done    chan struct{}
	closed  bool
}

// Loader fetches glTF assets, parses them into scene graphs and caches the results by URL.
type Loader interface {
	// Load fetches and parses the asset at rawURL. Relative resources resolve against the
	// directory of rawURL unless a resource path was configured. A cached result is returned
	// without fetching.
	//
	// Parameters:
	//   - ctx: cancels the fetch and every pending dependency
	//   - rawURL: a file path, file:// URL, http(s) URL or data URI
	//
	// Returns:
	//   - *GLTF: the parse result
	//   - error: error if fetching or parsing fails
	Load(ctx context.Context, rawURL string) (*GLTF, error)

	// LoadAsync runs Load on its own goroutine.
	//
	// Parameters:
	//   - ctx: cancels the load
	//   - rawURL: the asset location
	//
	// Returns:
	//   - *future.Future[*GLTF]: the parse result
	LoadAsync(ctx context.Context, rawURL string) *future.Future[*GLTF]

	// Parse parses an in-memory asset. data is either a GLB container or glTF JSON text.
	// The result is not cached.
	//
	// Parameters:
	//   - ctx: cancels pending dependencies
	//   - data: the asset bytes
	//   - path: the base that relative uris resolve against
	//
	// Returns:
	//   - *GLTF: the parse result
	//   - error: error if parsing fails
	Parse(ctx context.Context, data []byte, path string) (*GLTF, error)

	// Get returns the cached result for rawURL, or nil.
	//
	// Parameters:
	//   - rawURL: the URL passed to Load
	//
	// Returns:
	//   - *GLTF: the cached result
	Get(rawURL string) *GLTF

	// Models returns a copy of the result cache keyed by URL.
	//
	// Returns:
	//   - map[string]*GLTF: the cached results
	Models() map[string]*GLTF

	// Evict drops the cached result for rawURL.
	//
	// Parameters:
	//   - rawURL: the URL passed to Load
	Evict(rawURL string)

	// Close stops the file watcher and the image workers the loader created.
	//
	// Returns:
	//   - error: error if the watcher fails to close
	Close() error
}

var _ Loader = &loader{}

// NewLoader creates a Loader. Without options it fetches with http.DefaultClient and the
// local filesystem, decodes images on one worker and has no Draco, KTX2 or meshopt decoder.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache:   make(map[string]*GLTF),
		watched:      make(map[string][]string),
		done:         make(chan struct{}),
		imageWorkers: 1,
	}
	for _, opt := range options {
		opt(l)
	}

	if l.byteSource == nil {
		l.byteSource = NewByteSource(nil)
	}
	if l.imageSource == nil {
		l.imageSource = NewImageSource(l.imageWorkers)
		l.ownsImages = true
	}

	gltfBackend := newGLTFLoaderBackend(l)
	l.backends = map[string]loaderBackend{
		"":      gltfBackend,
		".gltf": gltfBackend,
		".glb":  gltfBackend,
		".drc":  newDracoLoaderBackend(l),
	}

	if l.watch {
		l.startWatcher()
	}
	return l
}

func (l *loader) Load(ctx context.Context, rawURL string) (*GLTF, error) {
	l.mu.RLock()
	if cached, ok := l.modelCache[rawURL]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	stop := l.prof.Start(profiler.PhaseFetch)
	data, err := l.byteSource.Fetch(ctx, rawURL).Await(ctx)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", rawURL, err)
	}

	path := l.resourcePath
	if path == "" {
		path = extractURLBase(rawURL)
	}
	result, err := backend.Parse(ctx, data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", rawURL, err)
	}

	l.mu.Lock()
	l.modelCache[rawURL] = result
	l.mu.Unlock()
	l.watchFile(rawURL)

	return result, nil
}

func (l *loader) LoadAsync(ctx context.Context, rawURL string) *future.Future[*GLTF] {
	return future.Go(func() (*GLTF, error) {
		return l.Load(ctx, rawURL)
	})
}

func (l *loader) Parse(ctx context.Context, data []byte, path string) (*GLTF, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.backends[".gltf"].Parse(ctx, data, path)
}

func (l *loader) Get(rawURL string) *GLTF {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[rawURL]
}

func (l *loader) Models() map[string]*GLTF {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]*GLTF, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, rawURL)
}

func (l *loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	if l.ownsImages {
		l.imageSource.Close()
	}
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// parserOptions returns the options every parse created by this loader shares.
func (l *loader) parserOptions() []ParserBuilderOption {
	return []ParserBuilderOption{
		WithByteSource(l.byteSource),
		WithImageSource(l.imageSource),
		WithDracoScheduler(l.dracoSched),
		WithKTX2Decoder(l.ktx2),
		WithMeshoptDecoder(l.meshopt),
		WithPlugins(l.plugins...),
		WithProfiler(l.prof),
	}
}

func (l *loader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

// resolveBackend selects a loader backend based on the file extension of rawURL.
// Data URIs and extensionless URLs go to the glTF backend, which detects GLB by its magic.
func (l *loader) resolveBackend(rawURL string) (loaderBackend, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return l.backends[""], nil
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		path = u.Path
	}
	ext := strings.ToLower(filepath.Ext(path))
	backend, ok := l.backends[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported model format: %s", ext)
	}
	return backend, nil
}

// localPath returns the filesystem path of rawURL, or false for remote and inline resources.
func localPath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "data:") {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err == nil && u.Scheme == "file" {
		return u.Path, true
	}
	if err == nil && len(u.Scheme) > 1 {
		return "", false
	}
	return rawURL, true
}

func (l *loader) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		common.LogWarn("loader: file watching disabled: %v", err)
		return
	}
	l.watcher = w

	go func() {
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.evictFile(e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				common.LogError("loader: watcher: %v", err)
			case <-l.done:
				return
			}
		}
	}()
}

// watchFile registers the file behind rawURL with the watcher.
func (l *loader) watchFile(rawURL string) {
	if l.watcher == nil {
		return
	}
	path, ok := localPath(rawURL)
	if !ok {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.watched[abs]; !seen {
		if err := l.watcher.Add(abs); err != nil {
			common.LogWarn("loader: cannot watch %s: %v", abs, err)
			return
		}
	}
	l.watched[abs] = append(l.watched[abs], rawURL)
}

// evictFile drops every cached result loaded from the changed file.
func (l *loader) evictFile(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range l.watched[abs] {
		common.LogDebug("loader: %s changed, evicting %s", abs, key)
		delete(l.modelCache, key)
	}
	delete(l.watched, abs)
	if l.watcher != nil {
		_ = l.watcher.Remove(abs)
	}
}
