// Package loader implements autoload.Loader on top of a script runtime.
//
// FileLoader checks for candidate files and executes each file at most once
// per process. Positive existence probes go through a TTL read-through cache
// so that hot resolution paths avoid repeated stat calls. Misses are never
// cached, so a file created later is found on the next probe. Load checks the
// file again before executing it and reports a vanished file as
// autoload.ErrFileMissing. Flush drops the cache when files change on disk.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/autoload/internal/cachemanager"
	"github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/tracing"
)

// Executor runs a source file in the script runtime.
type Executor interface {
	Extension() string
	Exec(ctx context.Context, path string) error
}

// Config holds loader options.
type Config struct {
	// ProbeTTL is how long a positive existence probe is reused.
	ProbeTTL time.Duration
	// CleanupInterval is how often expired probe results are purged.
	CleanupInterval time.Duration
	// DisableCache probes the filesystem on every call.
	DisableCache bool
}

// DefaultConfig returns the default loader options.
func DefaultConfig() Config {
	return Config{
		ProbeTTL:        cachemanager.DefaultExpiration,
		CleanupInterval: cachemanager.DefaultCleanupInterval,
	}
}

// FileLoader executes resolved files through an Executor.
type FileLoader struct {
	exec   Executor
	probes *cachemanager.ReadThroughCache[string, bool, string]
	ttl    time.Duration
	tracer trace.Tracer

	mu     sync.Mutex
	loaded map[string]struct{}
}

var _ autoload.Loader = (*FileLoader)(nil)

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithTracer records a span per load.
func WithTracer(t trace.Tracer) Option {
	return func(l *FileLoader) { l.tracer = t }
}

// New creates a FileLoader. Zero durations in cfg use the defaults.
func New(exec Executor, cfg Config, opts ...Option) *FileLoader {
	if cfg.ProbeTTL <= 0 {
		cfg.ProbeTTL = cachemanager.DefaultExpiration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cachemanager.DefaultCleanupInterval
	}
	cache := cachemanager.NewInMemoryCacheManager[string, bool]("probe", cfg.ProbeTTL, cfg.CleanupInterval)
	l := &FileLoader{
		exec:   exec,
		probes: cachemanager.NewReadThroughCache[string, bool, string](cache, statRegular, cfg.DisableCache,
			cachemanager.WithCacheIf[string, bool, string](func(exists bool) bool { return exists })),
		ttl:    cfg.ProbeTTL,
		tracer: noop.NewTracerProvider().Tracer("noop"),
		loaded: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extension returns the executor's source file extension.
func (l *FileLoader) Extension() string {
	return l.exec.Extension()
}

// Exists reports whether a regular file exists at path.
func (l *FileLoader) Exists(ctx context.Context, path string) bool {
	ok, err := l.probes.Get(ctx, path, path, l.ttl)
	if err != nil {
		log.ErrorErr(log.CatResolve, "probe failed", err, "path", path)
		return false
	}
	log.Debug(log.CatResolve, "probe", "path", path, "exists", ok)
	return ok
}

// Load executes path unless it has already been loaded. The path is marked
// before execution so that a file which resolves itself, directly or through
// other files, does not recurse forever. A failed load clears the mark.
func (l *FileLoader) Load(ctx context.Context, path string) error {
	l.mu.Lock()
	if _, done := l.loaded[path]; done {
		l.mu.Unlock()
		log.Debug(log.CatRuntime, "already loaded", "path", path)
		return nil
	}
	l.loaded[path] = struct{}{}
	l.mu.Unlock()

	ctx, span := l.tracer.Start(ctx, tracing.SpanLoad,
		trace.WithAttributes(attribute.String(tracing.AttrPath, path)))
	defer span.End()

	if ok, err := statRegular(ctx, path); err == nil && !ok {
		l.unmark(path)
		if err := l.probes.Forget(ctx, path); err != nil {
			log.ErrorErr(log.CatCache, "forget probe failed", err, "path", path)
		}
		log.Debug(log.CatRuntime, "file vanished before load", "path", path)
		return fmt.Errorf("load %s: %w", path, autoload.ErrFileMissing)
	}

	if err := l.exec.Exec(ctx, path); err != nil {
		l.unmark(path)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatRuntime, "load failed", err, "path", path)
		return err
	}

	span.SetStatus(codes.Ok, "")
	log.Info(log.CatRuntime, "loaded", "path", path)
	return nil
}

func (l *FileLoader) unmark(path string) {
	l.mu.Lock()
	delete(l.loaded, path)
	l.mu.Unlock()
}

// Loaded reports whether path has been loaded or is loading.
func (l *FileLoader) Loaded(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[path]
	return ok
}

// Flush drops all cached probe results.
func (l *FileLoader) Flush(ctx context.Context) error {
	if err := l.probes.Invalidate(ctx); err != nil {
		return fmt.Errorf("flush probe cache: %w", err)
	}
	return nil
}

// statRegular reports whether path is an existing regular file. A missing
// file is not an error.
func statRegular(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
