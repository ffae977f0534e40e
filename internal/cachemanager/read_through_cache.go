package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache computes values with fn on a miss and caches the result.
// Errors are never cached.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
	keep            func(V) bool
}

// ReadThroughOption configures a ReadThroughCache.
type ReadThroughOption[K comparable, V any, I any] func(*ReadThroughCache[K, V, I])

// WithCacheIf stores a computed value only when keep returns true. Other
// values are recomputed on every Get.
func WithCacheIf[K comparable, V any, I any](keep func(V) bool) ReadThroughOption[K, V, I] {
	return func(r *ReadThroughCache[K, V, I]) { r.keep = keep }
}

func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
	opts ...ReadThroughOption[K, V, I],
) *ReadThroughCache[K, V, I] {
	r := &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	if r.keep == nil || r.keep(value) {
		r.cache.Set(ctx, key, value, ttl)
	}

	return value, nil
}

// Forget drops the cached values for keys.
func (r *ReadThroughCache[K, V, I]) Forget(ctx context.Context, keys ...K) error {
	return r.cache.Delete(ctx, keys...)
}

// Invalidate drops every cached value so the next Get recomputes.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context) error {
	return r.cache.Flush(ctx)
}
