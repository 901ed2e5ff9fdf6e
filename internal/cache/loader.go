package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Loader fronts a fetch function with a cache. Concurrent misses for the
// same key share one fetch; failed fetches are not cached.
type Loader[T any] struct {
	cache Cache[T]
	group singleflight.Group
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c}
}

// Get returns the cached value for key or calls fetch to fill it.
func (l *Loader[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", key, err)
	}
	return v.(T), nil
}

// Invalidate drops key so the next Get fetches again.
func (l *Loader[T]) Invalidate(key string) {
	l.group.Forget(key)
	l.cache.Delete(key)
}

func (l *Loader[T]) InvalidatePrefix(prefix string) int {
	return l.cache.DeletePrefix(prefix)
}
