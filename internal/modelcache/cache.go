// Package modelcache holds expensive-to-load inference models for the lifetime of a
// worker process. Entries are created lazily on first use and never evicted.
package modelcache

import (
	"fmt"
	"sync"
)

// Loader builds the model registered under name.
type Loader[T any] func(name string) (T, error)

// Cache is a read-mostly map of loaded models keyed by model name. Only insertion
// is synchronized beyond a read lock; a failed load is not cached.
type Cache[T any] struct {
	mu     sync.RWMutex
	load   Loader[T]
	models map[string]T
}

// New returns an empty cache that populates itself with load.
func New[T any](load Loader[T]) *Cache[T] {
	return &Cache[T]{
		load:   load,
		models: make(map[string]T),
	}
}

// Get returns the model for name, loading it if absent.
func (c *Cache[T]) Get(name string) (T, error) {
	c.mu.RLock()
	model, ok := c.models[name]
	c.mu.RUnlock()
	if ok {
		return model, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if model, ok := c.models[name]; ok {
		return model, nil
	}

	model, err := c.load(name)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load model %q: %w", name, err)
	}
	c.models[name] = model
	return model, nil
}

// Len reports how many models are loaded.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
