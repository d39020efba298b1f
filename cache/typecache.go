package cache

import (
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TypeCache stores one value per reflect.Type for the lifetime of the
// process. The zero configuration (size 0) is unbounded and backed by a
// sync.Map, which is the right shape for the common case: a fixed set of
// struct types introspected once and read forever. A positive size switches
// to an LRU bound for processes that describe an unbounded population of
// types (plugins, codegen hosts, long-lived servers with dynamic models).
type TypeCache[V any] struct {
	unbounded sync.Map // reflect.Type -> V

	mu      sync.Mutex
	bounded *lru.Cache[reflect.Type, V]
}

// New creates a TypeCache. size <= 0 means unbounded. onEvict is only
// meaningful for bounded caches and may be nil.
func New[V any](size int, onEvict func(reflect.Type, V)) *TypeCache[V] {
	c := &TypeCache[V]{}
	if size > 0 {
		// lru.NewWithEvict only errors on non-positive size, which is
		// excluded above.
		bounded, _ := lru.NewWithEvict[reflect.Type, V](size, onEvict)
		c.bounded = bounded
	}
	return c
}

// Get returns the cached value for t, if present.
func (c *TypeCache[V]) Get(t reflect.Type) (V, bool) {
	if c.bounded != nil {
		return c.bounded.Get(t)
	}
	v, ok := c.unbounded.Load(t)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// GetOrSet returns the existing value for t, or stores and returns v when
// no value is cached yet. The returned bool reports whether the value was
// already present.
func (c *TypeCache[V]) GetOrSet(t reflect.Type, v V) (V, bool) {
	if c.bounded != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.bounded.Get(t); ok {
			return existing, true
		}
		c.bounded.Add(t, v)
		return v, false
	}
	actual, loaded := c.unbounded.LoadOrStore(t, v)
	return actual.(V), loaded
}

// Set stores v for t, replacing any existing value.
func (c *TypeCache[V]) Set(t reflect.Type, v V) {
	if c.bounded != nil {
		c.bounded.Add(t, v)
		return
	}
	c.unbounded.Store(t, v)
}

// Len returns the number of cached entries.
func (c *TypeCache[V]) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	n := 0
	c.unbounded.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Purge drops every cached entry. Bounded caches fire the eviction callback
// for each dropped entry.
func (c *TypeCache[V]) Purge() {
	if c.bounded != nil {
		c.bounded.Purge()
		return
	}
	c.unbounded.Range(func(k, _ any) bool {
		c.unbounded.Delete(k)
		return true
	})
}
