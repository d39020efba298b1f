package meta

import (
	"fmt"
	"reflect"

	"github.com/ormkit/reflector/cache"
)

// Context owns the configuration and the metadata cache a set of
// Reflectors is built under. The zero configuration — snake_case external
// names, `reflector` tags, case-insensitive lookup, unbounded cache — is
// what the package-level functions use.
type Context struct {
	tagName       string
	naming        NamingStrategy
	caseSensitive bool
	cacheSize     int
	onEvict       func(reflect.Type, *Reflector)

	cache *cache.TypeCache[*Reflector]
	tags  *TagParser
}

// Option configures a Context.
type Option func(*Context)

// WithTagName sets the struct tag key read for property configuration.
func WithTagName(tagName string) Option {
	return func(ctx *Context) { ctx.tagName = tagName }
}

// WithNamingStrategy sets the strategy deriving external names.
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(ctx *Context) { ctx.naming = strategy }
}

// WithCaseSensitive disables case-insensitive FindProperty resolution.
func WithCaseSensitive(sensitive bool) Option {
	return func(ctx *Context) { ctx.caseSensitive = sensitive }
}

// WithCacheSize bounds the metadata cache with an LRU of the given size.
// Zero (the default) keeps the cache unbounded.
func WithCacheSize(size int) Option {
	return func(ctx *Context) { ctx.cacheSize = size }
}

// WithEvictionCallback sets a callback for cache eviction events.
// Only fires on bounded caches.
func WithEvictionCallback(onEvict func(reflect.Type, *Reflector)) Option {
	return func(ctx *Context) { ctx.onEvict = onEvict }
}

// New creates a Context with the given options applied over the defaults.
func New(options ...Option) *Context {
	ctx := &Context{
		tagName:       "reflector",
		naming:        DefaultNamingStrategy(),
		caseSensitive: false,
		cacheSize:     0,
	}
	for _, opt := range options {
		opt(ctx)
	}

	ctx.cache = cache.New(ctx.cacheSize, ctx.onEvict)
	ctx.tags = NewTagParser(ctx.tagName, ctx.naming)
	return ctx
}

// Describe retrieves or builds the metadata for a struct type. Pointer
// types normalize to their element type; any other kind is an error.
// Concurrent callers for the same type all observe the same instance.
func (ctx *Context) Describe(t reflect.Type) (*Reflector, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflector: %w: %s", ErrNotStruct, t.Kind())
	}

	if r, ok := ctx.cache.Get(t); ok {
		return r, nil
	}

	r, err := build(t, ctx)
	if err != nil {
		return nil, err
	}
	r, _ = ctx.cache.GetOrSet(t, r)
	return r, nil
}

// CacheLen returns the number of cached type descriptions.
func (ctx *Context) CacheLen() int {
	return ctx.cache.Len()
}

// ClearCache drops every cached description. Intended for tests.
func (ctx *Context) ClearCache() {
	ctx.cache.Purge()
	ctx.tags.ClearCache()
}

// defaultContext backs the package-level entry points.
var defaultContext = New()

// Describe retrieves or builds metadata for a struct type using the
// default Context.
func Describe(t reflect.Type) (*Reflector, error) {
	return defaultContext.Describe(t)
}

// Of is the generic convenience form of Describe.
func Of[T any]() (*Reflector, error) {
	return Describe(reflect.TypeOf((*T)(nil)).Elem())
}

// MustOf is Of for types known to be structs; it panics on error.
func MustOf[T any]() *Reflector {
	r, err := Of[T]()
	if err != nil {
		panic(err)
	}
	return r
}

// ClearCache drops the default Context's cached descriptions.
func ClearCache() {
	defaultContext.ClearCache()
}
