// Package access navigates dotted property paths over described struct
// types: nested structs, pointers, maps, slices and arrays. Struct hops
// resolve through the meta package's cached invokers, so accessor methods,
// embedded fields, tags and aliases all behave exactly as they do for
// single-property access.
package access

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/ormkit/reflector/meta"
)

// Accessor reads and writes property paths. The zero-configuration
// accessor resolves types through the package-level meta cache.
type Accessor struct {
	ctx *meta.Context
}

// New creates an Accessor using the default metadata context.
func New() *Accessor { return &Accessor{} }

// NewWithContext creates an Accessor resolving types through ctx.
func NewWithContext(ctx *meta.Context) *Accessor { return &Accessor{ctx: ctx} }

var defaultAccessor = New()

// Get reads path from target using the default accessor.
func Get(target any, path string) (any, error) { return defaultAccessor.Get(target, path) }

// Set writes path on target using the default accessor.
func Set(target any, path string, value any) error { return defaultAccessor.Set(target, path, value) }

// Has reports whether path resolves to a readable value on target.
func Has(target any, path string) bool { return defaultAccessor.Has(target, path) }

func (a *Accessor) describe(t reflect.Type) (*meta.Reflector, error) {
	if a.ctx != nil {
		return a.ctx.Describe(t)
	}
	return meta.Describe(t)
}

// Get resolves a property path and returns the value at its end.
func (a *Accessor) Get(target any, path string) (any, error) {
	toks, err := tokenize(path)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(target)
	for _, tok := range toks {
		v, err = a.getStep(v, tok)
		if err != nil {
			return nil, fmt.Errorf("access: get %q: %w", path, err)
		}
	}

	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Has reports whether the path resolves on target.
func (a *Accessor) Has(target any, path string) bool {
	_, err := a.Get(target, path)
	return err == nil
}

// Set resolves a property path and writes value at its end. Nil pointers
// along field-backed segments are allocated on the way; method-backed
// segments must return a non-nil pointer to stay navigable.
func (a *Accessor) Set(target any, path string, value any) error {
	toks, err := tokenize(path)
	if err != nil {
		return err
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("access: set target must be a non-nil pointer, got %T", target)
	}

	for _, tok := range toks[:len(toks)-1] {
		v, err = a.setStep(v, tok)
		if err != nil {
			return fmt.Errorf("access: set %q: %w", path, err)
		}
	}

	if err := a.setFinal(v, toks[len(toks)-1], value); err != nil {
		return fmt.Errorf("access: set %q: %w", path, err)
	}
	return nil
}

// getStep resolves one token in read mode.
func (a *Accessor) getStep(v reflect.Value, tok token) (reflect.Value, error) {
	v, err := deref(v, tok.name)
	if err != nil {
		return v, err
	}

	switch v.Kind() {
	case reflect.Struct:
		v, err = a.readProperty(v, tok.name)
	case reflect.Map:
		v, err = mapLookup(v, tok.name)
	default:
		return v, fmt.Errorf("cannot read property %q on %s", tok.name, v.Kind())
	}
	if err != nil {
		return v, err
	}

	if tok.indexed {
		return indexLookup(v, tok.key)
	}
	return v, nil
}

// setStep resolves one intermediate token in write mode, keeping the
// result addressable or pointer-shaped so the final write can land.
func (a *Accessor) setStep(v reflect.Value, tok token) (reflect.Value, error) {
	v, err := derefAlloc(v, tok.name)
	if err != nil {
		return v, err
	}

	switch v.Kind() {
	case reflect.Struct:
		v, err = a.navigateProperty(v, tok.name)
	case reflect.Map:
		v, err = mapLookup(v, tok.name)
		if err == nil && v.Kind() != reflect.Ptr && v.Kind() != reflect.Map && v.Kind() != reflect.Interface {
			return v, fmt.Errorf("cannot write through map value %q of non-pointer type %s", tok.name, v.Type())
		}
	default:
		return v, fmt.Errorf("cannot navigate property %q on %s", tok.name, v.Kind())
	}
	if err != nil {
		return v, err
	}

	if tok.indexed {
		return indexLookup(v, tok.key)
	}
	return v, nil
}

// setFinal writes value at the last token.
func (a *Accessor) setFinal(v reflect.Value, tok token, value any) error {
	v, err := derefAlloc(v, tok.name)
	if err != nil {
		return err
	}

	container := v
	if tok.indexed {
		// Navigate the name part, then write into the indexed slot.
		if tok.name != "" {
			switch container.Kind() {
			case reflect.Struct:
				container, err = a.navigateProperty(container, tok.name)
			case reflect.Map:
				container, err = mapLookup(container, tok.name)
			default:
				return fmt.Errorf("cannot navigate property %q on %s", tok.name, container.Kind())
			}
			if err != nil {
				return err
			}
		}
		container, err = derefAlloc(container, tok.name)
		if err != nil {
			return err
		}
		return indexAssign(container, tok.key, value)
	}

	switch container.Kind() {
	case reflect.Struct:
		if !container.CanAddr() {
			return fmt.Errorf("property %q is not addressable", tok.name)
		}
		r, err := a.describe(container.Type())
		if err != nil {
			return err
		}
		canonical, ok := r.FindProperty(tok.name)
		if !ok {
			return fmt.Errorf("unknown property %q on %s", tok.name, container.Type())
		}
		return r.Set(container.Addr().Interface(), canonical, value)
	case reflect.Map:
		return mapAssign(container, tok.name, value)
	default:
		return fmt.Errorf("cannot write property %q on %s", tok.name, container.Kind())
	}
}

// readProperty resolves one struct property through the cached invokers.
func (a *Accessor) readProperty(v reflect.Value, name string) (reflect.Value, error) {
	r, err := a.describe(v.Type())
	if err != nil {
		return reflect.Value{}, err
	}
	canonical, ok := r.FindProperty(name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown property %q on %s", name, v.Type())
	}

	var target any
	if v.CanAddr() {
		target = v.Addr().Interface()
	} else {
		tmp := reflect.New(v.Type())
		tmp.Elem().Set(v)
		target = tmp.Interface()
	}

	out, err := r.Get(target, canonical)
	if err != nil {
		return reflect.Value{}, err
	}
	if out == nil {
		return reflect.Value{}, nil
	}
	return reflect.ValueOf(out), nil
}

// navigateProperty resolves one struct property in write mode. Field-backed
// properties navigate directly so addressability survives; method-backed
// properties must hand back a pointer.
func (a *Accessor) navigateProperty(v reflect.Value, name string) (reflect.Value, error) {
	r, err := a.describe(v.Type())
	if err != nil {
		return reflect.Value{}, err
	}
	canonical, ok := r.FindProperty(name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown property %q on %s", name, v.Type())
	}

	if p, ok := r.Property(canonical); ok && p.FromField && v.CanAddr() {
		return fieldByIndexAlloc(v, p.Index)
	}

	if !v.CanAddr() {
		return reflect.Value{}, fmt.Errorf("property %q is not addressable", name)
	}
	out, err := r.Get(v.Addr().Interface(), canonical)
	if err != nil {
		return reflect.Value{}, err
	}
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Ptr || ov.IsNil() {
		return reflect.Value{}, fmt.Errorf("cannot write through method-backed property %q", name)
	}
	return ov, nil
}

// deref unwraps pointers and interfaces, failing on nil.
func deref(v reflect.Value, at string) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, fmt.Errorf("nil value at %q", at)
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, fmt.Errorf("nil value at %q", at)
	}
	return v, nil
}

// derefAlloc unwraps pointers, allocating nil ones when settable.
func derefAlloc(v reflect.Value, at string) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			if v.Kind() == reflect.Ptr && v.CanSet() {
				v.Set(reflect.New(v.Type().Elem()))
			} else {
				return v, fmt.Errorf("nil value at %q", at)
			}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, fmt.Errorf("nil value at %q", at)
	}
	return v, nil
}

func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return v, errors.New("nil embedded pointer")
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

func mapLookup(v reflect.Value, key string) (reflect.Value, error) {
	kv, err := mapKey(v.Type().Key(), key)
	if err != nil {
		return reflect.Value{}, err
	}
	ev := v.MapIndex(kv)
	if !ev.IsValid() {
		return reflect.Value{}, fmt.Errorf("missing map key %q", key)
	}
	return ev, nil
}

func indexLookup(v reflect.Value, key string) (reflect.Value, error) {
	v, err := deref(v, key)
	if err != nil {
		return v, err
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("non-numeric index %q for %s", key, v.Kind())
		}
		if i < 0 || i >= v.Len() {
			return reflect.Value{}, fmt.Errorf("index %d out of range (len %d)", i, v.Len())
		}
		return v.Index(i), nil
	case reflect.Map:
		return mapLookup(v, key)
	default:
		return reflect.Value{}, fmt.Errorf("cannot index %s with %q", v.Kind(), key)
	}
}

func indexAssign(v reflect.Value, key string, value any) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("non-numeric index %q for %s", key, v.Kind())
		}
		if i < 0 || i >= v.Len() {
			return fmt.Errorf("index %d out of range (len %d)", i, v.Len())
		}
		return assign(v.Index(i), value)
	case reflect.Map:
		return mapAssign(v, key, value)
	default:
		return fmt.Errorf("cannot index %s with %q", v.Kind(), key)
	}
}

func mapAssign(v reflect.Value, key string, value any) error {
	if v.IsNil() {
		if !v.CanSet() {
			return errors.New("cannot initialize nil map")
		}
		v.Set(reflect.MakeMap(v.Type()))
	}
	kv, err := mapKey(v.Type().Key(), key)
	if err != nil {
		return err
	}
	ev, err := coerceTo(value, v.Type().Elem())
	if err != nil {
		return err
	}
	v.SetMapIndex(kv, ev)
	return nil
}

func assign(el reflect.Value, value any) error {
	ev, err := coerceTo(value, el.Type())
	if err != nil {
		return err
	}
	if !el.CanSet() {
		return errors.New("value is not settable")
	}
	el.Set(ev)
	return nil
}

func coerceTo(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv, nil
	case rv.Type().ConvertibleTo(target) && !(target.Kind() == reflect.String && rv.Kind() != reflect.String && rv.CanInt()):
		return rv.Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot assign %s to %s", rv.Type(), target)
	}
}

func mapKey(kt reflect.Type, key string) (reflect.Value, error) {
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(key).Convert(kt), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("non-numeric key %q for %s map", key, kt)
		}
		return reflect.ValueOf(i).Convert(kt), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported map key type %s", kt)
	}
}
