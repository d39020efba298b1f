package meta

import (
	"fmt"
	"reflect"
)

// Invoker is the uniform handle for one resolved accessor. A getter is
// invoked with no arguments and returns the property value; a setter is
// invoked with exactly one argument and returns nil. The target must be a
// non-nil pointer to the struct the invoker was built for.
type Invoker interface {
	Invoke(target any, args ...any) (any, error)
	// Type is the resolved property type: the result type for getters,
	// the parameter type for setters.
	Type() reflect.Type
}

// methodInvoker calls a GetX/IsX/SetX method by its index in the pointer
// type's method set.
type methodInvoker struct {
	name   string
	index  int
	typ    reflect.Type
	setter bool
	hasErr bool // setter also returns an error
}

func (mi *methodInvoker) Type() reflect.Type { return mi.typ }

func (mi *methodInvoker) Invoke(target any, args ...any) (any, error) {
	v, err := targetValue(target)
	if err != nil {
		return nil, err
	}
	m := v.Method(mi.index)

	if !mi.setter {
		if len(args) != 0 {
			return nil, fmt.Errorf("reflector: getter %s takes no arguments", mi.name)
		}
		return m.Call(nil)[0].Interface(), nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("reflector: setter %s takes exactly one argument", mi.name)
	}
	arg, err := coerce(args[0], mi.typ)
	if err != nil {
		return nil, fmt.Errorf("reflector: setter %s: %w", mi.name, err)
	}
	out := m.Call([]reflect.Value{arg})
	if mi.hasErr {
		if errv := out[0].Interface(); errv != nil {
			return nil, errv.(error)
		}
	}
	return nil, nil
}

// fieldGetInvoker reads a (possibly embedded) struct field.
type fieldGetInvoker struct {
	name  string
	index []int
	typ   reflect.Type
}

func (fi *fieldGetInvoker) Type() reflect.Type { return fi.typ }

func (fi *fieldGetInvoker) Invoke(target any, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("reflector: field getter %s takes no arguments", fi.name)
	}
	v, err := targetValue(target)
	if err != nil {
		return nil, err
	}
	fv, err := fieldByIndex(v.Elem(), fi.index, false)
	if err != nil {
		return nil, fmt.Errorf("reflector: read %s: %w", fi.name, err)
	}
	return fv.Interface(), nil
}

// fieldSetInvoker writes a (possibly embedded) struct field, allocating nil
// intermediate pointers along the embedding chain.
type fieldSetInvoker struct {
	name  string
	index []int
	typ   reflect.Type
}

func (fi *fieldSetInvoker) Type() reflect.Type { return fi.typ }

func (fi *fieldSetInvoker) Invoke(target any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("reflector: field setter %s takes exactly one argument", fi.name)
	}
	v, err := targetValue(target)
	if err != nil {
		return nil, err
	}
	fv, err := fieldByIndex(v.Elem(), fi.index, true)
	if err != nil {
		return nil, fmt.Errorf("reflector: write %s: %w", fi.name, err)
	}
	arg, err := coerce(args[0], fi.typ)
	if err != nil {
		return nil, fmt.Errorf("reflector: write %s: %w", fi.name, err)
	}
	fv.Set(arg)
	return nil, nil
}

// ambiguousInvoker poisons a property whose resolution found conflicting
// members. The conflict is reported when the property is used, carrying the
// message assembled at build time.
type ambiguousInvoker struct {
	typ reflect.Type
	err error
}

func (ai *ambiguousInvoker) Type() reflect.Type { return ai.typ }

func (ai *ambiguousInvoker) Invoke(any, ...any) (any, error) {
	return nil, ai.err
}

// targetValue validates the invocation target.
func targetValue(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("reflector: invocation target must be a non-nil struct pointer, got %T", target)
	}
	return v, nil
}

// fieldByIndex walks an embedded field chain. Nil pointer hops fail on read
// and are allocated on write.
func fieldByIndex(v reflect.Value, index []int, alloc bool) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 {
			if v.Kind() == reflect.Ptr {
				if v.IsNil() {
					if !alloc || !v.CanSet() {
						return reflect.Value{}, fmt.Errorf("nil embedded pointer %s", v.Type().Elem().Name())
					}
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, nil
}

// coerce adapts value to the target type. Exact matches and assignable
// values pass through, single-level pointers are dereferenced, and
// convertible values are converted. Numeric-to-string conversion is refused
// since reflect would produce a one-rune string rather than a rendering.
// fmt.Stringer values may populate string targets.
func coerce(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type() == target {
		return rv, nil
	}
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Type().Elem() == target {
		return rv.Elem(), nil
	}
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if target.Kind() == reflect.String && isNumericKind(rv.Kind()) {
		return reflect.Value{}, fmt.Errorf("refusing numeric %s to string conversion", rv.Type())
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	if target.Kind() == reflect.String {
		if s, ok := value.(fmt.Stringer); ok {
			return reflect.ValueOf(s.String()).Convert(target), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %s to %s", rv.Type(), target)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
