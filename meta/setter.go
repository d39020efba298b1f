package meta

import (
	"fmt"
	"reflect"
	"sync"
	"time"
	"unsafe"
)

// Direct setters bypass reflection on the write path for field-backed
// properties whose offset chain contains no pointer hops. They are the hot
// path for row scanning; invokers keep the safe, error-returning path.

var setterCreators sync.Map // reflect.Type -> func(uintptr) func(unsafe.Pointer, any)

func registerSetterCreator[T any]() {
	var zero T
	zeroType := reflect.TypeOf(&zero).Elem()

	setterCreators.Store(zeroType, func(offset uintptr) func(unsafe.Pointer, any) {
		return func(structPtr unsafe.Pointer, value any) {
			fieldPtr := (*T)(unsafe.Add(structPtr, offset))

			if value == nil {
				*fieldPtr = zero
				return
			}
			if v, ok := value.(T); ok {
				*fieldPtr = v
				return
			}

			rv := reflect.ValueOf(value)
			if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Type().Elem() == zeroType {
				*fieldPtr = rv.Elem().Interface().(T)
				return
			}
			if rv.Type().ConvertibleTo(zeroType) {
				*fieldPtr = rv.Convert(zeroType).Interface().(T)
				return
			}
			panic(fmt.Sprintf("cannot set %s field with value of type %T", zeroType, value))
		}
	})
}

func init() {
	registerSetterCreator[string]()
	registerSetterCreator[*string]()
	registerSetterCreator[bool]()
	registerSetterCreator[int]()
	registerSetterCreator[int32]()
	registerSetterCreator[int64]()
	registerSetterCreator[uint64]()
	registerSetterCreator[float64]()
	registerSetterCreator[time.Time]()
	registerSetterCreator[[]byte]()
}

// createDirectSetter compiles a setter writing through the field's absolute
// offset from the struct base pointer. Unregistered field types fall back
// to reflect.NewAt.
func createDirectSetter(fieldType reflect.Type, offset uintptr) func(unsafe.Pointer, any) {
	if creator, ok := setterCreators.Load(fieldType); ok {
		return creator.(func(uintptr) func(unsafe.Pointer, any))(offset)
	}

	return func(structPtr unsafe.Pointer, value any) {
		targetValue := reflect.NewAt(fieldType, unsafe.Add(structPtr, offset)).Elem()

		if value == nil {
			targetValue.Set(reflect.Zero(fieldType))
			return
		}

		val := reflect.ValueOf(value)
		if val.Kind() == reflect.Ptr && !val.IsNil() && val.Type() != fieldType {
			val = val.Elem()
		}

		switch {
		case val.Type() == fieldType:
			targetValue.Set(val)
		case val.Type().AssignableTo(fieldType):
			targetValue.Set(val)
		case val.Type().ConvertibleTo(fieldType):
			targetValue.Set(val.Convert(fieldType))
		default:
			panic(fmt.Sprintf("cannot set field of type %s with value of type %s", fieldType, val.Type()))
		}
	}
}
