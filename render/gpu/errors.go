package gpu

import (
	"errors"
	"reflect"
)

var (
	ErrOutOfMemory       = errors.New("gpu: out of memory")
	ErrInvalidDescriptor = errors.New("gpu: invalid descriptor")
	ErrDisposed          = errors.New("gpu: resource already disposed")
	ErrUnknownResource   = errors.New("gpu: resource not owned by this device")
)

// IsNil reports whether r is nil or an interface holding a nil pointer.
func IsNil(r any) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
