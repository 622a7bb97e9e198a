package lumen

import (
	"reflect"
)

// Columns are typed slices ([]T) behind an any, manipulated through reflection.

func makeColumn(elem reflect.Type) any {
	return reflect.MakeSlice(reflect.SliceOf(elem), 0, 1).Interface()
}

func columnGet(col any, r row) reflect.Value {
	return reflect.ValueOf(col).Index(int(r))
}

func columnSet(col any, r row, v reflect.Value) {
	reflect.ValueOf(col).Index(int(r)).Set(v)
}

// columnGrow appends one zero element and returns the (possibly reallocated) column.
func columnGrow(col any) any {
	v := reflect.ValueOf(col)
	return reflect.Append(v, reflect.Zero(v.Type().Elem())).Interface()
}

// columnClear zeroes a row so recycled rows do not keep references alive.
func columnClear(col any, r row) {
	e := reflect.ValueOf(col).Index(int(r))
	e.Set(reflect.Zero(e.Type()))
}

func columnLen(col any) int {
	return reflect.ValueOf(col).Len()
}
