// Package reflectx has the reflection helpers tool definitions need to turn
// plain Go functions into model-callable tools.
package reflectx

import (
	"reflect"
	"runtime"
	"strings"
)

func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}
	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// FunctionName returns the name a tool gets when none was given. Named func
// types use their type name; functions and method values use the last
// segment of their runtime symbol.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	if typ := val.Type(); typ.Name() != "" {
		return typ.String()
	}

	rf := runtime.FuncForPC(val.Pointer())
	if rf == nil {
		return val.Type().String()
	}
	name := rf.Name()
	if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
		name = name[lastDot+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// Is reports whether t is exactly the type R.
func Is[R any](t reflect.Type) bool {
	return reflect.TypeFor[R]() == t
}
