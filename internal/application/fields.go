package application

import "reflect"

// fieldByName resolves a (possibly promoted) field on a struct value. It
// reports false when the field does not exist or sits behind a nil embedded
// pointer.
func fieldByName(v reflect.Value, name string) (reflect.Value, bool) {
	sf, ok := v.Type().FieldByName(name)
	if !ok {
		return reflect.Value{}, false
	}
	f, err := v.FieldByIndexErr(sf.Index)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

func isNil(node any) bool {
	if node == nil {
		return true
	}
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// appendChild adds v to out when it can hold references worth walking.
// Addressable structs and arrays are passed by address so the walk can
// mutate them in place.
func appendChild(out []any, v reflect.Value) []any {
	if !v.IsValid() || !v.CanInterface() {
		return out
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return out
		}
		return append(out, v.Interface())
	case reflect.Interface:
		if v.IsNil() {
			return out
		}
		return appendChild(out, v.Elem())
	case reflect.Struct, reflect.Array:
		if v.CanAddr() {
			return append(out, v.Addr().Interface())
		}
		return append(out, v.Interface())
	}
	return out
}
