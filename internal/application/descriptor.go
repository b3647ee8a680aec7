package application

import (
	"reflect"
	"strings"
	"sync"
)

// walkableField is one field the object strategy follows.
type walkableField struct {
	Name  string
	Index []int
}

// typeDescriptor lists the walkable fields of a struct type. A nested value
// struct is listed as one field when it has walkable fields of its own, so
// the walk reaches it by address and can treat it as an entity.
type typeDescriptor struct {
	Type   reflect.Type
	Fields []walkableField
}

var descriptors sync.Map // reflect.Type -> *typeDescriptor

func describe(t reflect.Type) *typeDescriptor {
	if d, ok := descriptors.Load(t); ok {
		return d.(*typeDescriptor)
	}
	d := &typeDescriptor{Type: t}
	collectFields(t, &d.Fields)
	actual, _ := descriptors.LoadOrStore(t, d)
	return actual.(*typeDescriptor)
}

func collectFields(t reflect.Type, out *[]walkableField) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || skipTag(f.Tag) {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Array:
			*out = append(*out, walkableField{Name: f.Name, Index: f.Index})
		case reflect.Struct:
			if len(describe(f.Type).Fields) > 0 {
				*out = append(*out, walkableField{Name: f.Name, Index: f.Index})
			}
		}
	}
}

func skipTag(tag reflect.StructTag) bool {
	v, ok := tag.Lookup("dozer")
	if !ok {
		return false
	}
	return strings.TrimSpace(v) == "-"
}
