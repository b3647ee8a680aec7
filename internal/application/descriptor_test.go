package application

import (
	"reflect"
	"testing"
	"time"
)

type Address struct {
	Street string
	Owner  *Person
}

type Person struct {
	Name     string
	Home     Address
	Friends  []*Person
	Labels   map[string]string
	Cache    *Person `dozer:"-"`
	Any      any
	Born     time.Time
	secret   *Person
	Favorite [2]*Person
}

func TestDescribeListsWalkableFields(t *testing.T) {
	d := describe(reflect.TypeFor[Person]())

	var names []string
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	want := []string{"Home", "Friends", "Labels", "Any", "Favorite"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected fields %v, want %v", names, want)
	}
	if !reflect.DeepEqual(d.Fields[0].Index, []int{1}) {
		t.Fatalf("nested struct should be listed as one field, got %v", d.Fields[0].Index)
	}
	if describe(reflect.TypeFor[Person]()) != d {
		t.Fatalf("descriptor should be cached per type")
	}
}
