package domain

import "reflect"

// MappedSuperclass is embedded (anonymously) by structs that contribute mapped
// fields to entities but are not entities themselves. The marker only counts
// when it is a direct field of the struct, so entities embedding a mapped
// superclass are not mistaken for one.
//
//	type Audited struct {
//		domain.MappedSuperclass `gorm:"-"`
//		Notes *domain.Bag[*Note] `gorm:"-" dozer:"mappedBy:OwnerID"`
//	}
type MappedSuperclass struct{}

var mappedSuperclassType = reflect.TypeFor[MappedSuperclass]()

// IsMappedSuperclass reports whether t directly embeds MappedSuperclass.
func IsMappedSuperclass(t reflect.Type) bool {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous && f.Type == mappedSuperclassType {
			return true
		}
	}
	return false
}

// ResolveRole returns the collection role "<Entity>.<property>" for a property
// reached from owner. The embedding chain is walked from owner downwards;
// mapped superclasses never own a role, so a property they declare belongs to
// the nearest entity-level struct above them.
func ResolveRole(owner reflect.Type, property string) (string, error) {
	t := Indirect(owner)
	if t == nil || t.Kind() != reflect.Struct {
		return "", ErrPropertyNotDeclared.WithData("owner", typeName(owner)).WithData("property", property)
	}
	entity, found, err := declaringEntity(nil, t, property)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrPropertyNotDeclared.WithData("owner", t.String()).WithData("property", property)
	}
	return entity.Name() + "." + property, nil
}

func declaringEntity(entity, t reflect.Type, property string) (reflect.Type, bool, error) {
	if IsMappedSuperclass(t) {
		if entity == nil {
			return nil, false, ErrMappedSuperclassWithoutEntity.WithData("type", t.String())
		}
	} else {
		entity = t
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous && f.Name == property {
			return entity, true, nil
		}
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous || f.Type == mappedSuperclassType {
			continue
		}
		et := Indirect(f.Type)
		if et.Kind() != reflect.Struct {
			continue
		}
		owner, found, err := declaringEntity(entity, et, property)
		if err != nil || found {
			return owner, found, err
		}
	}
	return nil, false, nil
}

// Indirect strips pointer types.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeOf is reflect.TypeOf with pointers stripped: the "true class" of a node.
func TypeOf(v any) reflect.Type {
	return Indirect(reflect.TypeOf(v))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
