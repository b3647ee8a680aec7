package application

import (
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
)

// visitorStrategy neutralizes the ORM state of one node and reports the
// children to walk next. The set of strategies is closed.
type visitorStrategy interface {
	visit(node any) ([]any, error)
}

// entityStrategy handles mapped entities. Uninitialized lazy associations
// are captured as definitions and left alone; initialized persistent
// collections are swapped for plain detached copies.
type entityStrategy struct {
	session   domain.Session
	persister domain.EntityPersister
	callback  domain.ModelCallback
}

func (s entityStrategy) visit(node any) ([]any, error) {
	v := reflect.ValueOf(node)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, domain.ErrUnaddressable.WithData("entity", s.persister.EntityName())
	}
	elem := v.Elem()

	var children []any
	for _, a := range s.persister.Associations() {
		field, ok := fieldByName(elem, a.Name)
		if !ok {
			continue
		}
		var (
			child any
			err   error
		)
		switch a.Kind {
		case domain.AssociationToOne:
			child, err = s.toOne(node, elem, field, a)
		case domain.AssociationCollection:
			child, err = s.collection(node, field, a)
		}
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

func (s entityStrategy) toOne(node any, elem, field reflect.Value, a domain.Association) (any, error) {
	if field.Kind() != reflect.Pointer && field.Kind() != reflect.Interface {
		return nil, nil
	}
	if field.IsNil() {
		id, ok := foreignKey(elem, a.ForeignKey)
		if !ok {
			return nil, nil
		}
		tp, err := s.session.Metamodel().EntityPersisterByName(a.Target)
		if err != nil {
			return nil, err
		}
		if id, err = tp.NormalizeID(id); err != nil {
			return nil, err
		}
		s.record(node, a, id, field.Type())
		return nil, nil
	}

	target := field.Interface()
	if !s.session.PersistenceContext().IsUninitializedProxy(target) {
		return target, nil
	}
	tp, err := s.session.Metamodel().EntityPersisterByName(a.Target)
	if err != nil {
		return nil, err
	}
	id, err := tp.Identifier(target)
	if err != nil {
		return nil, err
	}
	s.record(node, a, id, field.Type())
	return nil, nil
}

func (s entityStrategy) record(node any, a domain.Association, id any, declared reflect.Type) {
	ref := domain.EntityRef{Entity: a.Target, ID: id}
	s.callback.AddDetachedProperty(domain.NewSimplePropertyDefinition(node, a.Name, s.callback, ref, declared))
}

func (s entityStrategy) collection(node any, field reflect.Value, a domain.Association) (any, error) {
	if isNil(field.Interface()) {
		return nil, nil
	}
	pc, ok := field.Interface().(domain.PersistentCollection)
	if !ok {
		return field.Interface(), nil
	}
	if !pc.WasInitialized() {
		def, err := domain.NewCollectionPropertyDefinition(node, a.Name, s.callback, a.Collection)
		if err != nil {
			return nil, err
		}
		s.callback.AddDetachedProperty(def)
		return nil, nil
	}

	plain := pc.Detached()
	pv := reflect.ValueOf(plain)
	if !field.CanSet() || !pv.Type().AssignableTo(field.Type()) {
		return nil, domain.ErrInvalidDefinition.WithData("property", a.Name).WithData("type", field.Type().String())
	}
	field.Set(pv)
	return plain, nil
}

// foreignKey reads the identifier held by a belongs-to foreign key field.
// Zero and nil keys mean "no association".
func foreignKey(elem reflect.Value, name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	fk, ok := fieldByName(elem, name)
	if !ok {
		return nil, false
	}
	for fk.Kind() == reflect.Pointer {
		if fk.IsNil() {
			return nil, false
		}
		fk = fk.Elem()
	}
	if fk.IsZero() {
		return nil, false
	}
	return fk.Interface(), true
}

// collectionStrategy walks slice and array elements, and the loaded
// elements of persistent collections.
type collectionStrategy struct{}

func (collectionStrategy) visit(node any) ([]any, error) {
	if pc, ok := node.(domain.PersistentCollection); ok {
		return entryChildren(pc, false), nil
	}
	v := reflect.Indirect(reflect.ValueOf(node))
	var out []any
	for i := range v.Len() {
		out = appendChild(out, v.Index(i))
	}
	return out, nil
}

// mapStrategy walks map values, and keys when configured to. Map entries
// are not addressable, so an entity stored by value in a map fails the walk
// with ErrUnaddressable; such maps must hold entity pointers.
type mapStrategy struct {
	keys bool
}

func (s mapStrategy) visit(node any) ([]any, error) {
	if pc, ok := node.(domain.PersistentCollection); ok {
		return entryChildren(pc, s.keys), nil
	}
	v := reflect.Indirect(reflect.ValueOf(node))
	var out []any
	iter := v.MapRange()
	for iter.Next() {
		if s.keys {
			out = appendChild(out, iter.Key())
		}
		out = appendChild(out, iter.Value())
	}
	return out, nil
}

func entryChildren(pc domain.PersistentCollection, keys bool) []any {
	if !pc.WasInitialized() {
		return nil
	}
	var out []any
	for _, e := range pc.Entries() {
		if keys {
			out = appendChild(out, reflect.ValueOf(e.Key))
		}
		out = appendChild(out, reflect.ValueOf(e.Value))
	}
	return out
}

// objectStrategy follows the walkable fields of plain structs.
type objectStrategy struct{}

func (objectStrategy) visit(node any) ([]any, error) {
	v := reflect.ValueOf(node)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil
	}
	var out []any
	for _, f := range describe(v.Type()).Fields {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		out = appendChild(out, fv)
	}
	return out, nil
}
