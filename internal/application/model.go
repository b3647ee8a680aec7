package application

import (
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
)

// DetachableModel is the long-lived handle a UI keeps on an ORM-managed
// object graph between requests. Detach strips session state from the graph
// and remembers which lazy properties were cut off; Attach wires those
// properties into the current session again.
//
// A DetachableModel is not safe for concurrent use. Models kept in a
// ModelStore are used through ModelStore.Acquire, which serializes access.
type DetachableModel struct {
	root   any
	finder domain.SessionFinder
	opts   options
	defs   []domain.PropertyDefinition
}

func NewDetachableModel(root any, finder domain.SessionFinder, opts ...Option) *DetachableModel {
	return newDetachableModel(root, finder, newOptions(opts))
}

func newDetachableModel(root any, finder domain.SessionFinder, o options) *DetachableModel {
	return &DetachableModel{root: root, finder: finder, opts: o}
}

func (m *DetachableModel) SessionFinder() domain.SessionFinder { return m.finder }

func (m *DetachableModel) AddDetachedProperty(def domain.PropertyDefinition) {
	m.defs = append(m.defs, def)
}

// Object returns the root of the graph.
func (m *DetachableModel) Object() any { return m.root }

// Detach walks the graph and replaces the recorded definitions. An
// uninitialized proxy as root is kept as a reference to its entity only.
// It returns the number of walked nodes.
func (m *DetachableModel) Detach() (int, error) {
	m.defs = nil
	if isNil(m.root) {
		return 0, nil
	}
	def, err := m.rootReference()
	if err != nil {
		return 0, err
	}
	if def != nil {
		m.defs = append(m.defs, def)
		return 0, nil
	}
	return newObjectVisitor(m.finder, m, m.opts).Walk(m.root)
}

func (m *DetachableModel) rootReference() (*domain.SimplePropertyDefinition, error) {
	if m.finder == nil {
		return nil, nil
	}
	t := domain.TypeOf(m.root)
	s, ok := m.finder.Session(t)
	if !ok || s == nil || !s.PersistenceContext().IsUninitializedProxy(m.root) {
		return nil, nil
	}
	p, err := s.Metamodel().EntityPersister(t)
	if err != nil {
		return nil, err
	}
	id, err := p.Identifier(m.root)
	if err != nil {
		return nil, err
	}
	ref := domain.EntityRef{Entity: p.EntityName(), ID: id}
	return domain.NewSimplePropertyDefinition(nil, "", m, ref, t), nil
}

// Attach reattaches every recorded definition through finder (or the
// model's own finder when nil) and writes the results back onto their
// owners. The attached proxies and collections are returned in definition
// order.
func (m *DetachableModel) Attach(finder domain.SessionFinder) ([]any, error) {
	if finder != nil {
		m.finder = finder
	}
	a := &Attacher{finder: m.finder, opts: m.opts}
	attached := make([]any, 0, len(m.defs))
	for _, def := range m.defs {
		value, err := a.Attach(def)
		if err != nil {
			return attached, err
		}
		if err := m.assign(def, value); err != nil {
			return attached, err
		}
		attached = append(attached, value)
	}
	m.defs = nil
	return attached, nil
}

func (m *DetachableModel) assign(def domain.PropertyDefinition, value any) error {
	owner := def.Owner()
	if owner == nil {
		m.root = value
		return nil
	}
	v := reflect.ValueOf(owner)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return domain.ErrUnaddressable.WithData("property", def.Property())
	}
	field, ok := fieldByName(v.Elem(), def.Property())
	if !ok {
		return domain.ErrPropertyNotDeclared.WithData("owner", v.Type().String()).WithData("property", def.Property())
	}
	val := reflect.ValueOf(value)
	if !field.CanSet() || !val.Type().AssignableTo(field.Type()) {
		return domain.ErrInvalidDefinition.
			WithData("property", def.Property()).
			WithData("field", field.Type().String()).
			WithData("value", val.Type().String())
	}
	field.Set(val)
	return nil
}

// Definitions returns the plain-data view of the recorded definitions.
func (m *DetachableModel) Definitions() []domain.DefinitionRecord {
	out := make([]domain.DefinitionRecord, 0, len(m.defs))
	for _, def := range m.defs {
		out = append(out, def.Record())
	}
	return out
}

// Detached reports whether the model currently holds definitions waiting
// to be attached.
func (m *DetachableModel) Detached() bool { return len(m.defs) > 0 }
