package orm

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/devgateway/dozer-model/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var collectionType = reflect.TypeFor[domain.PersistentCollection]()

// Metamodel holds the persisters of every registered entity. It is built
// once from gorm schemas and is safe for concurrent use afterwards.
type Metamodel struct {
	byType map[reflect.Type]*EntityPersister
	byName map[string]*EntityPersister
	roles  map[string]*CollectionPersister
}

// NewMetamodel parses models (pointers to zero entity values) with gorm and
// derives to-one associations from belongs-to relations and lazy
// collections from fields tagged `dozer:"mappedBy:<field>"`.
func NewMetamodel(db *gorm.DB, models ...any) (*Metamodel, error) {
	m := &Metamodel{
		byType: make(map[reflect.Type]*EntityPersister),
		byName: make(map[string]*EntityPersister),
		roles:  make(map[string]*CollectionPersister),
	}

	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse %T: %w", model, err)
		}
		sch := stmt.Schema
		if domain.IsMappedSuperclass(sch.ModelType) {
			return nil, fmt.Errorf("%s is a mapped superclass, not an entity", sch.Name)
		}
		if sch.PrioritizedPrimaryField == nil {
			return nil, fmt.Errorf("entity %s has no primary key", sch.Name)
		}
		p := &EntityPersister{name: sch.Name, typ: sch.ModelType, schema: sch, pk: sch.PrioritizedPrimaryField}
		m.byType[p.typ] = p
		m.byName[p.name] = p
	}

	for _, p := range m.byType {
		if err := m.bindToOne(p); err != nil {
			return nil, err
		}
		if err := m.bindCollections(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metamodel) bindToOne(p *EntityPersister) error {
	rels := append([]*schema.Relationship(nil), p.schema.Relationships.BelongsTo...)
	sort.Slice(rels, func(i, j int) bool { return rels[i].Name < rels[j].Name })

	for _, rel := range rels {
		target, ok := m.byType[rel.FieldSchema.ModelType]
		if !ok {
			return fmt.Errorf("%s.%s targets unregistered entity %s", p.name, rel.Name, rel.FieldSchema.Name)
		}
		if len(rel.References) != 1 || rel.References[0].ForeignKey == nil {
			return fmt.Errorf("%s.%s: composite foreign keys are not supported", p.name, rel.Name)
		}
		sf, ok := p.typ.FieldByName(rel.Name)
		if !ok {
			return fmt.Errorf("%s.%s: association field not found", p.name, rel.Name)
		}
		fk := rel.References[0].ForeignKey
		p.toOne = append(p.toOne, toOneMapping{
			name:   rel.Name,
			index:  sf.Index,
			fk:     fk,
			target: target,
		})
		p.assocs = append(p.assocs, domain.Association{
			Name:       rel.Name,
			Kind:       domain.AssociationToOne,
			Target:     target.name,
			ForeignKey: fk.Name,
		})
	}
	return nil
}

func (m *Metamodel) bindCollections(p *EntityPersister) error {
	for _, f := range reflect.VisibleFields(p.typ) {
		tag, ok := f.Tag.Lookup("dozer")
		if !ok || f.Anonymous || strings.TrimSpace(tag) == "-" {
			continue
		}
		if !settable(p.typ, f.Index) {
			return fmt.Errorf("%s.%s: collection field must be reachable through exported fields", p.name, f.Name)
		}
		if f.Type.Kind() != reflect.Pointer || !f.Type.Implements(collectionType) {
			return fmt.Errorf("%s.%s: %s is not a persistent collection", p.name, f.Name, f.Type)
		}

		role, err := domain.ResolveRole(p.typ, f.Name)
		if err != nil {
			return err
		}
		cp, ok := m.roles[role]
		if !ok {
			cp, err = m.newCollectionPersister(p, role, f, tag)
			if err != nil {
				return err
			}
			m.roles[role] = cp
		}
		p.lazy = append(p.lazy, lazyCollection{index: f.Index, persister: cp})
		p.assocs = append(p.assocs, domain.Association{
			Name:       f.Name,
			Kind:       domain.AssociationCollection,
			Role:       role,
			Collection: cp.kind,
		})
	}
	return nil
}

func (m *Metamodel) newCollectionPersister(owner *EntityPersister, role string, f reflect.StructField, tag string) (*CollectionPersister, error) {
	zero := reflect.New(f.Type.Elem()).Interface().(domain.PersistentCollection)
	element, ok := m.byType[domain.Indirect(zero.ElementType())]
	if !ok {
		return nil, fmt.Errorf("%s: element type %s is not a registered entity", role, zero.ElementType())
	}

	settings := schema.ParseTagSetting(tag, ";")
	lookup := func(key string, required bool) (*schema.Field, error) {
		name := strings.TrimSpace(settings[key])
		if name == "" {
			if required {
				return nil, fmt.Errorf("%s: %s is required", role, strings.ToLower(key))
			}
			return nil, nil
		}
		field := element.schema.LookUpField(name)
		if field == nil {
			return nil, fmt.Errorf("%s: %s has no field %s", role, element.name, name)
		}
		return field, nil
	}

	cp := &CollectionPersister{role: role, kind: zero.Kind(), typ: f.Type, owner: owner, element: element}
	var err error
	if cp.mappedBy, err = lookup("MAPPEDBY", true); err != nil {
		return nil, err
	}
	if cp.orderBy, err = lookup("ORDERBY", false); err != nil {
		return nil, err
	}
	if cp.mapKey, err = lookup("MAPKEY", cp.kind == domain.CollectionMap); err != nil {
		return nil, err
	}
	if cp.ownerType, err = lookup("OWNERTYPE", false); err != nil {
		return nil, err
	}
	return cp, nil
}

func settable(t reflect.Type, index []int) bool {
	for i := range index {
		f := t.FieldByIndex(index[:i+1])
		if !f.IsExported() {
			return false
		}
	}
	return true
}

func (m *Metamodel) EntityPersister(t reflect.Type) (domain.EntityPersister, error) {
	p, ok := m.byType[domain.Indirect(t)]
	if !ok {
		return nil, domain.ErrNoMetadata.WithData("type", fmt.Sprint(t))
	}
	return p, nil
}

func (m *Metamodel) EntityPersisterByName(name string) (domain.EntityPersister, error) {
	return m.persister(name)
}

func (m *Metamodel) persister(name string) (*EntityPersister, error) {
	p, ok := m.byName[name]
	if !ok {
		return nil, domain.ErrUnknownEntity.WithData("entity", name)
	}
	return p, nil
}

func (m *Metamodel) CollectionPersister(role string) (domain.CollectionPersister, error) {
	cp, ok := m.roles[role]
	if !ok {
		return nil, domain.ErrUnknownRole.WithData("role", role)
	}
	return cp, nil
}

// Entities returns the registered entity names, sorted.
func (m *Metamodel) Entities() []string {
	out := make([]string, 0, len(m.byName))
	for name := range m.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Roles returns the registered collection roles, sorted.
func (m *Metamodel) Roles() []string {
	out := make([]string, 0, len(m.roles))
	for role := range m.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
