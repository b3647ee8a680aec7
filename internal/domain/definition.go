package domain

import "reflect"

// PropertyDefinition describes one ORM-managed property detached from its
// session: which property, on which owner. It is closed to the two variants
// below; switch on *SimplePropertyDefinition / *CollectionPropertyDefinition.
type PropertyDefinition interface {
	Owner() any
	Property() string
	PropertyType() reflect.Type
	ModelCallback() ModelCallback
	Record() DefinitionRecord
	propertyDefinition()
}

type propertyBase struct {
	owner    any
	property string
	callback ModelCallback
}

func (p propertyBase) Owner() any                   { return p.owner }
func (p propertyBase) Property() string             { return p.property }
func (p propertyBase) ModelCallback() ModelCallback { return p.callback }
func (propertyBase) propertyDefinition()            {}

// EntityRef is the plain-data reference to an entity: its name and identifier.
type EntityRef struct {
	Entity string
	ID     any
}

func (r EntityRef) Key() EntityKey {
	return EntityKey{Entity: r.Entity, ID: r.ID}
}

// SimplePropertyDefinition is a detached to-one association (or root entity reference).
type SimplePropertyDefinition struct {
	propertyBase
	ref        EntityRef
	entityType reflect.Type
}

func NewSimplePropertyDefinition(owner any, property string, callback ModelCallback, ref EntityRef, entityType reflect.Type) *SimplePropertyDefinition {
	return &SimplePropertyDefinition{
		propertyBase: propertyBase{owner: owner, property: property, callback: callback},
		ref:          ref,
		entityType:   Indirect(entityType),
	}
}

func (d *SimplePropertyDefinition) EntityRef() EntityRef { return d.ref }

// Key is the entity key the definition resolves to.
func (d *SimplePropertyDefinition) Key() EntityKey { return d.ref.Key() }

// EntityType is the declared entity type (pointers stripped).
func (d *SimplePropertyDefinition) EntityType() reflect.Type { return d.entityType }

func (d *SimplePropertyDefinition) PropertyType() reflect.Type {
	if ft, ok := fieldType(d.owner, d.property); ok {
		return ft
	}
	return reflect.PointerTo(d.entityType)
}

func (d *SimplePropertyDefinition) Record() DefinitionRecord {
	return DefinitionRecord{
		Kind:     "simple",
		Owner:    ownerName(d.owner),
		Property: d.property,
		Entity:   d.ref.Entity,
		ID:       d.ref.ID,
	}
}

// CollectionPropertyDefinition is a detached lazy collection. The role is
// resolved when the definition is built, so mapping mistakes surface at detach time.
type CollectionPropertyDefinition struct {
	propertyBase
	kind CollectionKind
	role string
}

func NewCollectionPropertyDefinition(owner any, property string, callback ModelCallback, kind CollectionKind) (*CollectionPropertyDefinition, error) {
	role, err := ResolveRole(reflect.TypeOf(owner), property)
	if err != nil {
		return nil, err
	}
	return &CollectionPropertyDefinition{
		propertyBase: propertyBase{owner: owner, property: property, callback: callback},
		kind:         kind,
		role:         role,
	}, nil
}

func (d *CollectionPropertyDefinition) Kind() CollectionKind { return d.kind }

func (d *CollectionPropertyDefinition) Role() string { return d.role }

// Key is the collection key for the given owner identifier.
func (d *CollectionPropertyDefinition) Key(ownerID any) CollectionKey {
	return CollectionKey{Role: d.role, Owner: ownerID}
}

func (d *CollectionPropertyDefinition) PropertyType() reflect.Type {
	ft, _ := fieldType(d.owner, d.property)
	return ft
}

func (d *CollectionPropertyDefinition) Record() DefinitionRecord {
	return DefinitionRecord{
		Kind:       "collection",
		Owner:      ownerName(d.owner),
		Property:   d.property,
		Role:       d.role,
		Collection: d.kind.String(),
	}
}

// DefinitionRecord is the plain-data view of a definition.
type DefinitionRecord struct {
	Kind       string `json:"kind"`
	Owner      string `json:"owner"`
	Property   string `json:"property"`
	Entity     string `json:"entity,omitempty"`
	ID         any    `json:"id,omitempty"`
	Role       string `json:"role,omitempty"`
	Collection string `json:"collection,omitempty"`
}

func fieldType(owner any, property string) (reflect.Type, bool) {
	t := TypeOf(owner)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	f, ok := t.FieldByName(property)
	if !ok {
		return nil, false
	}
	return f.Type, true
}

func ownerName(owner any) string {
	if t := TypeOf(owner); t != nil {
		return t.Name()
	}
	return ""
}
