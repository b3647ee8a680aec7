package domain

import (
	"errors"
	"reflect"
	"testing"
)

type audited struct {
	MappedSuperclass `gorm:"-"`
	Notes            *Bag[string]
}

type billing struct {
	MappedSuperclass `gorm:"-"`
	audited
	Terms string
}

type invoice struct {
	billing
	ID uint
}

type base struct {
	ID    uint
	Lines *List[string]
}

type creditNote struct {
	base
	Reason string
}

type orphan struct {
	MappedSuperclass `gorm:"-"`
	Notes            *Bag[string]
}

type wrapsOrphan struct {
	*orphan
}

func TestIsMappedSuperclassOnlyCountsDirectMarker(t *testing.T) {
	if !IsMappedSuperclass(reflect.TypeFor[audited]()) {
		t.Fatalf("audited should be a mapped superclass")
	}
	if !IsMappedSuperclass(reflect.TypeFor[*billing]()) {
		t.Fatalf("pointer to billing should be a mapped superclass")
	}
	if IsMappedSuperclass(reflect.TypeFor[invoice]()) {
		t.Fatalf("invoice embeds a mapped superclass but is an entity")
	}
	if IsMappedSuperclass(reflect.TypeFor[int]()) {
		t.Fatalf("int is not a mapped superclass")
	}
}

func TestResolveRoleClimbsPastMappedSuperclasses(t *testing.T) {
	role, err := ResolveRole(reflect.TypeFor[*invoice](), "Notes")
	if err != nil {
		t.Fatalf("resolve role: %v", err)
	}
	if role != "invoice.Notes" {
		t.Fatalf("unexpected role %q", role)
	}

	role, err = ResolveRole(reflect.TypeFor[invoice](), "Terms")
	if err != nil {
		t.Fatalf("resolve role: %v", err)
	}
	if role != "invoice.Terms" {
		t.Fatalf("unexpected role %q", role)
	}
}

func TestResolveRoleUsesDeclaringEntity(t *testing.T) {
	role, err := ResolveRole(reflect.TypeFor[creditNote](), "Lines")
	if err != nil {
		t.Fatalf("resolve role: %v", err)
	}
	if role != "base.Lines" {
		t.Fatalf("expected role on the declaring entity, got %q", role)
	}

	role, err = ResolveRole(reflect.TypeFor[creditNote](), "Reason")
	if err != nil {
		t.Fatalf("resolve role: %v", err)
	}
	if role != "creditNote.Reason" {
		t.Fatalf("unexpected role %q", role)
	}
}

func TestResolveRoleRejectsMappedSuperclassRoot(t *testing.T) {
	_, err := ResolveRole(reflect.TypeFor[orphan](), "Notes")
	if !errors.Is(err, ErrMappedSuperclassWithoutEntity) {
		t.Fatalf("expected mapped superclass error, got %v", err)
	}

	role, err := ResolveRole(reflect.TypeFor[wrapsOrphan](), "Notes")
	if err != nil {
		t.Fatalf("resolve through embedding entity: %v", err)
	}
	if role != "wrapsOrphan.Notes" {
		t.Fatalf("unexpected role %q", role)
	}
}

func TestResolveRoleUndeclaredProperty(t *testing.T) {
	_, err := ResolveRole(reflect.TypeFor[invoice](), "Missing")
	if !errors.Is(err, ErrPropertyNotDeclared) {
		t.Fatalf("expected undeclared property error, got %v", err)
	}
	_, err = ResolveRole(reflect.TypeFor[string](), "Notes")
	if !errors.Is(err, ErrPropertyNotDeclared) {
		t.Fatalf("expected undeclared property error for non-struct, got %v", err)
	}
}

func TestCollectionDefinitionResolvesRoleEagerly(t *testing.T) {
	if _, err := NewCollectionPropertyDefinition(&orphan{}, "Notes", nil, CollectionBag); !errors.Is(err, ErrMappedSuperclassWithoutEntity) {
		t.Fatalf("expected construction to fail, got %v", err)
	}

	def, err := NewCollectionPropertyDefinition(&invoice{ID: 3}, "Notes", nil, CollectionBag)
	if err != nil {
		t.Fatalf("new definition: %v", err)
	}
	if def.Role() != "invoice.Notes" {
		t.Fatalf("unexpected role %q", def.Role())
	}
	if got := def.Key(uint(3)); got != (CollectionKey{Role: "invoice.Notes", Owner: uint(3)}) {
		t.Fatalf("unexpected key %v", got)
	}
	if def.PropertyType() != reflect.TypeFor[*Bag[string]]() {
		t.Fatalf("unexpected property type %v", def.PropertyType())
	}
	rec := def.Record()
	if rec.Kind != "collection" || rec.Collection != "bag" || rec.Owner != "invoice" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestSimpleDefinitionKeyAndType(t *testing.T) {
	type customer struct{ ID uint }
	type order struct {
		ID         uint
		CustomerID uint
		Customer   *customer
	}

	def := NewSimplePropertyDefinition(&order{ID: 1}, "Customer", nil, EntityRef{Entity: "customer", ID: uint(7)}, reflect.TypeFor[*customer]())
	if def.Key() != (EntityKey{Entity: "customer", ID: uint(7)}) {
		t.Fatalf("unexpected key %v", def.Key())
	}
	if def.EntityType() != reflect.TypeFor[customer]() {
		t.Fatalf("entity type should be indirected, got %v", def.EntityType())
	}
	if def.PropertyType() != reflect.TypeFor[*customer]() {
		t.Fatalf("unexpected property type %v", def.PropertyType())
	}

	root := NewSimplePropertyDefinition(nil, "", nil, EntityRef{Entity: "customer", ID: uint(7)}, reflect.TypeFor[customer]())
	if root.PropertyType() != reflect.TypeFor[*customer]() {
		t.Fatalf("root definition should fall back to the entity pointer type")
	}
}
