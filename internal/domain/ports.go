package domain

import (
	"context"
	"reflect"
)

// SessionFinder returns the session usable for entities of type t in the
// current unit of work, or false when none is active.
type SessionFinder interface {
	Session(t reflect.Type) (Session, bool)
}

// SessionFinderFunc adapts a function to SessionFinder.
type SessionFinderFunc func(t reflect.Type) (Session, bool)

func (f SessionFinderFunc) Session(t reflect.Type) (Session, bool) {
	return f(t)
}

// StaticFinder always answers with s; a nil s means "no session".
func StaticFinder(s Session) SessionFinder {
	return SessionFinderFunc(func(reflect.Type) (Session, bool) {
		return s, s != nil
	})
}

type Session interface {
	Metamodel() Metamodel
	PersistenceContext() PersistenceContext
}

// Metamodel is the entity metadata / persister subsystem. EntityPersister
// fails with ErrNoMetadata for types that are not mapped entities; callers
// treat that as "not an entity", not as a failure.
type Metamodel interface {
	EntityPersister(t reflect.Type) (EntityPersister, error)
	EntityPersisterByName(name string) (EntityPersister, error)
	CollectionPersister(role string) (CollectionPersister, error)
}

type AssociationKind int

const (
	AssociationToOne AssociationKind = iota
	AssociationCollection
)

// Association describes one mapped association property of an entity.
type Association struct {
	// Name is the Go field name on the entity (promoted fields included).
	Name string
	Kind AssociationKind
	// Target is the associated entity name (to-one only).
	Target string
	// ForeignKey is the owner's field holding the target identifier (to-one only).
	ForeignKey string
	// Role and Collection describe collection associations.
	Role       string
	Collection CollectionKind
}

type EntityPersister interface {
	EntityName() string
	MappedType() reflect.Type
	Identifier(entity any) (any, error)
	Associations() []Association
	// CreateProxy returns an uninitialized instance carrying only its identifier.
	CreateProxy(id any, s Session) (any, error)
	// NormalizeID converts id to the Go type of the primary key, so keys
	// built from foreign keys or decoded input compare equal.
	NormalizeID(id any) (any, error)
}

type CollectionPersister interface {
	Role() string
	Kind() CollectionKind
	// CreateCollection returns an empty, uninitialized collection bound to s.
	CreateCollection(s Session) (PersistentCollection, error)
}

type BatchFetchQueue interface {
	AddBatchLoadableEntityKey(key EntityKey)
}

// PersistenceContext is the per-session registry holding one canonical
// instance per entity key and one collection per collection key.
type PersistenceContext interface {
	Entity(key EntityKey) (any, bool)
	Proxy(key EntityKey) (any, bool)
	AddProxy(key EntityKey, proxy any)
	NarrowProxy(proxy any, p EntityPersister, key EntityKey, object any) (any, error)
	IsUninitializedProxy(obj any) bool
	Collection(key CollectionKey) (PersistentCollection, bool)
	AddUninitializedDetachedCollection(p CollectionPersister, c PersistentCollection)
	AddUnownedCollection(key CollectionKey, c PersistentCollection)
	BatchFetchQueue() BatchFetchQueue
}

// CollectionLoader populates a persistent collection on first access.
type CollectionLoader interface {
	InitializeCollection(c PersistentCollection) error
}

// EntityLoader loads an entity by name and identifier through the session.
type EntityLoader interface {
	Load(ctx context.Context, entity string, id any) (any, error)
}

// Initializer forces proxies and lazy collections to load.
type Initializer interface {
	Initialize(obj any) error
	IsInitialized(obj any) bool
}

// ModelCallback is the handle a definition keeps on the model that produced it.
type ModelCallback interface {
	SessionFinder() SessionFinder
	AddDetachedProperty(def PropertyDefinition)
}
