package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// Entry is one element of a persistent collection. Key is only set for maps.
type Entry struct {
	Key   any
	Value any
}

// PersistentCollection is the session-aware container used for lazy
// collection properties. Bag, List, Set and Map implement it; entities declare
// such fields as pointers (for example Items *domain.Bag[*OrderItem]).
type PersistentCollection interface {
	Kind() CollectionKind
	ElementType() reflect.Type
	WasInitialized() bool
	Role() string
	Key() any
	SetSnapshot(key any, role string, snapshot any)
	SetCurrentSession(l CollectionLoader)
	// Entries returns what is loaded; it never triggers initialization.
	Entries() []Entry
	// Load replaces the contents and marks the collection initialized.
	Load(entries []Entry) error
	// Detached returns a plain copy with the same elements and no session state.
	Detached() PersistentCollection
}

type lazyState struct {
	loader      CollectionLoader
	role        string
	key         any
	snapshot    any
	initialized bool
}

func (s *lazyState) WasInitialized() bool { return s.initialized }
func (s *lazyState) Role() string         { return s.role }
func (s *lazyState) Key() any             { return s.key }

func (s *lazyState) SetSnapshot(key any, role string, snapshot any) {
	s.key = key
	s.role = role
	s.snapshot = snapshot
}

func (s *lazyState) SetCurrentSession(l CollectionLoader) {
	s.loader = l
}

func (s *lazyState) read(c PersistentCollection) error {
	if s.initialized {
		return nil
	}
	if s.loader == nil {
		return ErrLazyInitialization.WithData("role", s.role).WithData("owner", s.key)
	}
	return s.loader.InitializeCollection(c)
}

func convert[T any](v any) (T, error) {
	out, ok := v.(T)
	if !ok && v != nil {
		return out, fmt.Errorf("collection element %T is not %s", v, reflect.TypeFor[T]())
	}
	return out, nil
}

type elements[T any] struct {
	lazyState
	items []T
}

func (c *elements[T]) ElementType() reflect.Type { return reflect.TypeFor[T]() }

func (c *elements[T]) Entries() []Entry {
	out := make([]Entry, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, Entry{Value: v})
	}
	return out
}

func (c *elements[T]) Load(entries []Entry) error {
	items := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := convert[T](e.Value)
		if err != nil {
			return err
		}
		items = append(items, v)
	}
	c.items = items
	c.initialized = true
	return nil
}

func (c *elements[T]) marshal() ([]byte, error) {
	if !c.initialized {
		return []byte("null"), nil
	}
	if c.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.items)
}

// Bag is an unordered collection that allows duplicates.
type Bag[T any] struct {
	elements[T]
}

// NewBag returns a plain, initialized bag.
func NewBag[T any](items ...T) *Bag[T] {
	b := &Bag[T]{}
	b.items = slices.Clone(items)
	b.initialized = true
	return b
}

func (b *Bag[T]) Kind() CollectionKind { return CollectionBag }

func (b *Bag[T]) All() ([]T, error) {
	if err := b.read(b); err != nil {
		return nil, err
	}
	return slices.Clone(b.items), nil
}

func (b *Bag[T]) Len() (int, error) {
	if err := b.read(b); err != nil {
		return 0, err
	}
	return len(b.items), nil
}

func (b *Bag[T]) Add(v T) error {
	if err := b.read(b); err != nil {
		return err
	}
	b.items = append(b.items, v)
	return nil
}

func (b *Bag[T]) Detached() PersistentCollection {
	out := &Bag[T]{}
	out.items = slices.Clone(b.items)
	out.initialized = b.initialized
	return out
}

func (b *Bag[T]) MarshalJSON() ([]byte, error) { return b.marshal() }

// List is an ordered collection.
type List[T any] struct {
	elements[T]
}

func NewList[T any](items ...T) *List[T] {
	l := &List[T]{}
	l.items = slices.Clone(items)
	l.initialized = true
	return l
}

func (l *List[T]) Kind() CollectionKind { return CollectionList }

func (l *List[T]) All() ([]T, error) {
	if err := l.read(l); err != nil {
		return nil, err
	}
	return slices.Clone(l.items), nil
}

func (l *List[T]) At(i int) (T, error) {
	var zero T
	if err := l.read(l); err != nil {
		return zero, err
	}
	if i < 0 || i >= len(l.items) {
		return zero, fmt.Errorf("list index %d out of range [0,%d)", i, len(l.items))
	}
	return l.items[i], nil
}

func (l *List[T]) Len() (int, error) {
	if err := l.read(l); err != nil {
		return 0, err
	}
	return len(l.items), nil
}

func (l *List[T]) Append(v T) error {
	if err := l.read(l); err != nil {
		return err
	}
	l.items = append(l.items, v)
	return nil
}

func (l *List[T]) Detached() PersistentCollection {
	out := &List[T]{}
	out.items = slices.Clone(l.items)
	out.initialized = l.initialized
	return out
}

func (l *List[T]) MarshalJSON() ([]byte, error) { return l.marshal() }

// Set is a collection without duplicates; iteration follows insertion order.
type Set[T comparable] struct {
	lazyState
	items []T
	index map[T]struct{}
}

func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{}
	s.initialized = true
	for _, v := range items {
		s.insert(v)
	}
	return s
}

func (s *Set[T]) Kind() CollectionKind { return CollectionSet }

func (s *Set[T]) ElementType() reflect.Type { return reflect.TypeFor[T]() }

func (s *Set[T]) insert(v T) bool {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *Set[T]) All() ([]T, error) {
	if err := s.read(s); err != nil {
		return nil, err
	}
	return slices.Clone(s.items), nil
}

func (s *Set[T]) Contains(v T) (bool, error) {
	if err := s.read(s); err != nil {
		return false, err
	}
	_, ok := s.index[v]
	return ok, nil
}

func (s *Set[T]) Len() (int, error) {
	if err := s.read(s); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// Add inserts v and reports whether it was not yet present.
func (s *Set[T]) Add(v T) (bool, error) {
	if err := s.read(s); err != nil {
		return false, err
	}
	return s.insert(v), nil
}

func (s *Set[T]) Entries() []Entry {
	out := make([]Entry, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, Entry{Value: v})
	}
	return out
}

func (s *Set[T]) Load(entries []Entry) error {
	s.items, s.index = nil, nil
	for _, e := range entries {
		v, err := convert[T](e.Value)
		if err != nil {
			return err
		}
		s.insert(v)
	}
	s.initialized = true
	return nil
}

func (s *Set[T]) Detached() PersistentCollection {
	out := &Set[T]{}
	out.initialized = s.initialized
	for _, v := range s.items {
		out.insert(v)
	}
	return out
}

func (s *Set[T]) MarshalJSON() ([]byte, error) {
	if !s.initialized {
		return []byte("null"), nil
	}
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// Map is a keyed collection; iteration follows insertion order.
type Map[K comparable, V any] struct {
	lazyState
	keys   []K
	values map[K]V
}

func NewMap[K comparable, V any](values map[K]V) *Map[K, V] {
	m := &Map[K, V]{}
	m.initialized = true
	for k, v := range values {
		m.put(k, v)
	}
	return m
}

func (m *Map[K, V]) Kind() CollectionKind { return CollectionMap }

func (m *Map[K, V]) ElementType() reflect.Type { return reflect.TypeFor[V]() }

func (m *Map[K, V]) put(k K, v V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *Map[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if err := m.read(m); err != nil {
		return zero, false, err
	}
	v, ok := m.values[k]
	return v, ok, nil
}

func (m *Map[K, V]) Keys() ([]K, error) {
	if err := m.read(m); err != nil {
		return nil, err
	}
	return slices.Clone(m.keys), nil
}

func (m *Map[K, V]) Len() (int, error) {
	if err := m.read(m); err != nil {
		return 0, err
	}
	return len(m.keys), nil
}

func (m *Map[K, V]) Put(k K, v V) error {
	if err := m.read(m); err != nil {
		return err
	}
	m.put(k, v)
	return nil
}

func (m *Map[K, V]) Entries() []Entry {
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Key: k, Value: m.values[k]})
	}
	return out
}

func (m *Map[K, V]) Load(entries []Entry) error {
	m.keys, m.values = nil, nil
	for _, e := range entries {
		k, err := convert[K](e.Key)
		if err != nil {
			return err
		}
		v, err := convert[V](e.Value)
		if err != nil {
			return err
		}
		m.put(k, v)
	}
	m.initialized = true
	return nil
}

func (m *Map[K, V]) Detached() PersistentCollection {
	out := &Map[K, V]{}
	out.initialized = m.initialized
	for _, k := range m.keys {
		out.put(k, m.values[k])
	}
	return out
}

func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	if !m.initialized {
		return []byte("null"), nil
	}
	if m.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.values)
}
