package application

import (
	"context"
	"fmt"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
)

type Customer struct {
	ID   uint
	Name string
}

type Order struct {
	ID         uint
	Number     string
	CustomerID uint
	Customer   *Customer
	Items      *domain.Bag[*Item]
}

type Item struct {
	ID      uint
	OrderID uint
	Order   *Order
	SKU     string
}

// Invoice keeps its customer key in a wider integer than Customer.ID.
type Invoice struct {
	ID         uint
	CustomerID int64
	Customer   *Customer
}

type Ledger struct {
	domain.MappedSuperclass
	ID      uint
	Entries *domain.List[string]
}

type fakePersister struct {
	name    string
	typ     reflect.Type
	assocs  []domain.Association
	proxies int
}

func (p *fakePersister) EntityName() string                 { return p.name }
func (p *fakePersister) MappedType() reflect.Type           { return p.typ }
func (p *fakePersister) Associations() []domain.Association { return p.assocs }

func (p *fakePersister) Identifier(entity any) (any, error) {
	v := reflect.Indirect(reflect.ValueOf(entity))
	id := v.FieldByName("ID")
	if id.IsZero() {
		return nil, domain.ErrTransientEntity
	}
	return id.Interface(), nil
}

func (p *fakePersister) NormalizeID(id any) (any, error) {
	pk, _ := p.typ.FieldByName("ID")
	v := reflect.ValueOf(id)
	if !v.IsValid() || !v.CanConvert(pk.Type) {
		return nil, domain.ErrInvalidDefinition.WithData("id", fmt.Sprint(id))
	}
	return v.Convert(pk.Type).Interface(), nil
}

func (p *fakePersister) CreateProxy(id any, _ domain.Session) (any, error) {
	p.proxies++
	v := reflect.New(p.typ)
	v.Elem().FieldByName("ID").Set(reflect.ValueOf(id))
	return v.Interface(), nil
}

type fakeCollectionPersister struct {
	role    string
	kind    domain.CollectionKind
	newColl func() domain.PersistentCollection
	created int
}

func (p *fakeCollectionPersister) Role() string               { return p.role }
func (p *fakeCollectionPersister) Kind() domain.CollectionKind { return p.kind }

func (p *fakeCollectionPersister) CreateCollection(s domain.Session) (domain.PersistentCollection, error) {
	p.created++
	c := p.newColl()
	if l, ok := s.(domain.CollectionLoader); ok {
		c.SetCurrentSession(l)
	}
	return c, nil
}

type fakeMetamodel struct {
	byType map[reflect.Type]*fakePersister
	roles  map[string]*fakeCollectionPersister
}

func (m *fakeMetamodel) EntityPersister(t reflect.Type) (domain.EntityPersister, error) {
	if p, ok := m.byType[domain.Indirect(t)]; ok {
		return p, nil
	}
	return nil, domain.ErrNoMetadata
}

func (m *fakeMetamodel) EntityPersisterByName(name string) (domain.EntityPersister, error) {
	for _, p := range m.byType {
		if p.name == name {
			return p, nil
		}
	}
	return nil, domain.ErrUnknownEntity
}

func (m *fakeMetamodel) CollectionPersister(role string) (domain.CollectionPersister, error) {
	if p, ok := m.roles[role]; ok {
		return p, nil
	}
	return nil, domain.ErrUnknownRole
}

// shopMetamodel maps Customer, Order, Item and Invoice with Order.Customer as a lazy
// to-one and Order.Items as a lazy bag.
func shopMetamodel() *fakeMetamodel {
	customer := &fakePersister{name: "Customer", typ: reflect.TypeFor[Customer]()}
	order := &fakePersister{name: "Order", typ: reflect.TypeFor[Order](), assocs: []domain.Association{
		{Name: "Customer", Kind: domain.AssociationToOne, Target: "Customer", ForeignKey: "CustomerID"},
		{Name: "Items", Kind: domain.AssociationCollection, Role: "Order.Items", Collection: domain.CollectionBag},
	}}
	item := &fakePersister{name: "Item", typ: reflect.TypeFor[Item](), assocs: []domain.Association{
		{Name: "Order", Kind: domain.AssociationToOne, Target: "Order", ForeignKey: "OrderID"},
	}}
	invoice := &fakePersister{name: "Invoice", typ: reflect.TypeFor[Invoice](), assocs: []domain.Association{
		{Name: "Customer", Kind: domain.AssociationToOne, Target: "Customer", ForeignKey: "CustomerID"},
	}}
	ledger := &fakePersister{name: "Ledger", typ: reflect.TypeFor[Ledger](), assocs: []domain.Association{
		{Name: "Entries", Kind: domain.AssociationCollection, Role: "Ledger.Entries", Collection: domain.CollectionList},
	}}
	return &fakeMetamodel{
		byType: map[reflect.Type]*fakePersister{
			customer.typ: customer,
			order.typ:    order,
			item.typ:     item,
			invoice.typ:  invoice,
			ledger.typ:   ledger,
		},
		roles: map[string]*fakeCollectionPersister{
			"Order.Items": {role: "Order.Items", kind: domain.CollectionBag, newColl: func() domain.PersistentCollection { return &domain.Bag[*Item]{} }},
		},
	}
}

type fakeContext struct {
	entities    map[domain.EntityKey]any
	proxies     map[domain.EntityKey]any
	uninit      map[any]domain.EntityKey
	collections map[domain.CollectionKey]domain.PersistentCollection
	unowned     map[domain.CollectionKey]domain.PersistentCollection
	queue       *fakeQueue
	narrowed    int
}

type fakeQueue struct {
	keys []domain.EntityKey
}

func (q *fakeQueue) AddBatchLoadableEntityKey(key domain.EntityKey) {
	q.keys = append(q.keys, key)
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		entities:    make(map[domain.EntityKey]any),
		proxies:     make(map[domain.EntityKey]any),
		uninit:      make(map[any]domain.EntityKey),
		collections: make(map[domain.CollectionKey]domain.PersistentCollection),
		unowned:     make(map[domain.CollectionKey]domain.PersistentCollection),
		queue:       &fakeQueue{},
	}
}

func (c *fakeContext) Entity(key domain.EntityKey) (any, bool) {
	e, ok := c.entities[key]
	return e, ok
}

func (c *fakeContext) Proxy(key domain.EntityKey) (any, bool) {
	p, ok := c.proxies[key]
	return p, ok
}

func (c *fakeContext) AddProxy(key domain.EntityKey, proxy any) {
	c.proxies[key] = proxy
	c.uninit[proxy] = key
}

func (c *fakeContext) NarrowProxy(proxy any, _ domain.EntityPersister, _ domain.EntityKey, _ any) (any, error) {
	c.narrowed++
	return proxy, nil
}

func (c *fakeContext) IsUninitializedProxy(obj any) bool {
	if isNil(obj) || !reflect.TypeOf(obj).Comparable() {
		return false
	}
	_, ok := c.uninit[obj]
	return ok
}

func (c *fakeContext) Collection(key domain.CollectionKey) (domain.PersistentCollection, bool) {
	pc, ok := c.collections[key]
	return pc, ok
}

func (c *fakeContext) AddUninitializedDetachedCollection(p domain.CollectionPersister, pc domain.PersistentCollection) {
	c.collections[domain.CollectionKey{Role: p.Role(), Owner: pc.Key()}] = pc
}

func (c *fakeContext) AddUnownedCollection(key domain.CollectionKey, pc domain.PersistentCollection) {
	c.unowned[key] = pc
}

func (c *fakeContext) BatchFetchQueue() domain.BatchFetchQueue { return c.queue }

// fakeSession loads from an in-memory table and counts every load so tests
// can assert that detaching never initializes anything.
type fakeSession struct {
	meta  *fakeMetamodel
	pc    *fakeContext
	table map[domain.EntityKey]any
	items map[uint][]*Item
	loads int
}

func newFakeSession(meta *fakeMetamodel) *fakeSession {
	return &fakeSession{meta: meta, pc: newFakeContext(), table: make(map[domain.EntityKey]any), items: make(map[uint][]*Item)}
}

func (s *fakeSession) Metamodel() domain.Metamodel                   { return s.meta }
func (s *fakeSession) PersistenceContext() domain.PersistenceContext { return s.pc }

func (s *fakeSession) InitializeCollection(c domain.PersistentCollection) error {
	s.loads++
	var entries []domain.Entry
	for _, it := range s.items[c.Key().(uint)] {
		entries = append(entries, domain.Entry{Value: it})
	}
	return c.Load(entries)
}

func (s *fakeSession) Load(_ context.Context, entity string, id any) (any, error) {
	key := domain.EntityKey{Entity: entity, ID: id}
	if e, ok := s.pc.entities[key]; ok {
		return e, nil
	}
	e, ok := s.table[key]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	s.loads++
	s.pc.entities[key] = e
	return e, nil
}

func (s *fakeSession) Initialize(obj any) error {
	if c, ok := obj.(domain.PersistentCollection); ok {
		if c.WasInitialized() {
			return nil
		}
		return s.InitializeCollection(c)
	}
	key, ok := s.pc.uninit[obj]
	if !ok {
		return nil
	}
	s.loads++
	src, ok := s.table[key]
	if !ok {
		return domain.ErrEntityNotFound
	}
	reflect.ValueOf(obj).Elem().Set(reflect.ValueOf(src).Elem())
	delete(s.pc.uninit, obj)
	s.pc.entities[key] = obj
	return nil
}

func (s *fakeSession) IsInitialized(obj any) bool {
	if c, ok := obj.(domain.PersistentCollection); ok {
		return c.WasInitialized()
	}
	return !s.pc.IsUninitializedProxy(obj)
}

// recorder is a ModelCallback that keeps what the walk reports.
type recorder struct {
	finder domain.SessionFinder
	defs   []domain.PropertyDefinition
}

func (r *recorder) SessionFinder() domain.SessionFinder { return r.finder }

func (r *recorder) AddDetachedProperty(def domain.PropertyDefinition) {
	r.defs = append(r.defs, def)
}

// lazyOrder returns an order whose customer and items were never loaded.
func lazyOrder(s *fakeSession) *Order {
	items := &domain.Bag[*Item]{}
	items.SetSnapshot(uint(42), "Order.Items", nil)
	items.SetCurrentSession(s)
	return &Order{ID: 42, Number: "SO-42", CustomerID: 7, Items: items}
}
