package application

import (
	"errors"
	"reflect"
	"testing"

	"github.com/devgateway/dozer-model/internal/domain"
)

func TestWalkCapturesLazyPropertiesWithoutLoading(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	order := lazyOrder(s)
	items := order.Items
	rec := &recorder{finder: domain.StaticFinder(s)}

	n, err := NewObjectVisitor(rec.finder, rec).Walk(order)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the order to be visited, got %d", n)
	}
	if s.loads != 0 {
		t.Fatalf("walk must not load anything, loads=%d", s.loads)
	}
	if order.Items != items || items.WasInitialized() {
		t.Fatalf("uninitialized collection must be left untouched")
	}
	if len(rec.defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(rec.defs))
	}

	simple, ok := rec.defs[0].(*domain.SimplePropertyDefinition)
	if !ok {
		t.Fatalf("expected simple definition first, got %T", rec.defs[0])
	}
	if simple.Key() != (domain.EntityKey{Entity: "Customer", ID: uint(7)}) {
		t.Fatalf("unexpected customer key %v", simple.Key())
	}
	if simple.PropertyType() != reflect.TypeFor[*Customer]() {
		t.Fatalf("unexpected declared type %v", simple.PropertyType())
	}

	coll, ok := rec.defs[1].(*domain.CollectionPropertyDefinition)
	if !ok {
		t.Fatalf("expected collection definition, got %T", rec.defs[1])
	}
	if coll.Role() != "Order.Items" || coll.Kind() != domain.CollectionBag {
		t.Fatalf("unexpected collection definition role=%q kind=%v", coll.Role(), coll.Kind())
	}
}

func TestWalkReplacesInitializedCollectionsAndFollowsLoadedGraph(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	order := lazyOrder(s)
	order.Customer = &Customer{ID: 7, Name: "Ada"}
	s.items[42] = []*Item{{ID: 1, OrderID: 42, Order: order}, {ID: 2, OrderID: 42, Order: order}}
	if _, err := order.Items.Len(); err != nil {
		t.Fatalf("load items: %v", err)
	}
	loaded := order.Items
	loads := s.loads
	rec := &recorder{finder: domain.StaticFinder(s)}

	n, err := NewObjectVisitor(rec.finder, rec).Walk(order)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	// order, customer, detached bag, two items
	if n != 5 {
		t.Fatalf("expected 5 visited nodes, got %d", n)
	}
	if len(rec.defs) != 0 {
		t.Fatalf("nothing lazy is left, got %d definitions", len(rec.defs))
	}
	if order.Items == loaded {
		t.Fatalf("initialized collection should be replaced by a detached copy")
	}
	if order.Items.Role() != "" || !order.Items.WasInitialized() {
		t.Fatalf("detached copy should be initialized and carry no session state")
	}
	all, err := order.Items.All()
	if err != nil || len(all) != 2 {
		t.Fatalf("detached copy lost elements: %v", err)
	}
	if s.loads != loads {
		t.Fatalf("walk must not load anything")
	}
}

func TestWalkCapturesUninitializedProxy(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	order := lazyOrder(s)
	proxy := &Customer{ID: 9}
	s.pc.AddProxy(domain.EntityKey{Entity: "Customer", ID: uint(9)}, proxy)
	order.Customer = proxy
	rec := &recorder{finder: domain.StaticFinder(s)}

	if _, err := NewObjectVisitor(rec.finder, rec).Walk(order); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if order.Customer != proxy {
		t.Fatalf("proxy must be left in place")
	}
	simple := rec.defs[0].(*domain.SimplePropertyDefinition)
	if simple.EntityRef().ID != uint(9) {
		t.Fatalf("expected proxy id 9, got %v", simple.EntityRef().ID)
	}
}

type node struct {
	Name  string
	Next  *node
	Peers []*node
	Index map[string]*node
}

func TestWalkTerminatesOnCycles(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b"}
	a.Next = b
	b.Next = a
	a.Peers = []*node{a, b}
	b.Index = map[string]*node{"a": a, "self": b}

	s := newFakeSession(shopMetamodel())
	n, err := NewObjectVisitor(domain.StaticFinder(s), nil).Walk(a)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	// a, b, b.Index, a.Peers
	if n != 4 {
		t.Fatalf("expected each node once (4), got %d", n)
	}
}

func TestWalkSelfReference(t *testing.T) {
	a := &node{Name: "loop"}
	a.Next = a
	n, err := NewObjectVisitor(domain.StaticFinder(newFakeSession(shopMetamodel())), nil).Walk(a)
	if err != nil || n != 1 {
		t.Fatalf("expected one visit, got %d (%v)", n, err)
	}
}

func TestWalkStopsBranchWithoutSession(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	order := lazyOrder(s)
	order.Customer = &Customer{ID: 7}
	orderType := reflect.TypeFor[Order]()
	finder := domain.SessionFinderFunc(func(t reflect.Type) (domain.Session, bool) {
		return s, t == orderType
	})
	rec := &recorder{finder: finder}

	n, err := NewObjectVisitor(finder, rec).Walk(order)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if n != 1 {
		t.Fatalf("customer branch has no session and must not be visited, got %d", n)
	}

	n, err = NewObjectVisitor(domain.StaticFinder(nil), rec).Walk(order)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing visited without a session, got %d (%v)", n, err)
	}
}

func TestWalkMapKeysIsOptIn(t *testing.T) {
	k := &node{Name: "key"}
	v := &node{Name: "value"}
	root := map[*node]*node{k: v}
	finder := domain.StaticFinder(newFakeSession(shopMetamodel()))

	n, err := NewObjectVisitor(finder, nil).Walk(root)
	if err != nil || n != 2 {
		t.Fatalf("expected map and value only, got %d (%v)", n, err)
	}
	n, err = NewObjectVisitor(finder, nil, WithMapKeys(true)).Walk(root)
	if err != nil || n != 3 {
		t.Fatalf("expected map, key and value, got %d (%v)", n, err)
	}
}

func TestWalkFailsOnMappedSuperclassRoot(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	ledger := &Ledger{ID: 1, Entries: &domain.List[string]{}}
	rec := &recorder{finder: domain.StaticFinder(s)}

	_, err := NewObjectVisitor(rec.finder, rec).Walk(ledger)
	if !errors.Is(err, domain.ErrMappedSuperclassWithoutEntity) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWalkRejectsEntityValue(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	_, err := NewObjectVisitor(domain.StaticFinder(s), nil).Walk(Customer{ID: 1})
	if !errors.Is(err, domain.ErrUnaddressable) {
		t.Fatalf("expected unaddressable error, got %v", err)
	}
}

// receipt holds an order by value, the way a plain view struct might.
type receipt struct {
	Note  string
	Order Order
}

func TestWalkCapturesEntityHeldByValue(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	r := &receipt{Note: "paid", Order: *lazyOrder(s)}
	rec := &recorder{finder: domain.StaticFinder(s)}

	n, err := NewObjectVisitor(rec.finder, rec).Walk(r)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected receipt and order visited, got %d", n)
	}
	if len(rec.defs) != 2 {
		t.Fatalf("expected 2 definitions from the nested order, got %d", len(rec.defs))
	}
	if rec.defs[0].Owner() != &r.Order {
		t.Fatalf("definition owner should be the nested order in place")
	}

	fresh := newFakeSession(shopMetamodel())
	a := NewAttacher(domain.StaticFinder(fresh))
	customer, err := a.Attach(rec.defs[0])
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if customer.(*Customer).ID != 7 {
		t.Fatalf("unexpected customer %#v", customer)
	}
}

func TestWalkRejectsEntityValuesInMaps(t *testing.T) {
	s := newFakeSession(shopMetamodel())
	byNumber := map[string]Order{"SO-42": *lazyOrder(s)}

	_, err := NewObjectVisitor(domain.StaticFinder(s), nil).Walk(&byNumber)
	if !errors.Is(err, domain.ErrUnaddressable) {
		t.Fatalf("expected unaddressable error, got %v", err)
	}

	byPointer := map[string]*Order{"SO-42": lazyOrder(s)}
	rec := &recorder{finder: domain.StaticFinder(s)}
	if _, err := NewObjectVisitor(rec.finder, rec).Walk(byPointer); err != nil {
		t.Fatalf("walk pointers: %v", err)
	}
	if len(rec.defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(rec.defs))
	}
}
