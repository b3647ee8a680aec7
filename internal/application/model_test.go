package application

import (
	"testing"

	"github.com/devgateway/dozer-model/internal/domain"
)

func TestDetachableModelRoundTrip(t *testing.T) {
	meta := shopMetamodel()
	first := newFakeSession(meta)
	order := lazyOrder(first)

	m := NewDetachableModel(order, domain.StaticFinder(first))
	if _, err := m.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	recs := m.Definitions()
	if len(recs) != 2 || recs[0].Kind != "simple" || recs[1].Role != "Order.Items" {
		t.Fatalf("unexpected definitions %+v", recs)
	}

	second := newFakeSession(meta)
	attached, err := m.Attach(domain.StaticFinder(second))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(attached) != 2 {
		t.Fatalf("expected 2 attached values, got %d", len(attached))
	}
	if m.Detached() {
		t.Fatalf("definitions should be consumed by attach")
	}
	if order.Customer == nil || order.Customer.ID != 7 {
		t.Fatalf("customer should be a proxy with id 7, got %#v", order.Customer)
	}
	if !second.pc.IsUninitializedProxy(order.Customer) {
		t.Fatalf("customer should be an uninitialized proxy of the new session")
	}
	if order.Items != attached[1] {
		t.Fatalf("items should be the collection registered in the new session")
	}
	if first.loads != 0 || second.loads != 0 {
		t.Fatalf("round trip must not load anything")
	}
	if m.SessionFinder() == nil {
		t.Fatalf("model should keep the finder it was attached with")
	}
}

func TestDetachableModelKeepsUninitializedRootAsReference(t *testing.T) {
	meta := shopMetamodel()
	first := newFakeSession(meta)
	proxy := &Customer{ID: 11}
	first.pc.AddProxy(domain.EntityKey{Entity: "Customer", ID: uint(11)}, proxy)

	m := NewDetachableModel(proxy, domain.StaticFinder(first))
	n, err := m.Detach()
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if n != 0 || len(m.Definitions()) != 1 {
		t.Fatalf("expected a single root reference and no walk, got n=%d defs=%d", n, len(m.Definitions()))
	}

	second := newFakeSession(meta)
	if _, err := m.Attach(domain.StaticFinder(second)); err != nil {
		t.Fatalf("attach: %v", err)
	}
	root, ok := m.Object().(*Customer)
	if !ok || root == proxy || root.ID != 11 {
		t.Fatalf("root should be replaced by a proxy of the new session, got %#v", m.Object())
	}
}

func TestDetachableModelNilRoot(t *testing.T) {
	m := NewDetachableModel(nil, nil)
	if n, err := m.Detach(); n != 0 || err != nil {
		t.Fatalf("nil root should detach to nothing, got %d (%v)", n, err)
	}
	if got, err := m.Attach(nil); err != nil || len(got) != 0 {
		t.Fatalf("nil root should attach to nothing, got %v (%v)", got, err)
	}
}
