package application

import (
	"errors"
	"testing"
	"time"

	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestModelStoreExpiresIdleModels(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := NewModelStore(time.Minute, metrics)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	idle := store.Put("Order", NewDetachableModel(&Order{ID: 1}, nil))
	busy := store.Put("Order", NewDetachableModel(&Order{ID: 2}, nil))
	if idle == busy {
		t.Fatalf("handles must be unique")
	}
	if got := testutil.ToFloat64(metrics.modelsStored); got != 2 {
		t.Fatalf("expected gauge 2, got %v", got)
	}

	now = now.Add(45 * time.Second)
	_, release, err := store.Acquire(busy)
	if err != nil {
		t.Fatalf("acquire busy: %v", err)
	}
	release()

	now = now.Add(30 * time.Second)
	if _, _, err := store.Acquire(idle); !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("idle model should have expired, got %v", err)
	}
	if len(store.List()) != 1 {
		t.Fatalf("list should hide expired models")
	}
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected one swept model, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one model left, got %d", store.Len())
	}
	if got := testutil.ToFloat64(metrics.modelsStored); got != 1 {
		t.Fatalf("expected gauge 1, got %v", got)
	}

	if !store.Delete(busy) || store.Delete(busy) {
		t.Fatalf("delete should succeed exactly once")
	}
}

func TestModelStoreWithoutTTLKeepsModels(t *testing.T) {
	store := NewModelStore(0, nil)
	h := store.Put("Order", NewDetachableModel(&Order{ID: 1}, nil))
	store.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	_, release, err := store.Acquire(h)
	if err != nil {
		t.Fatalf("model without ttl should not expire: %v", err)
	}
	release()
	if store.Sweep() != 0 {
		t.Fatalf("nothing should be swept")
	}
}

func TestModelStoreListDoesNotWaitForBusyModels(t *testing.T) {
	store := NewModelStore(time.Minute, nil)
	meta := shopMetamodel()
	s := newFakeSession(meta)
	m := NewDetachableModel(lazyOrder(s), domain.StaticFinder(s))
	if _, err := m.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	h := store.Put("Order", m)

	held, release, err := store.Acquire(h)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	listed := make(chan []StoredModel, 1)
	go func() { listed <- store.List() }()
	select {
	case out := <-listed:
		if len(out) != 1 || out[0].Pending != 2 {
			t.Fatalf("unexpected listing while busy: %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("list blocked on a model in use")
	}

	if _, err := held.Attach(domain.StaticFinder(newFakeSession(meta))); err != nil {
		t.Fatalf("attach: %v", err)
	}
	release()
	if out := store.List(); out[0].Pending != 0 {
		t.Fatalf("pending should be refreshed on release, got %d", out[0].Pending)
	}

	second := make(chan struct{})
	_, release, err = store.Acquire(h)
	if err != nil {
		t.Fatalf("acquire again: %v", err)
	}
	go func() {
		_, r, err := store.Acquire(h)
		if err == nil {
			r()
		}
		close(second)
	}()
	select {
	case <-second:
		t.Fatalf("a second lease must wait for the first")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	<-second
}
