package orm

import (
	"fmt"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
)

// PersistenceContext is the identity map of one session: at most one
// instance or proxy per entity key and one collection per collection key.
type PersistenceContext struct {
	entities    map[domain.EntityKey]any
	proxies     map[domain.EntityKey]any
	uninit      map[any]domain.EntityKey
	collections map[domain.CollectionKey]domain.PersistentCollection
	unowned     map[domain.CollectionKey]domain.PersistentCollection
	batch       *BatchFetchQueue
}

// ContextStats counts what a persistence context holds.
type ContextStats struct {
	Entities      int `json:"entities"`
	Proxies       int `json:"proxies"`
	Uninitialized int `json:"uninitialized"`
	Collections   int `json:"collections"`
	Unowned       int `json:"unowned"`
	Queued        int `json:"queued"`
}

func NewPersistenceContext() *PersistenceContext {
	return &PersistenceContext{
		entities:    make(map[domain.EntityKey]any),
		proxies:     make(map[domain.EntityKey]any),
		uninit:      make(map[any]domain.EntityKey),
		collections: make(map[domain.CollectionKey]domain.PersistentCollection),
		unowned:     make(map[domain.CollectionKey]domain.PersistentCollection),
		batch:       newBatchFetchQueue(),
	}
}

func (c *PersistenceContext) Entity(key domain.EntityKey) (any, bool) {
	e, ok := c.entities[key]
	return e, ok
}

func (c *PersistenceContext) Proxy(key domain.EntityKey) (any, bool) {
	p, ok := c.proxies[key]
	return p, ok
}

func (c *PersistenceContext) AddProxy(key domain.EntityKey, proxy any) {
	c.proxies[key] = proxy
	c.uninit[proxy] = key
}

// NarrowProxy checks that proxy is an instance of the persister's entity.
// When object is given, its state is copied into the proxy, which then
// becomes the managed instance for key.
func (c *PersistenceContext) NarrowProxy(proxy any, p domain.EntityPersister, key domain.EntityKey, object any) (any, error) {
	if domain.TypeOf(proxy) != p.MappedType() {
		return nil, domain.ErrProxyMismatch.
			WithData("key", key.String()).
			WithData("proxy", fmt.Sprintf("%T", proxy))
	}
	if object == nil {
		return proxy, nil
	}
	if reflect.TypeOf(object) != reflect.TypeOf(proxy) {
		return nil, domain.ErrProxyMismatch.
			WithData("key", key.String()).
			WithData("object", fmt.Sprintf("%T", object))
	}
	reflect.ValueOf(proxy).Elem().Set(reflect.ValueOf(object).Elem())
	c.markInitialized(key, proxy)
	return proxy, nil
}

func (c *PersistenceContext) IsUninitializedProxy(obj any) bool {
	if obj == nil || !reflect.TypeOf(obj).Comparable() {
		return false
	}
	_, ok := c.uninit[obj]
	return ok
}

func (c *PersistenceContext) Collection(key domain.CollectionKey) (domain.PersistentCollection, bool) {
	pc, ok := c.collections[key]
	return pc, ok
}

// AddUninitializedDetachedCollection registers a collection whose snapshot
// (role and owner key) was set by the caller.
func (c *PersistenceContext) AddUninitializedDetachedCollection(p domain.CollectionPersister, pc domain.PersistentCollection) {
	c.collections[domain.CollectionKey{Role: p.Role(), Owner: pc.Key()}] = pc
}

// AddUnownedCollection records a collection whose owner instance is not
// managed by this context.
func (c *PersistenceContext) AddUnownedCollection(key domain.CollectionKey, pc domain.PersistentCollection) {
	c.unowned[key] = pc
}

func (c *PersistenceContext) UnownedCollection(key domain.CollectionKey) (domain.PersistentCollection, bool) {
	pc, ok := c.unowned[key]
	return pc, ok
}

func (c *PersistenceContext) BatchFetchQueue() domain.BatchFetchQueue { return c.batch }

func (c *PersistenceContext) Stats() ContextStats {
	return ContextStats{
		Entities:      len(c.entities),
		Proxies:       len(c.proxies),
		Uninitialized: len(c.uninit),
		Collections:   len(c.collections),
		Unowned:       len(c.unowned),
		Queued:        c.batch.Len(),
	}
}

func (c *PersistenceContext) addEntity(key domain.EntityKey, entity any) {
	c.entities[key] = entity
	c.batch.remove(key)
}

func (c *PersistenceContext) markInitialized(key domain.EntityKey, proxy any) {
	delete(c.uninit, proxy)
	c.addEntity(key, proxy)
}

func (c *PersistenceContext) addCollection(key domain.CollectionKey, pc domain.PersistentCollection) {
	c.collections[key] = pc
}

// BatchFetchQueue remembers proxies that may be loaded together with the
// next proxy of the same entity.
type BatchFetchQueue struct {
	order  []domain.EntityKey
	queued map[domain.EntityKey]struct{}
}

func newBatchFetchQueue() *BatchFetchQueue {
	return &BatchFetchQueue{queued: make(map[domain.EntityKey]struct{})}
}

func (q *BatchFetchQueue) AddBatchLoadableEntityKey(key domain.EntityKey) {
	if _, ok := q.queued[key]; ok {
		return
	}
	q.queued[key] = struct{}{}
	q.order = append(q.order, key)
}

func (q *BatchFetchQueue) Len() int { return len(q.queued) }

func (q *BatchFetchQueue) remove(key domain.EntityKey) {
	if _, ok := q.queued[key]; !ok {
		return
	}
	delete(q.queued, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// identifiers returns key's identifier followed by up to size-1 other
// queued identifiers of the same entity, in queue order.
func (q *BatchFetchQueue) identifiers(key domain.EntityKey, size int) []any {
	ids := []any{key.ID}
	for _, k := range q.order {
		if len(ids) >= size {
			break
		}
		if k.Entity == key.Entity && k != key {
			ids = append(ids, k.ID)
		}
	}
	return ids
}
