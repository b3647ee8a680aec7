package application

import (
	"fmt"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
	"go.uber.org/zap"
)

// Attacher turns property definitions captured by an earlier walk back into
// objects managed by the current session. It always looks up the
// persistence context first, so attaching the same definition twice against
// one context yields the same instance.
type Attacher struct {
	finder domain.SessionFinder
	opts   options
}

// NewAttacher returns an Attacher using finder. With a nil finder, each
// definition's own model callback supplies the finder.
func NewAttacher(finder domain.SessionFinder, opts ...Option) *Attacher {
	return &Attacher{finder: finder, opts: newOptions(opts)}
}

func (a *Attacher) Attach(def domain.PropertyDefinition) (any, error) {
	switch d := def.(type) {
	case *domain.SimplePropertyDefinition:
		return a.attachEntity(d)
	case *domain.CollectionPropertyDefinition:
		return a.attachCollection(d)
	}
	return nil, domain.ErrInvalidDefinition.WithData("type", fmt.Sprintf("%T", def))
}

func (a *Attacher) finderFor(def domain.PropertyDefinition) domain.SessionFinder {
	if a.finder != nil {
		return a.finder
	}
	if cb := def.ModelCallback(); cb != nil {
		return cb.SessionFinder()
	}
	return nil
}

func (a *Attacher) session(def domain.PropertyDefinition, t reflect.Type) (domain.Session, error) {
	if finder := a.finderFor(def); finder != nil {
		if s, ok := finder.Session(t); ok && s != nil {
			return s, nil
		}
	}
	return nil, domain.ErrNoSession.WithData("type", fmt.Sprint(t))
}

func (a *Attacher) attachEntity(d *domain.SimplePropertyDefinition) (any, error) {
	s, err := a.session(d, d.EntityType())
	if err != nil {
		return nil, err
	}
	persister, err := s.Metamodel().EntityPersisterByName(d.EntityRef().Entity)
	if err != nil {
		return nil, err
	}
	id, err := persister.NormalizeID(d.EntityRef().ID)
	if err != nil {
		return nil, err
	}
	pc := s.PersistenceContext()
	key := domain.EntityKey{Entity: persister.EntityName(), ID: id}

	if instance, ok := pc.Entity(key); ok {
		a.observe("simple", "entity", key.String())
		return instance, nil
	}
	if existing, ok := pc.Proxy(key); ok {
		proxy, err := pc.NarrowProxy(existing, persister, key, nil)
		if err != nil {
			return nil, err
		}
		a.observe("simple", "proxy", key.String())
		return proxy, nil
	}

	proxy, err := persister.CreateProxy(key.ID, s)
	if err != nil {
		return nil, err
	}
	pc.BatchFetchQueue().AddBatchLoadableEntityKey(key)
	pc.AddProxy(key, proxy)
	a.observe("simple", "created", key.String())
	return proxy, nil
}

func (a *Attacher) attachCollection(d *domain.CollectionPropertyDefinition) (any, error) {
	owner := domain.TypeOf(d.Owner())
	if owner == nil {
		return nil, domain.ErrOwnerNotEntity.WithData("role", d.Role())
	}
	s, err := a.session(d, owner)
	if err != nil {
		return nil, err
	}
	persister, err := s.Metamodel().CollectionPersister(d.Role())
	if err != nil {
		return nil, err
	}
	if persister.Kind() != d.Kind() {
		return nil, domain.ErrInvalidDefinition.
			WithData("role", d.Role()).
			WithData("kind", d.Kind().String()).
			WithData("mapped", persister.Kind().String())
	}
	ownerPersister, err := s.Metamodel().EntityPersister(owner)
	if err != nil {
		return nil, domain.ErrOwnerNotEntity.WithData("owner", owner.String()).WithData("role", d.Role()).WithCause(err)
	}
	id, err := ownerPersister.Identifier(d.Owner())
	if err != nil {
		return nil, err
	}

	pc := s.PersistenceContext()
	key := d.Key(id)
	if c, ok := pc.Collection(key); ok {
		a.observe("collection", "existing", key.String())
		return c, nil
	}

	c, err := persister.CreateCollection(s)
	if err != nil {
		return nil, err
	}
	c.SetSnapshot(id, d.Role(), nil)
	pc.AddUninitializedDetachedCollection(persister, c)
	pc.AddUnownedCollection(key, c)
	a.observe("collection", "created", key.String())
	return c, nil
}

func (a *Attacher) observe(kind, outcome, key string) {
	a.opts.metrics.observeAttach(kind, outcome)
	a.opts.log.Debug("attached", zap.String("kind", kind), zap.String("outcome", outcome), zap.String("key", key))
}
