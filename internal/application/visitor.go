package application

import (
	"errors"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
	"go.uber.org/zap"
)

// ObjectVisitor walks an object graph depth first and removes ORM state from
// it: lazy associations that were never loaded are reported to the callback
// as property definitions, loaded persistent collections are replaced by
// plain copies. Nothing is ever initialized by the walk.
type ObjectVisitor struct {
	finder   domain.SessionFinder
	callback domain.ModelCallback
	opts     options
}

func NewObjectVisitor(finder domain.SessionFinder, callback domain.ModelCallback, opts ...Option) *ObjectVisitor {
	return newObjectVisitor(finder, callback, newOptions(opts))
}

func newObjectVisitor(finder domain.SessionFinder, callback domain.ModelCallback, o options) *ObjectVisitor {
	if callback == nil {
		callback = discardCallback{finder: finder}
	}
	return &ObjectVisitor{finder: finder, callback: callback, opts: o}
}

// Walk visits root and everything reachable from it once. It returns the
// number of visited nodes.
func (v *ObjectVisitor) Walk(root any) (int, error) {
	w := &walk{ObjectVisitor: v, seen: NewSeenSet()}
	err := w.node(root)
	v.opts.metrics.observeWalk(w.count)
	return w.count, err
}

type walk struct {
	*ObjectVisitor
	seen  *SeenSet
	count int
}

func (w *walk) node(current any) error {
	if isNil(current) {
		return nil
	}
	t := domain.TypeOf(current)
	s, ok := w.finder.Session(t)
	if !ok || s == nil {
		w.opts.log.Debug("no session, stop detaching", zap.Stringer("type", t))
		return nil
	}

	strategy, err := w.strategyFor(s, t, current)
	if err != nil {
		return err
	}

	w.seen.Add(current)
	w.count++

	children, err := strategy.visit(current)
	if err != nil {
		return err
	}
	for _, child := range children {
		if w.seen.Contains(child) {
			continue
		}
		if err := w.node(child); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) strategyFor(s domain.Session, t reflect.Type, current any) (visitorStrategy, error) {
	p, err := s.Metamodel().EntityPersister(t)
	if err == nil {
		return entityStrategy{session: s, persister: p, callback: w.callback}, nil
	}
	if !errors.Is(err, domain.ErrNoMetadata) {
		return nil, err
	}

	if pc, ok := current.(domain.PersistentCollection); ok {
		if pc.Kind() == domain.CollectionMap {
			return mapStrategy{keys: w.opts.mapKeys}, nil
		}
		return collectionStrategy{}, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return collectionStrategy{}, nil
	case reflect.Map:
		return mapStrategy{keys: w.opts.mapKeys}, nil
	}
	return objectStrategy{}, nil
}

type discardCallback struct {
	finder domain.SessionFinder
}

func (c discardCallback) SessionFinder() domain.SessionFinder         { return c.finder }
func (discardCallback) AddDetachedProperty(domain.PropertyDefinition) {}
