package orm

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Session is one unit of work over a gorm connection. It owns a
// PersistenceContext, so every entity it hands out is canonical for its key.
// A Session is not safe for concurrent use.
type Session struct {
	ctx     context.Context
	db      *gorm.DB
	meta    *Metamodel
	pc      *PersistenceContext
	log     *zap.Logger
	batch   int
	closed  bool
	queries int
}

func (s *Session) Metamodel() domain.Metamodel                   { return s.meta }
func (s *Session) PersistenceContext() domain.PersistenceContext { return s.pc }
func (s *Session) Context() context.Context                      { return s.ctx }
func (s *Session) Closed() bool                                  { return s.closed }

// Queries is the number of SELECT statements issued so far.
func (s *Session) Queries() int { return s.queries }

func (s *Session) Stats() ContextStats { return s.pc.Stats() }

// Close ends the unit of work. Lazy state reached afterwards fails with
// domain.ErrLazyInitialization.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	st := s.pc.Stats()
	s.log.Debug("session closed",
		zap.Int("queries", s.queries),
		zap.Int("entities", st.Entities),
		zap.Int("proxies", st.Proxies),
		zap.Int("collections", st.Collections),
	)
}

// Load returns the managed instance of entity with the given identifier,
// reading it from the database unless the context already holds it. A
// pending proxy for the key is initialized and returned.
func (s *Session) Load(ctx context.Context, entity string, id any) (any, error) {
	if s.closed {
		return nil, domain.ErrNoSession.WithData("entity", entity)
	}
	p, err := s.meta.persister(entity)
	if err != nil {
		return nil, err
	}
	id, err = p.NormalizeID(id)
	if err != nil {
		return nil, domain.ErrEntityNotFound.WithData("entity", entity).WithData("id", fmt.Sprint(id)).WithCause(err)
	}
	key := domain.EntityKey{Entity: p.name, ID: id}

	if e, ok := s.pc.Entity(key); ok {
		return e, nil
	}
	if proxy, ok := s.pc.Proxy(key); ok {
		if err := s.initializeProxy(ctx, p, key); err != nil {
			return nil, err
		}
		return proxy, nil
	}

	obj := reflect.New(p.typ).Interface()
	s.queries++
	err = s.db.WithContext(ctx).Where(clause.Eq{Column: column(p.pk), Value: id}).Take(obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntityNotFound.WithData("entity", entity).WithData("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return s.manage(p, obj)
}

// Get is Load for a statically known entity type.
func Get[T any](ctx context.Context, s *Session, id any) (*T, error) {
	p, err := s.meta.EntityPersister(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	obj, err := s.Load(ctx, p.EntityName(), id)
	if err != nil {
		return nil, err
	}
	return obj.(*T), nil
}

// Initialize loads obj when it is an uninitialized proxy or persistent
// collection of this session. Anything else is left alone.
func (s *Session) Initialize(obj any) error {
	if c, ok := obj.(domain.PersistentCollection); ok {
		if c.WasInitialized() {
			return nil
		}
		return s.InitializeCollection(c)
	}
	if !s.pc.IsUninitializedProxy(obj) {
		return nil
	}
	key := s.pc.uninit[obj]
	if s.closed {
		return domain.ErrLazyInitialization.WithData("entity", key.String())
	}
	p, err := s.meta.persister(key.Entity)
	if err != nil {
		return err
	}
	return s.initializeProxy(s.ctx, p, key)
}

func (s *Session) IsInitialized(obj any) bool {
	if c, ok := obj.(domain.PersistentCollection); ok {
		return c.WasInitialized()
	}
	return !s.pc.IsUninitializedProxy(obj)
}

// InitializeCollection loads the elements of c by its owner key. Elements go
// through the identity map, so an element already managed is reused.
func (s *Session) InitializeCollection(c domain.PersistentCollection) error {
	if c.WasInitialized() {
		return nil
	}
	if s.closed {
		return domain.ErrLazyInitialization.WithData("role", c.Role()).WithData("owner", c.Key())
	}
	cp, ok := s.meta.roles[c.Role()]
	if !ok {
		return domain.ErrUnknownRole.WithData("role", c.Role())
	}

	el := cp.element
	q := s.db.WithContext(s.ctx).Where(clause.Eq{Column: column(cp.mappedBy), Value: c.Key()})
	if cp.ownerType != nil {
		q = q.Where(clause.Eq{Column: column(cp.ownerType), Value: cp.owner.name})
	}
	order := cp.orderBy
	if order == nil {
		order = el.pk
	}
	q = q.Order(clause.OrderByColumn{Column: column(order)})

	rows := reflect.New(reflect.SliceOf(reflect.PointerTo(el.typ)))
	s.queries++
	if err := q.Find(rows.Interface()).Error; err != nil {
		return fmt.Errorf("initialize %s#%v: %w", cp.role, c.Key(), err)
	}

	list := rows.Elem()
	entries := make([]domain.Entry, 0, list.Len())
	for i := range list.Len() {
		managed, err := s.manage(el, list.Index(i).Interface())
		if err != nil {
			return err
		}
		entry := domain.Entry{Value: managed}
		if cp.mapKey != nil {
			entry.Key, _ = cp.mapKey.ValueOf(s.ctx, reflect.ValueOf(managed).Elem())
		}
		entries = append(entries, entry)
	}
	if err := c.Load(entries); err != nil {
		return fmt.Errorf("initialize %s#%v: %w", cp.role, c.Key(), err)
	}
	s.log.Debug("collection initialized",
		zap.String("role", cp.role),
		zap.Any("owner", c.Key()),
		zap.Int("size", len(entries)),
	)
	return nil
}

// initializeProxy loads key together with up to batch-1 other queued
// proxies of the same entity in a single IN query.
func (s *Session) initializeProxy(ctx context.Context, p *EntityPersister, key domain.EntityKey) error {
	ids := s.pc.batch.identifiers(key, s.batch)
	rows := reflect.New(reflect.SliceOf(reflect.PointerTo(p.typ)))
	s.queries++
	if err := s.db.WithContext(ctx).Where(clause.IN{Column: column(p.pk), Values: ids}).Find(rows.Interface()).Error; err != nil {
		return fmt.Errorf("initialize %s: %w", key, err)
	}

	list := rows.Elem()
	for i := range list.Len() {
		if _, err := s.manage(p, list.Index(i).Interface()); err != nil {
			return err
		}
	}
	for _, id := range ids {
		s.pc.batch.remove(domain.EntityKey{Entity: key.Entity, ID: id})
	}
	s.log.Debug("proxies initialized",
		zap.String("entity", p.name),
		zap.Int("requested", len(ids)),
		zap.Int("found", list.Len()),
	)

	if proxy, ok := s.pc.Proxy(key); ok && s.pc.IsUninitializedProxy(proxy) {
		return domain.ErrEntityNotFound.WithData("entity", key.Entity).WithData("id", key.ID)
	}
	return nil
}

// manage makes obj, a freshly read row, the canonical instance for its key.
// An already managed instance wins; a pending proxy is filled from obj.
func (s *Session) manage(p *EntityPersister, obj any) (any, error) {
	id, err := p.Identifier(obj)
	if err != nil {
		return nil, err
	}
	key := domain.EntityKey{Entity: p.name, ID: id}
	if e, ok := s.pc.Entity(key); ok {
		return e, nil
	}
	if proxy, ok := s.pc.Proxy(key); ok {
		if obj, err = s.pc.NarrowProxy(proxy, p, key, obj); err != nil {
			return nil, err
		}
	} else {
		s.pc.addEntity(key, obj)
	}
	if err := s.wire(p, key, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// wire installs proxies for unset to-one associations whose foreign key is
// set and uninitialized collections for every lazy collection field.
func (s *Session) wire(p *EntityPersister, key domain.EntityKey, obj any) error {
	v := reflect.ValueOf(obj).Elem()

	for _, m := range p.toOne {
		f, err := v.FieldByIndexErr(m.index)
		if err != nil || !f.IsNil() {
			continue
		}
		fk, zero := m.fk.ValueOf(s.ctx, v)
		if zero {
			continue
		}
		ref, err := s.reference(m.target, fk)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", p.name, m.name, err)
		}
		f.Set(reflect.ValueOf(ref))
	}

	for _, lc := range p.lazy {
		f, err := v.FieldByIndexErr(lc.index)
		if err != nil || !f.IsNil() {
			continue
		}
		ckey := domain.CollectionKey{Role: lc.persister.role, Owner: key.ID}
		c, ok := s.pc.Collection(ckey)
		if !ok {
			if c, err = lc.persister.CreateCollection(s); err != nil {
				return err
			}
			c.SetSnapshot(key.ID, lc.persister.role, nil)
			s.pc.addCollection(ckey, c)
		}
		f.Set(reflect.ValueOf(c))
	}
	return nil
}

// reference returns the managed instance or proxy for p's entity with id,
// creating and queueing a proxy when neither exists.
func (s *Session) reference(p *EntityPersister, id any) (any, error) {
	id, err := p.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	key := domain.EntityKey{Entity: p.name, ID: id}
	if e, ok := s.pc.Entity(key); ok {
		return e, nil
	}
	if proxy, ok := s.pc.Proxy(key); ok {
		return proxy, nil
	}
	proxy, err := p.CreateProxy(id, s)
	if err != nil {
		return nil, err
	}
	s.pc.AddProxy(key, proxy)
	s.pc.batch.AddBatchLoadableEntityKey(key)
	return proxy, nil
}

func column(f *schema.Field) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: f.DBName}
}
