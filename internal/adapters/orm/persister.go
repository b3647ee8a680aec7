package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
	"gorm.io/gorm/schema"
)

type toOneMapping struct {
	name   string
	index  []int
	fk     *schema.Field
	target *EntityPersister
}

type lazyCollection struct {
	index     []int
	persister *CollectionPersister
}

// EntityPersister exposes one gorm model as an entity: identifier access,
// proxy construction and the lazy associations to wire on load.
type EntityPersister struct {
	name   string
	typ    reflect.Type
	schema *schema.Schema
	pk     *schema.Field
	assocs []domain.Association
	toOne  []toOneMapping
	lazy   []lazyCollection
}

func (p *EntityPersister) EntityName() string                 { return p.name }
func (p *EntityPersister) MappedType() reflect.Type           { return p.typ }
func (p *EntityPersister) Associations() []domain.Association { return p.assocs }
func (p *EntityPersister) Table() string                      { return p.schema.Table }

func (p *EntityPersister) Identifier(entity any) (any, error) {
	if domain.TypeOf(entity) != p.typ {
		return nil, domain.ErrUnknownEntity.WithData("entity", p.name).WithData("type", fmt.Sprintf("%T", entity))
	}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, domain.ErrTransientEntity.WithData("entity", p.name)
		}
		v = v.Elem()
	}
	id, zero := p.pk.ValueOf(context.Background(), v)
	if zero {
		return nil, domain.ErrTransientEntity.WithData("entity", p.name)
	}
	return id, nil
}

// CreateProxy returns a new *T carrying only its primary key. Registering it
// as a proxy is up to the caller.
func (p *EntityPersister) CreateProxy(id any, _ domain.Session) (any, error) {
	v := reflect.New(p.typ)
	if err := p.pk.Set(context.Background(), v, id); err != nil {
		return nil, fmt.Errorf("%s: set identifier %v: %w", p.name, id, err)
	}
	return v.Interface(), nil
}

// NormalizeID converts id (for example a float64 decoded from JSON or a
// path parameter) to the primary key's Go type.
func (p *EntityPersister) NormalizeID(id any) (any, error) {
	proxy, err := p.CreateProxy(id, nil)
	if err != nil {
		return nil, err
	}
	return p.Identifier(proxy)
}

// CollectionPersister describes one collection role: the container type to
// build and how its elements are queried.
type CollectionPersister struct {
	role      string
	kind      domain.CollectionKind
	typ       reflect.Type
	owner     *EntityPersister
	element   *EntityPersister
	mappedBy  *schema.Field
	orderBy   *schema.Field
	mapKey    *schema.Field
	ownerType *schema.Field
}

func (p *CollectionPersister) Role() string               { return p.role }
func (p *CollectionPersister) Kind() domain.CollectionKind { return p.kind }

// CreateCollection returns an empty, uninitialized collection. When s can
// load collections it is bound as the collection's session.
func (p *CollectionPersister) CreateCollection(s domain.Session) (domain.PersistentCollection, error) {
	c, ok := reflect.New(p.typ.Elem()).Interface().(domain.PersistentCollection)
	if !ok {
		return nil, domain.ErrUnknownRole.WithData("role", p.role)
	}
	if l, ok := s.(domain.CollectionLoader); ok {
		c.SetCurrentSession(l)
	}
	return c, nil
}
