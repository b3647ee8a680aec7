package orm

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBatchSize = 16

// SessionFactory opens sessions sharing one connection pool and metamodel.
type SessionFactory struct {
	db    *gorm.DB
	meta  *Metamodel
	log   *zap.Logger
	batch int
}

type FactoryOption func(*SessionFactory)

func WithLogger(l *zap.Logger) FactoryOption {
	return func(f *SessionFactory) {
		if l != nil {
			f.log = l
		}
	}
}

// WithBatchSize bounds how many queued proxies of one entity are loaded by
// a single query. Values below 1 disable batching.
func WithBatchSize(n int) FactoryOption {
	return func(f *SessionFactory) {
		f.batch = max(n, 1)
	}
}

func NewSessionFactory(db *gorm.DB, models []any, opts ...FactoryOption) (*SessionFactory, error) {
	meta, err := NewMetamodel(db, models...)
	if err != nil {
		return nil, err
	}
	f := &SessionFactory{db: db, meta: meta, log: zap.NewNop(), batch: defaultBatchSize}
	for _, opt := range opts {
		opt(f)
	}
	f.log.Info("session factory ready",
		zap.Strings("entities", meta.Entities()),
		zap.Strings("roles", meta.Roles()),
		zap.Int("batch_size", f.batch),
	)
	return f, nil
}

func (f *SessionFactory) Metamodel() *Metamodel { return f.meta }

// Open starts a unit of work bound to ctx. The caller closes it.
func (f *SessionFactory) Open(ctx context.Context) *Session {
	return &Session{
		ctx:   ctx,
		db:    f.db,
		meta:  f.meta,
		pc:    NewPersistenceContext(),
		log:   f.log,
		batch: f.batch,
	}
}
