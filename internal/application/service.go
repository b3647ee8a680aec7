package application

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/devgateway/dozer-model/internal/errx"
	"go.uber.org/zap"
)

// EntitySession is the unit of work the service detaches from and attaches
// to: a session that can also load entities and initialize lazy state.
type EntitySession interface {
	domain.Session
	domain.EntityLoader
	domain.Initializer
}

type DetachService struct {
	store *ModelStore
	opts  options
}

type OpenResult struct {
	Handle      string                    `json:"handle"`
	Entity      string                    `json:"entity"`
	Nodes       int                       `json:"nodes"`
	Definitions []domain.DefinitionRecord `json:"definitions"`
}

func NewDetachService(store *ModelStore, opts ...Option) *DetachService {
	return &DetachService{store: store, opts: newOptions(opts)}
}

// Open loads an entity through session, detaches it and stores the model.
func (s *DetachService) Open(ctx context.Context, session EntitySession, entity string, id any) (OpenResult, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" || id == nil {
		return OpenResult{}, errx.ErrInvalidParam.WithData("entity", entity).WithData("id", id)
	}

	root, err := session.Load(ctx, entity, id)
	if err != nil {
		return OpenResult{}, err
	}

	m := newDetachableModel(root, domain.StaticFinder(session), s.opts)
	nodes, err := m.Detach()
	if err != nil {
		return OpenResult{}, err
	}
	handle := s.store.Put(entity, m)

	s.opts.log.Info("model opened",
		zap.String("handle", handle),
		zap.String("entity", entity),
		zap.Any("id", id),
		zap.Int("nodes", nodes),
		zap.Int("definitions", len(m.defs)),
	)
	return OpenResult{Handle: handle, Entity: entity, Nodes: nodes, Definitions: m.Definitions()}, nil
}

// Resolve attaches the stored model to session, optionally initializes what
// was attached, hands the root to use and detaches the model again before
// returning. use runs while the session is still usable.
func (s *DetachService) Resolve(ctx context.Context, session EntitySession, handle string, initialize bool, use func(root any) error) error {
	m, release, err := s.store.Acquire(handle)
	if err != nil {
		return err
	}
	defer release()

	attached, err := m.Attach(domain.StaticFinder(session))
	if err != nil {
		return err
	}
	if initialize {
		for _, v := range attached {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := session.Initialize(v); err != nil {
				return err
			}
		}
	}

	var useErr error
	if use != nil {
		useErr = use(m.Object())
	}
	if _, err := m.Detach(); err != nil {
		return errors.Join(useErr, err)
	}

	s.opts.log.Debug("model resolved",
		zap.String("handle", handle),
		zap.Int("attached", len(attached)),
		zap.Bool("initialize", initialize),
	)
	return useErr
}

func (s *DetachService) Definitions(handle string) ([]domain.DefinitionRecord, error) {
	m, release, err := s.store.Acquire(handle)
	if err != nil {
		return nil, err
	}
	defer release()
	return m.Definitions(), nil
}

func (s *DetachService) Close(handle string) error {
	if !s.store.Delete(handle) {
		return domain.ErrModelNotFound.WithData("handle", handle)
	}
	s.opts.log.Info("model closed", zap.String("handle", handle))
	return nil
}

// Models lists the live models, most recently used first.
func (s *DetachService) Models() []StoredModel {
	out := s.store.List()
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out
}
