package application

import (
	"context"
	"sync"
	"time"

	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/google/uuid"
)

// ModelStore keeps detached models between requests under opaque handles.
// Entries expire when they have not been used for the configured TTL.
type ModelStore struct {
	mu      sync.RWMutex
	models  map[string]*storedModel
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics
}

// storedModel is one entry. mu serializes the use of model; pending is
// guarded by the store lock and refreshed whenever a lease is released.
type storedModel struct {
	mu       sync.Mutex
	model    *DetachableModel
	entity   string
	lastUsed time.Time
	pending  int
}

// StoredModel describes one entry of the store.
type StoredModel struct {
	Handle   string    `json:"handle"`
	Entity   string    `json:"entity"`
	LastUsed time.Time `json:"last_used"`
	Pending  int       `json:"pending"`
}

func NewModelStore(ttl time.Duration, metrics *Metrics) *ModelStore {
	return &ModelStore{
		models:  make(map[string]*storedModel),
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
	}
}

func (s *ModelStore) Put(entity string, m *DetachableModel) string {
	handle := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[handle] = &storedModel{model: m, entity: entity, lastUsed: s.now(), pending: len(m.defs)}
	s.metrics.setStored(len(s.models))
	return handle
}

// Acquire returns the model under handle for exclusive use and marks it as
// used. The caller must call release when done; release records how many
// definitions the model holds so List never has to wait for a busy model.
func (s *ModelStore) Acquire(handle string) (m *DetachableModel, release func(), err error) {
	s.mu.Lock()
	e, ok := s.models[handle]
	if !ok || s.expired(e) {
		s.mu.Unlock()
		return nil, nil, domain.ErrModelNotFound.WithData("handle", handle)
	}
	e.lastUsed = s.now()
	s.mu.Unlock()

	e.mu.Lock()
	release = func() {
		pending := len(e.model.defs)
		e.mu.Unlock()
		s.mu.Lock()
		e.pending = pending
		s.mu.Unlock()
	}
	return e.model, release, nil
}

func (s *ModelStore) Delete(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[handle]; !ok {
		return false
	}
	delete(s.models, handle)
	s.metrics.setStored(len(s.models))
	return true
}

func (s *ModelStore) List() []StoredModel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredModel, 0, len(s.models))
	for handle, e := range s.models {
		if s.expired(e) {
			continue
		}
		out = append(out, StoredModel{Handle: handle, Entity: e.entity, LastUsed: e.lastUsed, Pending: e.pending})
	}
	return out
}

func (s *ModelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// Sweep drops expired models and returns how many were removed.
func (s *ModelStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for handle, e := range s.models {
		if s.expired(e) {
			delete(s.models, handle)
			removed++
		}
	}
	s.metrics.setStored(len(s.models))
	return removed
}

// Run sweeps the store every interval until ctx is done.
func (s *ModelStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (s *ModelStore) expired(e *storedModel) bool {
	return s.ttl > 0 && s.now().Sub(e.lastUsed) > s.ttl
}
