package orm

import (
	"context"
	"reflect"

	"github.com/devgateway/dozer-model/internal/domain"
)

type sessionKey struct{}

// WithSession binds s to ctx for the duration of a request.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// ContextFinder finds the open session bound to ctx. Types the session's
// metamodel does not know are still answered: deciding whether a node is
// an entity is the caller's job.
func ContextFinder(ctx context.Context) domain.SessionFinder {
	return domain.SessionFinderFunc(func(reflect.Type) (domain.Session, bool) {
		s, ok := SessionFrom(ctx)
		if !ok || s.Closed() {
			return nil, false
		}
		return s, true
	})
}
