package auth

import (
	"context"
	"sync"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// Scope is the per-request object passed to every core call. It carries the
// request context, the caller's token jar, and the memoized resolution of
// the caller. A Scope must not outlive its request.
type Scope struct {
	ctx context.Context
	id  string
	jar identity.Jar

	userOnce sync.Once
	user     *entity.User

	sessionOnce sync.Once
	session     *entity.Session
}

// NewScope starts the scope of one request.
func NewScope(ctx context.Context, id string, jar identity.Jar) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	if jar == nil {
		jar = &identity.MemoryJar{}
	}
	return &Scope{ctx: ctx, id: id, jar: jar}
}

func (s *Scope) Context() context.Context { return s.ctx }

// ID is the request id used in logs.
func (s *Scope) ID() string { return s.id }

func (s *Scope) Jar() identity.Jar { return s.jar }

type scopeKey struct{}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the request scope stored by WithScope.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

type userKey struct{}

// WithUser stores the identity admitted by the route guard.
func WithUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the identity admitted by the protected-route guard.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(userKey{}).(*entity.User)
	return u, ok && u != nil
}
