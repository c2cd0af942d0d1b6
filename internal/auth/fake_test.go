package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

type fakeProvider struct {
	registerFn     func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error)
	authenticateFn func(email, password string) (*entity.Session, error)
	deauthFn       func() error
	userFn         func() (*entity.User, error)
	sessionFn      func() (*entity.Session, error)

	userCalls    atomic.Int32
	sessionCalls atomic.Int32
	lastMetadata map[string]any
}

func (f *fakeProvider) Register(ctx context.Context, jar identity.Jar, email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
	f.lastMetadata = metadata
	if f.registerFn != nil {
		return f.registerFn(email, password, metadata)
	}
	return nil, nil, nil
}

func (f *fakeProvider) Authenticate(ctx context.Context, jar identity.Jar, email, password string) (*entity.Session, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(email, password)
	}
	return nil, nil
}

func (f *fakeProvider) Deauthenticate(ctx context.Context, jar identity.Jar) error {
	if f.deauthFn != nil {
		return f.deauthFn()
	}
	jar.Clear()
	return nil
}

func (f *fakeProvider) CurrentUser(ctx context.Context, jar identity.Jar) (*entity.User, error) {
	f.userCalls.Add(1)
	if f.userFn != nil {
		return f.userFn()
	}
	return nil, nil
}

func (f *fakeProvider) CurrentSession(ctx context.Context, jar identity.Jar) (*entity.Session, error) {
	f.sessionCalls.Add(1)
	if f.sessionFn != nil {
		return f.sessionFn()
	}
	return nil, nil
}

type fakeRecords struct {
	rows        map[string]entity.Profile
	getErr      error
	updateErr   error
	updateCalls int
	lastFields  map[string]any
}

func newFakeRecords(rows ...entity.Profile) *fakeRecords {
	r := &fakeRecords{rows: map[string]entity.Profile{}}
	for _, p := range rows {
		r.rows[p.ID] = p
	}
	return r
}

func (r *fakeRecords) Get(ctx context.Context, jar identity.Jar, table, key string, dest any) error {
	if r.getErr != nil {
		return r.getErr
	}
	p, ok := r.rows[key]
	if !ok {
		return identity.ErrNotFound
	}
	*(dest.(*entity.Profile)) = p
	return nil
}

func (r *fakeRecords) Update(ctx context.Context, jar identity.Jar, table, key string, fields map[string]any, dest any) error {
	r.updateCalls++
	r.lastFields = fields
	if r.updateErr != nil {
		return r.updateErr
	}
	p, ok := r.rows[key]
	if !ok {
		return identity.ErrNotFound
	}
	if v, ok := fields["full_name"].(string); ok {
		p.FullName = &v
	}
	if v, ok := fields["avatar_url"].(string); ok {
		p.AvatarURL = &v
	}
	p.UpdatedAt = p.UpdatedAt.Add(time.Minute)
	r.rows[key] = p
	*(dest.(*entity.Profile)) = p
	return nil
}

func newTestScope() *Scope {
	return NewScope(context.Background(), "req-test", &identity.MemoryJar{})
}

func testUser() *entity.User {
	return &entity.User{
		ID:           "6f1c2a3e-1111-4f2b-9a0a-000000000001",
		Email:        "a@b.com",
		UserMetadata: map[string]any{"full_name": "A B"},
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
