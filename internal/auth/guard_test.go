package auth

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/metrics"
)

func TestGuardProtected(t *testing.T) {
	t.Run("anonymous redirects to login", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, nil, nil, nil)
		g := NewGuard(svc, Paths{}, nil)

		d := g.Protected(newTestScope())

		assert.Equal(t, OutcomeRedirect, d.Outcome())
		assert.Equal(t, "/login", d.Target())
		assert.Nil(t, d.User())
	})
	t.Run("authenticated is allowed", func(t *testing.T) {
		user := testUser()
		svc := NewService(&fakeProvider{userFn: func() (*entity.User, error) { return user, nil }}, nil, nil, nil)
		g := NewGuard(svc, Paths{Login: "/signin"}, nil)

		d := g.Protected(newTestScope())

		assert.True(t, d.Allowed())
		assert.Same(t, user, d.User())
	})
}

func TestGuardAuthSurface(t *testing.T) {
	t.Run("live session redirects home", func(t *testing.T) {
		svc := NewService(&fakeProvider{sessionFn: func() (*entity.Session, error) {
			return &entity.Session{AccessToken: "at"}, nil
		}}, nil, nil, nil)
		g := NewGuard(svc, Paths{Home: "/dashboard"}, nil)

		d := g.AuthSurface(newTestScope())

		assert.Equal(t, OutcomeRedirect, d.Outcome())
		assert.Equal(t, "/dashboard", d.Target())
	})
	t.Run("no session renders form", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, nil, nil, nil)
		g := NewGuard(svc, Paths{}, nil)

		d := g.AuthSurface(newTestScope())

		assert.True(t, d.Allowed())
		assert.Nil(t, d.User())
	})
}

func TestGuardSharesScopeResolution(t *testing.T) {
	p := &fakeProvider{userFn: func() (*entity.User, error) { return testUser(), nil }}
	svc := NewService(p, nil, nil, nil)
	g := NewGuard(svc, Paths{}, nil)
	sc := newTestScope()

	d := g.Protected(sc)
	// the page body resolves the caller again with the same scope
	user := svc.CurrentUser(sc)

	assert.Same(t, d.User(), user)
	assert.Equal(t, int32(1), p.userCalls.Load())
}

func TestGuardDecisionsAreCounted(t *testing.T) {
	m := metrics.New()
	g := NewGuard(NewService(&fakeProvider{}, nil, nil, m), Paths{}, m)

	g.Protected(newTestScope())
	g.AuthSurface(newTestScope())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("protected", "redirect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("auth_surface", "allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderLookups.WithLabelValues("user")))
}
