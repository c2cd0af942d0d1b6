package auth

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/metrics"
)

func TestSignUpSuccess(t *testing.T) {
	user := testUser()
	p := &fakeProvider{registerFn: func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
		return user, &entity.Session{AccessToken: "at", User: user}, nil
	}}
	svc := NewService(p, nil, nil, nil)

	res := svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123", FullName: "A B"})

	got, ok := res.Value()
	require.True(t, ok)
	assert.Same(t, user, got)
	assert.Equal(t, map[string]any{"full_name": "A B"}, p.lastMetadata)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, true, env["success"])
	assert.NotContains(t, env, "error")
	assert.Equal(t, "a@b.com", env["data"].(map[string]any)["email"])
}

func TestSignUpDefaultsFullNameToEmpty(t *testing.T) {
	p := &fakeProvider{registerFn: func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
		return testUser(), nil, nil
	}}
	svc := NewService(p, nil, nil, nil)

	res := svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123"})

	assert.True(t, res.IsOk())
	assert.Equal(t, "", p.lastMetadata["full_name"])
}

func TestSignUpProviderErrorIsVerbatim(t *testing.T) {
	p := &fakeProvider{registerFn: func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
		return nil, nil, identity.Reject(http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	}}
	svc := NewService(p, nil, nil, nil)

	res := svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123"})

	msg, failed := res.Err()
	require.True(t, failed)
	assert.Equal(t, "User already registered", msg)
	assert.Equal(t, KindRejected, res.Kind())
	_, ok := res.Value()
	assert.False(t, ok)
}

func TestSignUpWithoutUserIsAnomalous(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, nil, nil)

	res := svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123"})

	msg, failed := res.Err()
	require.True(t, failed)
	assert.Equal(t, "Failed to create user", msg)
	assert.Equal(t, KindAnomalous, res.Kind())
}

func TestSignUpFaultUsesFallback(t *testing.T) {
	p := &fakeProvider{registerFn: func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}}
	svc := NewService(p, nil, nil, nil)

	res := svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123"})

	msg, failed := res.Err()
	require.True(t, failed)
	assert.Equal(t, "An error occurred during signup", msg)
	assert.Equal(t, KindFault, res.Kind())
}

func TestSignUpPanicIsContained(t *testing.T) {
	p := &fakeProvider{registerFn: func(email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
		panic("malformed response")
	}}
	svc := NewService(p, nil, nil, nil)

	var res Result[*entity.User]
	require.NotPanics(t, func() {
		res = svc.SignUp(newTestScope(), SignUpInput{Email: "a@b.com", Password: "secret123"})
	})
	msg, failed := res.Err()
	require.True(t, failed)
	assert.Equal(t, "An error occurred during signup", msg)
}

func TestLoginOutcomes(t *testing.T) {
	session := &entity.Session{AccessToken: "at", RefreshToken: "rt", User: testUser()}

	tests := []struct {
		name     string
		fn       func(email, password string) (*entity.Session, error)
		wantOK   bool
		wantMsg  string
		wantKind Kind
	}{
		{
			name:   "accepted",
			fn:     func(string, string) (*entity.Session, error) { return session, nil },
			wantOK: true,
		},
		{
			name: "rejected",
			fn: func(string, string) (*entity.Session, error) {
				return nil, identity.Reject(http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			},
			wantMsg:  "Invalid login credentials",
			wantKind: KindRejected,
		},
		{
			name:     "no session",
			fn:       func(string, string) (*entity.Session, error) { return nil, nil },
			wantMsg:  "Failed to create session",
			wantKind: KindAnomalous,
		},
		{
			name:     "fault",
			fn:       func(string, string) (*entity.Session, error) { return nil, errors.New("timeout") },
			wantMsg:  "An error occurred during login",
			wantKind: KindFault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeProvider{authenticateFn: tt.fn}, nil, nil, nil)

			res := svc.Login(newTestScope(), LoginInput{Email: "a@b.com", Password: "secret123"})

			if tt.wantOK {
				got, ok := res.Value()
				require.True(t, ok)
				assert.Same(t, session, got)
				return
			}
			msg, failed := res.Err()
			require.True(t, failed)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, tt.wantKind, res.Kind())
		})
	}
}

func TestLogout(t *testing.T) {
	t.Run("clears jar", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, nil, nil, nil)
		sc := newTestScope()
		sc.Jar().SetTokens(identity.Tokens{AccessToken: "at", RefreshToken: "rt"})

		res := svc.Logout(sc)

		require.True(t, res.IsOk())
		_, present := sc.Jar().Tokens()
		assert.False(t, present)
		body, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true}`, string(body))
	})

	t.Run("provider error", func(t *testing.T) {
		svc := NewService(&fakeProvider{deauthFn: func() error {
			return identity.Reject(http.StatusUnauthorized, "", "Session not found")
		}}, nil, nil, nil)

		res := svc.Logout(newTestScope())

		msg, failed := res.Err()
		require.True(t, failed)
		assert.Equal(t, "Session not found", msg)
	})

	t.Run("fault", func(t *testing.T) {
		svc := NewService(&fakeProvider{deauthFn: func() error { return errors.New("boom") }}, nil, nil, nil)

		res := svc.Logout(newTestScope())

		msg, _ := res.Err()
		assert.Equal(t, "An error occurred during logout", msg)
	})
}

func TestOperationsAreCounted(t *testing.T) {
	m := metrics.New()
	svc := NewService(&fakeProvider{}, nil, nil, m)

	svc.Login(newTestScope(), LoginInput{Email: "a@b.com", Password: "x"})
	svc.Logout(newTestScope())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("login", "anomalous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("logout", "ok")))
}
