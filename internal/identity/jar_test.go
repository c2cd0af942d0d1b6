package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestCookieJarReadsRequestCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "at"})
	r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "rt"})

	jar := NewCookieJar(httptest.NewRecorder(), r, CookieOptions{})

	tokens, ok := jar.Tokens()
	require.True(t, ok)
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
}

func TestCookieJarWithoutCookies(t *testing.T) {
	jar := NewCookieJar(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{})

	_, ok := jar.Tokens()
	assert.False(t, ok)
}

func TestCookieJarSetTokens(t *testing.T) {
	rec := httptest.NewRecorder()
	jar := NewCookieJar(rec, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{Secure: true})

	jar.SetTokens(Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)})

	cookies := cookiesByName(rec)
	require.Contains(t, cookies, AccessCookieName)
	require.Contains(t, cookies, RefreshCookieName)
	access := cookies[AccessCookieName]
	assert.Equal(t, "at", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	tokens, ok := jar.Tokens()
	assert.True(t, ok)
	assert.Equal(t, "rt", tokens.RefreshToken)
}

func TestCookieJarClear(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "at"})
	rec := httptest.NewRecorder()
	jar := NewCookieJar(rec, r, CookieOptions{})

	jar.Clear()

	_, ok := jar.Tokens()
	assert.False(t, ok)
	cookies := cookiesByName(rec)
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		require.Contains(t, cookies, name)
		assert.Equal(t, -1, cookies[name].MaxAge)
		assert.Empty(t, cookies[name].Value)
	}
}

func TestMemoryJar(t *testing.T) {
	jar := &MemoryJar{}
	_, ok := jar.Tokens()
	assert.False(t, ok)

	jar.SetTokens(Tokens{RefreshToken: "rt"})
	tokens, ok := jar.Tokens()
	assert.True(t, ok)
	assert.Equal(t, "rt", tokens.RefreshToken)

	jar.Clear()
	_, ok = jar.Tokens()
	assert.False(t, ok)
}
