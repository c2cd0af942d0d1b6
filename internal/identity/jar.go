package identity

import (
	"net/http"
	"sync"
	"time"
)

const (
	AccessCookieName  = "sb-access-token"
	RefreshCookieName = "sb-refresh-token"
)

// refresh cookies outlive the access token so an expired session can still
// be refreshed.
const refreshCookieTTL = 30 * 24 * time.Hour

// CookieOptions defines how token cookies are issued.
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// CookieJar is the request-scoped Jar backed by the inbound request cookies
// and the response's Set-Cookie headers.
type CookieJar struct {
	w    http.ResponseWriter
	opts CookieOptions

	mu      sync.Mutex
	tokens  Tokens
	present bool
}

// NewCookieJar reads the token cookies of r. Writes go to w.
func NewCookieJar(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieJar {
	j := &CookieJar{w: w, opts: opts.normalize()}
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		j.tokens.AccessToken = c.Value
		j.present = true
	}
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		j.tokens.RefreshToken = c.Value
		j.present = true
	}
	return j
}

func (j *CookieJar) Tokens() (Tokens, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tokens, j.present
}

func (j *CookieJar) SetTokens(t Tokens) {
	j.mu.Lock()
	j.tokens = t
	j.present = t.AccessToken != "" || t.RefreshToken != ""
	j.mu.Unlock()

	expires := t.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(time.Hour)
	}
	j.set(AccessCookieName, t.AccessToken, expires)
	if t.RefreshToken != "" {
		j.set(RefreshCookieName, t.RefreshToken, time.Now().Add(refreshCookieTTL))
	}
}

// Clear drops the tokens and expires both cookies on the client.
func (j *CookieJar) Clear() {
	j.mu.Lock()
	j.tokens = Tokens{}
	j.present = false
	j.mu.Unlock()

	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(j.w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     j.opts.Path,
			Domain:   j.opts.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   j.opts.Secure,
			SameSite: j.opts.SameSite,
		})
	}
}

func (j *CookieJar) set(name, value string, expires time.Time) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.opts.Path,
		Domain:   j.opts.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: j.opts.SameSite,
	})
}

// MemoryJar is a Jar without transport, for background callers and tests.
type MemoryJar struct {
	mu      sync.Mutex
	tokens  Tokens
	present bool
}

func (j *MemoryJar) Tokens() (Tokens, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tokens, j.present
}

func (j *MemoryJar) SetTokens(t Tokens) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tokens = t
	j.present = t.AccessToken != "" || t.RefreshToken != ""
}

func (j *MemoryJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tokens = Tokens{}
	j.present = false
}
