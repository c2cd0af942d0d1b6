package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// tokens this close to expiry are refreshed before use
const expiryMargin = 10 * time.Second

// sessionBody is the token grant response. Sign-up without auto-confirm
// answers with a bare user instead, which lands in the embedded fields.
type sessionBody struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *entity.User `json:"user"`
}

func (b sessionBody) session(now time.Time) *entity.Session {
	if b.AccessToken == "" {
		return nil
	}
	s := &entity.Session{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		TokenType:    b.TokenType,
		ExpiresIn:    b.ExpiresIn,
		User:         b.User,
	}
	switch {
	case b.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(b.ExpiresAt, 0)
	case b.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(b.ExpiresIn) * time.Second)
	}
	return s
}

func store(jar identity.Jar, s *entity.Session) {
	jar.SetTokens(identity.Tokens{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	})
}

func (c *Client) Register(ctx context.Context, jar identity.Jar, email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		name:   "signup",
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]any{"email": email, "password": password, "data": metadata},
	}, &raw)
	if err != nil {
		return nil, nil, err
	}

	var body sessionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, errors.Wrap(err, "gotrue: decode signup response")
	}
	if s := body.session(c.now()); s != nil {
		store(jar, s)
		return s.User, s, nil
	}

	var user entity.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, errors.Wrap(err, "gotrue: decode signup user")
	}
	if user.ID == "" {
		return nil, nil, nil
	}
	return &user, nil, nil
}

func (c *Client) Authenticate(ctx context.Context, jar identity.Jar, email, password string) (*entity.Session, error) {
	var body sessionBody
	err := c.do(ctx, call{
		name:   "token.password",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &body)
	if err != nil {
		return nil, err
	}
	s := body.session(c.now())
	if s == nil {
		return nil, nil
	}
	store(jar, s)
	return s, nil
}

// Deauthenticate revokes the session server side. The jar is cleared even
// when the server no longer knows the session.
func (c *Client) Deauthenticate(ctx context.Context, jar identity.Jar) error {
	defer jar.Clear()
	t, ok := jar.Tokens()
	if !ok || t.AccessToken == "" {
		return nil
	}
	err := c.do(ctx, call{
		name:   "logout",
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  t.AccessToken,
	}, nil)
	if pe, ok := identity.AsProviderError(err); ok {
		switch pe.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return err
}

func (c *Client) CurrentUser(ctx context.Context, jar identity.Jar) (*entity.User, error) {
	s, err := c.CurrentSession(ctx, jar)
	if err != nil || s == nil {
		return nil, err
	}
	var user entity.User
	err = c.do(ctx, call{
		name:   "user",
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  s.AccessToken,
	}, &user)
	if pe, ok := identity.AsProviderError(err); ok && pe.Status == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// CurrentSession rebuilds the session from the jar. The access token claims
// are decoded without verification; the server verifies the token on every
// call that uses it.
func (c *Client) CurrentSession(ctx context.Context, jar identity.Jar) (*entity.Session, error) {
	t, ok := jar.Tokens()
	if !ok {
		return nil, nil
	}
	now := c.now()
	if t.AccessToken != "" {
		if s, err := sessionFromToken(t); err == nil && s.ExpiresAt.After(now.Add(expiryMargin)) {
			return s, nil
		}
	}
	if t.RefreshToken == "" {
		return nil, nil
	}
	return c.refresh(ctx, jar, t.RefreshToken)
}

func (c *Client) refresh(ctx context.Context, jar identity.Jar, refreshToken string) (*entity.Session, error) {
	var body sessionBody
	err := c.do(ctx, call{
		name:   "token.refresh",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &body)
	if err != nil {
		if _, rejected := identity.AsProviderError(err); rejected {
			jar.Clear()
		}
		return nil, err
	}
	s := body.session(c.now())
	if s == nil {
		return nil, nil
	}
	store(jar, s)
	return s, nil
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func sessionFromToken(t identity.Tokens) (*entity.Session, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, &claims); err != nil {
		return nil, errors.Wrap(err, "gotrue: parse access token")
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("gotrue: access token has no exp")
	}
	user := &entity.User{
		ID:           claims.Subject,
		Role:         claims.Role,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}
	if len(claims.Audience) > 0 {
		user.Aud = claims.Audience[0]
	}
	expires := claims.ExpiresAt.Time
	return &entity.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(expires).Seconds()),
		ExpiresAt:    expires,
		User:         user,
	}, nil
}
