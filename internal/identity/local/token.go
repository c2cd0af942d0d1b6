package local

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// accessClaims are the claims of a local access token.
type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	SessionID    string         `json:"sid"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// tokenIssuer signs and verifies HS256 access tokens.
type tokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func (t tokenIssuer) issue(user *entity.User, sessionID string, now time.Time) (string, time.Time, error) {
	expires := now.Add(t.ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:        user.Email,
		SessionID:    sessionID,
		UserMetadata: user.UserMetadata,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign access token")
	}
	return signed, expires, nil
}

// parse verifies the signature and issuer. Expiry is left to the caller;
// logout and refresh still need the session id of an expired token.
func (t tokenIssuer) parse(token string) (*accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}
	if claims.Issuer != t.issuer {
		return nil, errors.Newf("access token issued by %q", claims.Issuer)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, errors.New("access token without session")
	}
	return &claims, nil
}

func (c *accessClaims) expired(now time.Time) bool {
	return c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time)
}

// newRefreshToken binds a fresh random secret to sessionID.
func newRefreshToken(sessionID string) string {
	return sessionID + "." + ksuid.New().String()
}

// refreshSessionID extracts the session id a refresh token belongs to.
func refreshSessionID(token string) (string, bool) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", false
	}
	return id, true
}
