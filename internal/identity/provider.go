// Package identity defines the contract with the external identity provider:
// credential registration and authentication, session lookup, and the record
// store keyed by user identity.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// ErrNotFound is returned by RecordStore.Get when no row matches the key.
var ErrNotFound = errors.New("identity: record not found")

// Tokens are the ambient request credentials carried between requests.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Jar carries the caller's tokens for the lifetime of one request. Providers
// read it to find the current session and write it when a session is created,
// refreshed, or destroyed.
type Jar interface {
	Tokens() (Tokens, bool)
	SetTokens(t Tokens)
	Clear()
}

// Provider is the authentication half of the external identity provider.
//
// CurrentUser and CurrentSession return (nil, nil) when the jar carries no
// usable credentials; errors are reserved for provider or transport failures.
type Provider interface {
	// Register creates a user. The session is nil when the provider requires
	// a confirmation step before the first sign-in.
	Register(ctx context.Context, jar Jar, email, password string, metadata map[string]any) (*entity.User, *entity.Session, error)
	Authenticate(ctx context.Context, jar Jar, email, password string) (*entity.Session, error)
	Deauthenticate(ctx context.Context, jar Jar) error
	CurrentUser(ctx context.Context, jar Jar) (*entity.User, error)
	CurrentSession(ctx context.Context, jar Jar) (*entity.Session, error)
}

// RecordStore is the row store half of the external provider. dest is
// decoded from the stored row.
type RecordStore interface {
	Get(ctx context.Context, jar Jar, table, key string, dest any) error
	Update(ctx context.Context, jar Jar, table, key string, fields map[string]any, dest any) error
}

// ProviderError is a failure reported by the provider itself (bad
// credentials, duplicate email, row-level security). Message is meant to be
// shown to the user as is.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider: %s (%s)", e.Message, e.Code)
	}
	return "identity provider: " + e.Message
}

// Reject builds a ProviderError.
func Reject(status int, code, message string) *ProviderError {
	return &ProviderError{Status: status, Code: code, Message: message}
}

// AsProviderError unwraps err into a ProviderError when it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
