// Package local is a self-hosted identity provider: bcrypt credentials in
// postgres (or memory), server-side session records in redis (or memory),
// and HS256 access tokens naming those records.
package local

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/local/repo"
)

const minPasswordLength = 6

// refreshReuseGrace is how long a just-rotated refresh token still resumes
// its session, covering requests that were in flight during the rotation.
const refreshReuseGrace = 10 * time.Second

const (
	msgInvalidCredentials = "Invalid login credentials"
	msgAlreadyRegistered  = "User already registered"
	msgWeakPassword       = "Password should be at least 6 characters"
)

type UserStore interface {
	Create(ctx context.Context, u *repo.UserRow) error
	GetByEmail(ctx context.Context, email string) (*repo.UserRow, error)
	GetByID(ctx context.Context, id string) (*repo.UserRow, error)
	TouchSignIn(ctx context.Context, id string) error
}

// SessionStore.Get returns nil, nil for unknown sessions. Rotate must compare
// and swap the refresh token atomically.
type SessionStore interface {
	Save(ctx context.Context, s repo.SessionRecord) error
	Get(ctx context.Context, id string) (*repo.SessionRecord, error)
	Rotate(ctx context.Context, req repo.RotateRequest) (*repo.SessionRecord, repo.RotateOutcome, error)
	Delete(ctx context.Context, id string) error
}

type RowStore interface {
	Get(ctx context.Context, table, key string, dest any) error
	Update(ctx context.Context, table, key string, fields map[string]any, dest any) error
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Provider implements identity.Provider over local stores.
type Provider struct {
	users    UserStore
	sessions SessionStore
	rows     RowStore
	hasher   PasswordHasher
	tokens   tokenIssuer
	refresh  time.Duration
	node     *snowflake.Node
	logger   *zap.SugaredLogger
	now      func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New builds the provider. node generates session ids; logger may be nil.
func New(cfg Config, users UserStore, sessions SessionStore, rows RowStore, node *snowflake.Node, logger *zap.SugaredLogger) (*Provider, error) {
	if cfg.Secret == "" {
		return nil, errors.New("local provider: empty signing secret")
	}
	if node == nil {
		return nil, errors.New("local provider: nil snowflake node")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "service-web-auth"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Provider{
		users:    users,
		sessions: sessions,
		rows:     rows,
		hasher:   BcryptHasher{},
		tokens:   tokenIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.AccessTTL},
		refresh:  cfg.RefreshTTL,
		node:     node,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithHasher swaps the password hasher.
func (p *Provider) WithHasher(h PasswordHasher) *Provider {
	p.hasher = h
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) Register(ctx context.Context, jar identity.Jar, email, password string, metadata map[string]any) (*entity.User, *entity.Session, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, nil, identity.Reject(http.StatusUnprocessableEntity, "weak_password", msgWeakPassword)
	}
	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, identity.Reject(http.StatusUnprocessableEntity, "user_already_exists", msgAlreadyRegistered)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, nil, err
	}

	hash, algo, err := p.hasher.Hash(password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "hash password")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode user metadata")
	}
	row := &repo.UserRow{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		PasswordAlgo: algo,
		MetadataRaw:  raw,
	}
	if err := p.users.Create(ctx, row); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, nil, identity.Reject(http.StatusUnprocessableEntity, "user_already_exists", msgAlreadyRegistered)
		}
		return nil, nil, err
	}
	p.logger.Infow("user registered", "user_id", row.ID)

	// the account exists from here on; a failed session only means the
	// caller has to log in
	user := row.User()
	session, err := p.open(ctx, jar, user)
	if err != nil {
		p.logger.Warnw("registered user without a session", "user_id", row.ID, "err", err)
		return user, nil, nil
	}
	return user, session, nil
}

func (p *Provider) Authenticate(ctx context.Context, jar identity.Jar, email, password string) (*entity.Session, error) {
	row, err := p.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, identity.Reject(http.StatusBadRequest, "invalid_credentials", msgInvalidCredentials)
		}
		return nil, err
	}
	if !p.hasher.Verify(row.PasswordHash, password) {
		return nil, identity.Reject(http.StatusBadRequest, "invalid_credentials", msgInvalidCredentials)
	}
	if err := p.users.TouchSignIn(ctx, row.ID); err != nil {
		p.logger.Warnw("record sign in failed", "user_id", row.ID, "err", err)
	}
	if p.hasher.NeedsRehash(row.PasswordHash) {
		p.logger.Debugw("password hash uses outdated parameters", "user_id", row.ID, "algo", row.PasswordAlgo)
	}
	return p.open(ctx, jar, row.User())
}

// Deauthenticate revokes the session named by the jar, if any, and clears
// the jar.
func (p *Provider) Deauthenticate(ctx context.Context, jar identity.Jar) error {
	defer jar.Clear()
	t, ok := jar.Tokens()
	if !ok {
		return nil
	}
	sid := ""
	if t.AccessToken != "" {
		if claims, err := p.tokens.parse(t.AccessToken); err == nil {
			sid = claims.SessionID
		}
	}
	if sid == "" {
		sid, _ = refreshSessionID(t.RefreshToken)
	}
	if sid == "" {
		return nil
	}
	return p.sessions.Delete(ctx, sid)
}

// CurrentUser loads the stored user behind the current session.
func (p *Provider) CurrentUser(ctx context.Context, jar identity.Jar) (*entity.User, error) {
	s, err := p.CurrentSession(ctx, jar)
	if err != nil || s == nil {
		return nil, err
	}
	row, err := p.users.GetByID(ctx, s.User.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.User(), nil
}

// CurrentSession verifies the access token and that its session record is
// still stored. An expired access token is replaced through the refresh
// token, which is rotated.
func (p *Provider) CurrentSession(ctx context.Context, jar identity.Jar) (*entity.Session, error) {
	t, ok := jar.Tokens()
	if !ok {
		return nil, nil
	}
	if t.AccessToken != "" {
		claims, err := p.tokens.parse(t.AccessToken)
		switch {
		case err != nil:
			p.logger.Debugw("rejecting access token", "err", err)
		case !claims.expired(p.now()):
			return p.resume(ctx, t, claims)
		}
	}
	if t.RefreshToken == "" {
		return nil, nil
	}
	return p.rotate(ctx, jar, t.RefreshToken)
}

func (p *Provider) resume(ctx context.Context, t identity.Tokens, claims *accessClaims) (*entity.Session, error) {
	rec, err := p.sessions.Get(ctx, claims.SessionID)
	if err != nil || rec == nil {
		return nil, err
	}
	expires := claims.ExpiresAt.Time
	return &entity.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(expires.Sub(p.now()).Seconds()),
		ExpiresAt:    expires,
		User: &entity.User{
			ID:           claims.Subject,
			Aud:          "authenticated",
			Role:         "authenticated",
			Email:        claims.Email,
			UserMetadata: claims.UserMetadata,
		},
	}, nil
}

func (p *Provider) rotate(ctx context.Context, jar identity.Jar, refreshToken string) (*entity.Session, error) {
	sid, ok := refreshSessionID(refreshToken)
	if !ok {
		jar.Clear()
		return nil, nil
	}
	rec, outcome, err := p.sessions.Rotate(ctx, repo.RotateRequest{
		ID:        sid,
		Presented: refreshToken,
		Next:      newRefreshToken(sid),
		At:        p.now(),
		Grace:     refreshReuseGrace,
	})
	if err != nil {
		return nil, err
	}
	switch outcome {
	case repo.RotateMissing:
		jar.Clear()
		return nil, nil
	case repo.RotateReused:
		// a rotated token came back after the grace window; the session is burnt
		p.logger.Warnw("refresh token reuse", "session_id", sid)
		jar.Clear()
		return nil, nil
	case repo.RotateGrace:
		p.logger.Debugw("refresh token reused inside grace window", "session_id", sid)
	}

	row, err := p.users.GetByID(ctx, rec.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		jar.Clear()
		return nil, p.sessions.Delete(ctx, sid)
	}
	if err != nil {
		return nil, err
	}
	return p.issue(jar, row.User(), *rec)
}

// open starts a new session for user and stores its tokens in jar.
func (p *Provider) open(ctx context.Context, jar identity.Jar, user *entity.User) (*entity.Session, error) {
	now := p.now()
	sid := p.node.Generate().String()
	rec := repo.SessionRecord{
		ID:           sid,
		UserID:       user.ID,
		RefreshToken: newRefreshToken(sid),
		CreatedAt:    now,
		ExpiresAt:    now.Add(p.refresh),
	}
	if err := p.sessions.Save(ctx, rec); err != nil {
		return nil, err
	}
	return p.issue(jar, user, rec)
}

func (p *Provider) issue(jar identity.Jar, user *entity.User, rec repo.SessionRecord) (*entity.Session, error) {
	now := p.now()
	access, expires, err := p.tokens.issue(user, rec.ID, now)
	if err != nil {
		return nil, err
	}
	s := &entity.Session{
		AccessToken:  access,
		RefreshToken: rec.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(expires.Sub(now).Seconds()),
		ExpiresAt:    expires,
		User:         user,
	}
	jar.SetTokens(identity.Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt})
	return s, nil
}
