package auth

import (
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

const (
	msgNoUser       = "Failed to create user"
	msgNoSession    = "Failed to create session"
	msgSignUpFault  = "An error occurred during signup"
	msgLoginFault   = "An error occurred during login"
	msgLogoutFault  = "An error occurred during logout"
	metadataNameKey = "full_name"
)

// SignUpInput is an already validated sign-up form.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// LoginInput is an already validated login form.
type LoginInput struct {
	Email    string
	Password string
}

// SignUp registers a new user with the provider. The full name is stored as
// user metadata. On success the provider may also have opened a session and
// written its tokens to the scope's jar.
func (s *Service) SignUp(sc *Scope, in SignUpInput) (res Result[*entity.User]) {
	defer func() { observe(s, "signup", res) }()
	defer contain(s, sc, "signup", msgSignUpFault, &res)

	metadata := map[string]any{metadataNameKey: in.FullName}
	user, _, err := s.provider.Register(sc.Context(), sc.Jar(), in.Email, in.Password, metadata)
	if err != nil {
		return failure[*entity.User](s, sc, "signup", err, msgSignUpFault)
	}
	if user == nil {
		s.logger.Warnw("provider accepted signup without a user", "request_id", sc.ID())
		return Fail[*entity.User](KindAnomalous, msgNoUser)
	}
	s.logger.Infow("user signed up", "request_id", sc.ID(), "user_id", user.ID)
	return Ok(user)
}

// Login opens a session for the given credentials.
func (s *Service) Login(sc *Scope, in LoginInput) (res Result[*entity.Session]) {
	defer func() { observe(s, "login", res) }()
	defer contain(s, sc, "login", msgLoginFault, &res)

	session, err := s.provider.Authenticate(sc.Context(), sc.Jar(), in.Email, in.Password)
	if err != nil {
		return failure[*entity.Session](s, sc, "login", err, msgLoginFault)
	}
	if session == nil {
		s.logger.Warnw("provider accepted login without a session", "request_id", sc.ID())
		return Fail[*entity.Session](KindAnomalous, msgNoSession)
	}
	return Ok(session)
}

// Logout destroys the caller's session.
func (s *Service) Logout(sc *Scope) (res Result[Unit]) {
	defer func() { observe(s, "logout", res) }()
	defer contain(s, sc, "logout", msgLogoutFault, &res)

	if err := s.provider.Deauthenticate(sc.Context(), sc.Jar()); err != nil {
		return failure[Unit](s, sc, "logout", err, msgLogoutFault)
	}
	return Done()
}
