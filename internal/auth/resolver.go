package auth

import (
	"fmt"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// CurrentUser returns the authenticated caller of the scope, or nil for an
// anonymous caller. The provider is asked at most once per scope; later calls
// return the same value.
func (s *Service) CurrentUser(sc *Scope) *entity.User {
	sc.userOnce.Do(func() {
		sc.user = s.lookupUser(sc)
	})
	return sc.user
}

// Session returns the caller's session, or nil. Memoized per scope like
// CurrentUser, independently of it.
func (s *Service) Session(sc *Scope) *entity.Session {
	sc.sessionOnce.Do(func() {
		sc.session = s.lookupSession(sc)
	})
	return sc.session
}

func (s *Service) lookupUser(sc *Scope) (user *entity.User) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("error getting current user", "request_id", sc.ID(), "panic", fmt.Sprint(r))
			user = nil
		}
	}()
	s.metrics.ObserveLookup("user")

	u, err := s.provider.CurrentUser(sc.Context(), sc.Jar())
	if err != nil {
		s.logger.Debugw("current user unresolved", "request_id", sc.ID(), "err", err)
		return nil
	}
	return u
}

func (s *Service) lookupSession(sc *Scope) (session *entity.Session) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("error getting session", "request_id", sc.ID(), "panic", fmt.Sprint(r))
			session = nil
		}
	}()
	s.metrics.ObserveLookup("session")

	sess, err := s.provider.CurrentSession(sc.Context(), sc.Jar())
	if err != nil {
		s.logger.Debugw("session unresolved", "request_id", sc.ID(), "err", err)
		return nil
	}
	return sess
}
