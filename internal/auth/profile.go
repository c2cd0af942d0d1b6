package auth

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

const (
	msgProfileFault    = "Failed to update profile"
	msgProfileNotFound = "Profile not found"
)

// GetProfile loads the profile row of userID. A missing row or a provider
// error yields nil.
func (s *Service) GetProfile(sc *Scope, userID string) (profile *entity.Profile) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("error getting profile", "request_id", sc.ID(), "user_id", userID, "panic", fmt.Sprint(r))
			profile = nil
		}
	}()
	if userID == "" {
		return nil
	}

	var p entity.Profile
	err := s.records.Get(sc.Context(), sc.Jar(), entity.ProfilesTable, userID, &p)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			s.logger.Warnw("error getting profile", "request_id", sc.ID(), "user_id", userID, "err", err)
		}
		return nil
	}
	return &p
}

// UpdateProfile applies the set fields of in to the profile of userID and
// returns the row as stored after the update.
func (s *Service) UpdateProfile(sc *Scope, userID string, in entity.ProfileUpdate) (res Result[*entity.Profile]) {
	defer func() { observe(s, "update_profile", res) }()
	defer contain(s, sc, "update_profile", msgProfileFault, &res)

	fields := in.Fields()
	var p entity.Profile
	var err error
	if len(fields) == 0 {
		err = s.records.Get(sc.Context(), sc.Jar(), entity.ProfilesTable, userID, &p)
	} else {
		err = s.records.Update(sc.Context(), sc.Jar(), entity.ProfilesTable, userID, fields, &p)
	}
	if err != nil {
		// a provider's own not-found message is passed through by failure
		if _, reported := identity.AsProviderError(err); !reported && errors.Is(err, identity.ErrNotFound) {
			return Fail[*entity.Profile](KindRejected, msgProfileNotFound)
		}
		return failure[*entity.Profile](s, sc, "update_profile", err, msgProfileFault)
	}
	return Ok(&p)
}
