package local

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
)

// ownedRecords exposes rows only to the user whose id keys them. Foreign and
// anonymous reads look like missing rows.
type ownedRecords struct {
	p *Provider
}

// Records returns the record store bound to this provider's sessions.
func (p *Provider) Records() identity.RecordStore {
	return ownedRecords{p: p}
}

func (r ownedRecords) owner(ctx context.Context, jar identity.Jar, table, key string) error {
	s, err := r.p.CurrentSession(ctx, jar)
	if err != nil {
		return err
	}
	if s == nil || s.User == nil || s.User.ID != key {
		return errors.Wrapf(identity.ErrNotFound, "%s %s", table, key)
	}
	return nil
}

func (r ownedRecords) Get(ctx context.Context, jar identity.Jar, table, key string, dest any) error {
	if err := r.owner(ctx, jar, table, key); err != nil {
		return err
	}
	return r.p.rows.Get(ctx, table, key, dest)
}

func (r ownedRecords) Update(ctx context.Context, jar identity.Jar, table, key string, fields map[string]any, dest any) error {
	if err := r.owner(ctx, jar, table, key); err != nil {
		return err
	}
	return r.p.rows.Update(ctx, table, key, fields, dest)
}
