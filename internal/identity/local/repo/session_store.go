package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// SessionRecord is the server-side half of a local session. The access token
// only names it; revoking the record ends the session.
type SessionRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	// the refresh token replaced by the last rotation, honored for a short
	// grace window so overlapping requests do not count as reuse
	PrevRefreshToken string    `json:"prev_refresh_token,omitempty"`
	RotatedAt        time.Time `json:"rotated_at"`
}

// RotateOutcome is what a refresh token rotation did to the session.
type RotateOutcome int

const (
	// RotateMissing: no live session under the id.
	RotateMissing RotateOutcome = iota
	// RotateRotated: the current token was presented and replaced.
	RotateRotated
	// RotateGrace: the previous token came back inside the grace window; the
	// record is unchanged and its current token is handed out again.
	RotateGrace
	// RotateReused: a stale token came back; the session was deleted.
	RotateReused
)

// RotateRequest asks a session store to swap Presented for Next.
type RotateRequest struct {
	ID        string
	Presented string
	Next      string
	At        time.Time
	Grace     time.Duration
}

// rotate decides req against s. It is the compare half of the stores'
// compare-and-set.
func (s SessionRecord) rotate(req RotateRequest) (SessionRecord, RotateOutcome) {
	switch {
	case req.Presented == s.RefreshToken:
		s.PrevRefreshToken = s.RefreshToken
		s.RefreshToken = req.Next
		s.RotatedAt = req.At
		return s, RotateRotated
	case req.Presented == s.PrevRefreshToken && !s.RotatedAt.IsZero() && req.At.Sub(s.RotatedAt) <= req.Grace:
		return s, RotateGrace
	default:
		return s, RotateReused
	}
}

func (s SessionRecord) validate() error {
	if s.ID == "" || s.UserID == "" {
		return errors.New("session: missing id or user_id")
	}
	return nil
}

// RedisSessionStore keeps session records under session:<id> with a TTL
// matching the refresh window.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func (r *RedisSessionStore) key(id string) string {
	return r.prefix + id
}

// Save creates or replaces the record. An already expired record is deleted.
func (r *RedisSessionStore) Save(ctx context.Context, s SessionRecord) error {
	if err := s.validate(); err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "session: marshal")
	}
	return errors.Wrap(r.client.Set(ctx, r.key(s.ID), data, ttl).Err(), "session: save")
}

// Get returns nil, nil when the record does not exist.
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "session: get")
	}
	var s SessionRecord
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, errors.Wrap(err, "session: unmarshal")
	}
	return &s, nil
}

// rotateAttempts bounds the optimistic retries of Rotate.
const rotateAttempts = 5

// Rotate swaps the session's refresh token under WATCH, so two requests
// presenting the same token cannot both rotate it.
func (r *RedisSessionStore) Rotate(ctx context.Context, req RotateRequest) (*SessionRecord, RotateOutcome, error) {
	key := r.key(req.ID)
	var (
		out     *SessionRecord
		outcome RotateOutcome
	)
	txf := func(tx *redis.Tx) error {
		out, outcome = nil, RotateMissing
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var cur SessionRecord
		if err := json.Unmarshal(val, &cur); err != nil {
			return errors.Wrap(err, "session: unmarshal")
		}
		next, o := cur.rotate(req)
		switch o {
		case RotateGrace:
			out, outcome = &next, o
			return nil
		case RotateReused:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err == nil {
				outcome = o
			}
			return err
		}
		ttl := time.Until(next.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return errors.Wrap(err, "session: marshal")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err == nil {
			out, outcome = &next, o
		}
		return err
	}

	for i := 0; i < rotateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, RotateMissing, errors.Wrap(err, "session: rotate")
		}
		return out, outcome, nil
	}
	return nil, RotateMissing, errors.Newf("session: rotate %s: too much contention", req.ID)
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(r.client.Del(ctx, r.key(id)).Err(), "session: delete")
}
