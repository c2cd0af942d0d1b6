package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// Memory backs the local provider without postgres or redis. It holds the
// users, their profiles, and the session records.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]UserRow
	byEmail  map[string]string
	profiles map[string]entity.Profile
	sessions map[string]SessionRecord
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[string]UserRow{},
		byEmail:  map[string]string{},
		profiles: map[string]entity.Profile{},
		sessions: map[string]SessionRecord{},
		now:      time.Now,
	}
}

// Users exposes the user half of m.
func (m *Memory) Users() *MemoryUsers { return &MemoryUsers{m} }

// Sessions exposes the session half of m.
func (m *Memory) Sessions() *MemorySessions { return &MemorySessions{m} }

// Records exposes the profile table of m.
func (m *Memory) Records() *MemoryRecords { return &MemoryRecords{m} }

type MemoryUsers struct{ m *Memory }

func (s *MemoryUsers) Create(ctx context.Context, u *UserRow) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, taken := m.byEmail[email]; taken {
		return ErrDuplicate
	}
	now := m.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	m.byEmail[email] = u.ID

	p := entity.Profile{ID: u.ID, Email: u.Email, CreatedAt: now, UpdatedAt: now}
	if name, ok := u.Metadata()["full_name"].(string); ok && name != "" {
		p.FullName = &name
	}
	m.profiles[u.ID] = p
	return nil
}

func (s *MemoryUsers) GetByEmail(ctx context.Context, email string) (*UserRow, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (s *MemoryUsers) GetByID(ctx context.Context, id string) (*UserRow, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUsers) TouchSignIn(ctx context.Context, id string) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := m.now().UTC()
	u.LastSignInAt = &now
	u.UpdatedAt = now
	m.users[id] = u
	return nil
}

type MemorySessions struct{ m *Memory }

func (s *MemorySessions) Save(ctx context.Context, rec SessionRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = rec
	return nil
}

// Get returns nil, nil for unknown or expired records.
func (s *MemorySessions) Get(ctx context.Context, id string) (*SessionRecord, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok || !m.now().Before(rec.ExpiresAt) {
		return nil, nil
	}
	return &rec, nil
}

// Rotate swaps the session's refresh token while holding the store lock.
func (s *MemorySessions) Rotate(ctx context.Context, req RotateRequest) (*SessionRecord, RotateOutcome, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[req.ID]
	if !ok || !m.now().Before(cur.ExpiresAt) {
		return nil, RotateMissing, nil
	}
	next, outcome := cur.rotate(req)
	switch outcome {
	case RotateReused:
		delete(m.sessions, req.ID)
		return nil, outcome, nil
	case RotateRotated:
		m.sessions[req.ID] = next
	}
	return &next, outcome, nil
}

func (s *MemorySessions) Delete(ctx context.Context, id string) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type MemoryRecords struct{ m *Memory }

func (s *MemoryRecords) Get(ctx context.Context, table, key string, dest any) error {
	out, err := profileDest(table, dest)
	if err != nil {
		return err
	}
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[key]
	if !ok {
		return errors.Wrapf(identity.ErrNotFound, "%s %s", table, key)
	}
	*out = p
	return nil
}

func (s *MemoryRecords) Update(ctx context.Context, table, key string, fields map[string]any, dest any) error {
	if err := checkUpdate(table, fields); err != nil {
		return err
	}
	out, err := profileDest(table, dest)
	if err != nil {
		return err
	}
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[key]
	if !ok {
		return errors.Wrapf(identity.ErrNotFound, "%s %s", table, key)
	}
	if v, ok := fields["full_name"]; ok {
		p.FullName = optionalString(v)
	}
	if v, ok := fields["avatar_url"]; ok {
		p.AvatarURL = optionalString(v)
	}
	p.UpdatedAt = m.now().UTC()
	m.profiles[key] = p
	*out = p
	return nil
}

func profileDest(table string, dest any) (*entity.Profile, error) {
	if table != entity.ProfilesTable {
		return nil, checkUpdate(table, nil)
	}
	out, ok := dest.(*entity.Profile)
	if !ok {
		return nil, errors.Newf("memory records: cannot decode %s into %T", table, dest)
	}
	return out, nil
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
