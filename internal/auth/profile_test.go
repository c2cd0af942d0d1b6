package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

func testProfile() entity.Profile {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return entity.Profile{
		ID:        testUser().ID,
		Email:     "a@b.com",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestGetProfile(t *testing.T) {
	records := newFakeRecords(testProfile())
	svc := NewService(&fakeProvider{}, records, nil, nil)
	sc := newTestScope()

	first := svc.GetProfile(sc, testUser().ID)
	second := svc.GetProfile(sc, testUser().ID)

	require.NotNil(t, first)
	assert.Equal(t, *first, *second)
	assert.Equal(t, "a@b.com", first.Email)
}

func TestGetProfileAbsence(t *testing.T) {
	t.Run("missing row", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, newFakeRecords(), nil, nil)
		assert.Nil(t, svc.GetProfile(newTestScope(), "nobody"))
	})
	t.Run("provider error", func(t *testing.T) {
		records := newFakeRecords(testProfile())
		records.getErr = identity.Reject(http.StatusForbidden, "42501", "permission denied for table profiles")
		svc := NewService(&fakeProvider{}, records, nil, nil)
		assert.Nil(t, svc.GetProfile(newTestScope(), testUser().ID))
	})
	t.Run("empty id", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, newFakeRecords(testProfile()), nil, nil)
		assert.Nil(t, svc.GetProfile(newTestScope(), ""))
	})
}

func TestUpdateProfileSendsOnlyMutableFields(t *testing.T) {
	records := newFakeRecords(testProfile())
	svc := NewService(&fakeProvider{}, records, nil, nil)
	name := "Ada Byron"

	res := svc.UpdateProfile(newTestScope(), testUser().ID, entity.ProfileUpdate{FullName: &name})

	got, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"full_name": "Ada Byron"}, records.lastFields)
	require.NotNil(t, got.FullName)
	assert.Equal(t, "Ada Byron", *got.FullName)
	assert.Equal(t, testProfile().ID, got.ID)
	assert.Equal(t, testProfile().Email, got.Email)
	assert.Equal(t, testProfile().CreatedAt, got.CreatedAt)
}

func TestUpdateProfileEmptyReadsBack(t *testing.T) {
	records := newFakeRecords(testProfile())
	svc := NewService(&fakeProvider{}, records, nil, nil)

	res := svc.UpdateProfile(newTestScope(), testUser().ID, entity.ProfileUpdate{})

	got, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, testProfile(), *got)
	assert.Zero(t, records.updateCalls)
}

func TestUpdateProfileFailures(t *testing.T) {
	name := "x"
	t.Run("provider error", func(t *testing.T) {
		records := newFakeRecords(testProfile())
		records.updateErr = identity.Reject(http.StatusBadRequest, "22001", "value too long for type character varying(100)")
		svc := NewService(&fakeProvider{}, records, nil, nil)

		res := svc.UpdateProfile(newTestScope(), testUser().ID, entity.ProfileUpdate{FullName: &name})

		msg, failed := res.Err()
		require.True(t, failed)
		assert.Equal(t, "value too long for type character varying(100)", msg)
	})
	t.Run("fault", func(t *testing.T) {
		records := newFakeRecords(testProfile())
		records.updateErr = errors.New("connection reset")
		svc := NewService(&fakeProvider{}, records, nil, nil)

		res := svc.UpdateProfile(newTestScope(), testUser().ID, entity.ProfileUpdate{FullName: &name})

		msg, _ := res.Err()
		assert.Equal(t, "Failed to update profile", msg)
		assert.Equal(t, KindFault, res.Kind())
	})
	t.Run("missing row", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, newFakeRecords(), nil, nil)

		res := svc.UpdateProfile(newTestScope(), "nobody", entity.ProfileUpdate{FullName: &name})

		msg, failed := res.Err()
		require.True(t, failed)
		assert.Equal(t, "Profile not found", msg)
	})
}
