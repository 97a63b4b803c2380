// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers registration CRUD, CAS state updates and sent-message dedupe

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicbots/courtbot/internal/registration"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "courtbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_CreateAndGetRegistration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	reg := &registration.Registration{
		Contact:           "+15005550006",
		CommunicationType: "sms",
		CaseNumber:        "CF-2016-77",
		State:             registration.StateUnbound,
	}

	id, err := s.CreateRegistration(ctx, reg)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetRegistrationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "+15005550006", got.Contact)
	assert.Equal(t, "sms", got.CommunicationType)
	assert.Equal(t, "CF-2016-77", got.CaseNumber)
	assert.Equal(t, registration.StateUnbound, got.State)
	assert.Empty(t, got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_GetRegistrationByID_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRegistrationByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_GetRegistrationsByContact(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, r := range []*registration.Registration{
		{Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-1", State: registration.StateReminding},
		{Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-2", State: registration.StateAskedParty},
		{Contact: "+1555", CommunicationType: "console", CaseNumber: "CF-3", State: registration.StateAskedParty},
		{Contact: "+1666", CommunicationType: "sms", CaseNumber: "CF-4", State: registration.StateAskedParty},
	} {
		_, err := s.CreateRegistration(ctx, r)
		require.NoError(t, err)
	}

	regs, err := s.GetRegistrationsByContact(ctx, "+1555", "sms")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "CF-1", regs[0].CaseNumber)
	assert.Equal(t, "CF-2", regs[1].CaseNumber)
}

func TestSQLiteStore_GetRegistrationsByState(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, r := range []*registration.Registration{
		{Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-1", State: registration.StateReminding},
		{Contact: "+1666", CommunicationType: "sms", CaseNumber: "CF-2", State: registration.StateUnbound},
		{Contact: "+1777", CommunicationType: "sms", CaseNumber: "CF-3", State: registration.StateReminding},
	} {
		_, err := s.CreateRegistration(ctx, r)
		require.NoError(t, err)
	}

	regs, err := s.GetRegistrationsByState(ctx, registration.StateReminding)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	for _, r := range regs {
		assert.Equal(t, registration.StateReminding, r.State)
	}
}

func TestSQLiteStore_UpdateRegistrationName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRegistration(ctx, &registration.Registration{
		Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-1", State: registration.StateUnbound,
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRegistrationName(ctx, id, "SMITH, JOHN"))

	got, err := s.GetRegistrationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SMITH, JOHN", got.Name)

	assert.ErrorIs(t, s.UpdateRegistrationName(ctx, "missing", "x"), ErrNotFound)
}

func TestSQLiteStore_UpdateRegistrationState_CAS(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRegistration(ctx, &registration.Registration{
		Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-1", State: registration.StateAskedReminder,
	})
	require.NoError(t, err)

	// First transition wins.
	require.NoError(t, s.UpdateRegistrationState(ctx, id,
		registration.StateAskedReminder, registration.StateReminding))

	// A racing second transition from the old state loses.
	err = s.UpdateRegistrationState(ctx, id,
		registration.StateAskedReminder, registration.StateUnsubscribed)
	assert.ErrorIs(t, err, ErrStaleRegistration)

	got, err := s.GetRegistrationByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, registration.StateReminding, got.State)

	// Missing registrations are reported as such, not as stale.
	err = s.UpdateRegistrationState(ctx, "missing",
		registration.StateUnbound, registration.StateAskedParty)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SentMessageDedupe(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	key := SentMessage{
		Contact:           "+1555",
		CommunicationType: "sms",
		Name:              "SMITH, JOHN",
		EventDate:         "2026-09-03",
		EventDescription:  "preliminary hearing",
		CaseNumber:        "CF-2016-77",
	}

	_, err := s.GetSentMessage(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateSentMessage(ctx, key))

	found, err := s.GetSentMessage(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key.CaseNumber, found.CaseNumber)
	assert.False(t, found.CreatedAt.IsZero())

	assert.ErrorIs(t, s.CreateSentMessage(ctx, key), ErrDuplicateSentMessage)

	// A different event for the same registration is a different key.
	other := key
	other.EventDate = "2026-09-10"
	require.NoError(t, s.CreateSentMessage(ctx, other))
}

func TestSQLiteStore_TimestampsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	id, err := s.CreateRegistration(ctx, &registration.Registration{
		Contact: "+1555", CommunicationType: "sms", CaseNumber: "CF-1", State: registration.StateUnbound,
	})
	require.NoError(t, err)

	got, err := s.GetRegistrationByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.After(before))
	assert.True(t, got.UpdatedAt.After(before))
}
