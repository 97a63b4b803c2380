// ABOUTME: Tests for the conversation driver's turn logic and state transitions
// ABOUTME: Uses the in-memory store and a recording replier to assert each exchange

package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/registration"
	"github.com/civicbots/courtbot/internal/store"
)

type fixedLookup map[string][]registration.Party

func (l fixedLookup) CaseParties(_ context.Context, caseNumber string) []registration.Party {
	return l[caseNumber]
}

type recordingReplier struct {
	replies []string
	err     error
	hook    func()
}

func (r *recordingReplier) Reply(_ context.Context, msg string) error {
	if r.hook != nil {
		r.hook()
	}
	if r.err != nil {
		return r.err
	}
	r.replies = append(r.replies, msg)
	return nil
}

func (r *recordingReplier) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.replies)
	return r.replies[len(r.replies)-1]
}

func testComposer() message.Composer {
	return message.English{PublicURL: "https://court.example.gov", Title: "Test Courtbot"}
}

func newTestDriver(regs RegistrationStore, lookup PartyLookup, replier Replier) *Driver {
	return NewDriver("sms", regs, lookup, testComposer(), replier,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func onlyRegistration(t *testing.T, s *store.MemoryStore, contact string) *registration.Registration {
	t.Helper()
	regs, err := s.GetRegistrationsByContact(context.Background(), contact, "sms")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	return regs[0]
}

func TestParseNewCaseSingleParty(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedReminder, reg.State)
	assert.Equal(t, "SMITH, JOHN", reg.Name)
	assert.Contains(t, replier.last(t), "We found a case for SMITH, JOHN")
	assert.Contains(t, replier.last(t), "YES or NO")
}

func TestParseNewCaseMultipleParties(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}, {Name: "DOE, JANE"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedParty, reg.State)
	assert.Empty(t, reg.Name)
	assert.Contains(t, replier.last(t), "1 - SMITH, JOHN")
	assert.Contains(t, replier.last(t), "2 - DOE, JANE")
}

func TestParseNewCaseNoParties(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	d := newTestDriver(s, fixedLookup{}, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-0000-00", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateUnbound, reg.State)
	assert.Contains(t, replier.last(t), "unable to find any case for CF-0000-00")
}

func TestChoosePartyByOrdinal(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}, {Name: "DOE, JANE"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "2", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedReminder, reg.State)
	assert.Equal(t, "DOE, JANE", reg.Name)
	assert.Contains(t, replier.last(t), "We found a case for DOE, JANE")
}

func TestChoosePartyBySubstring(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}, {Name: "DOE, JANE"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "doe", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedReminder, reg.State)
	assert.Equal(t, "DOE, JANE", reg.Name)
}

func TestChoosePartySubstringOverridesOrdinal(t *testing.T) {
	// "2" is both an ordinal (second party) and a substring of the first
	// party's name. The substring match runs last and wins.
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CM-2016-7": {{Name: "2 CHAINZ"}, {Name: "BOB"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CM-2016-7", "+15550001111"))
	require.NoError(t, d.Parse(context.Background(), "2", "+15550001111"))

	reg := onlyRegistration(t, s, "+15550001111")
	assert.Equal(t, "2 CHAINZ", reg.Name)
}

func TestChoosePartyOrdinalOutOfRange(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}, {Name: "DOE, JANE"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "9", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedParty, reg.State, "out-of-range pick must not advance")
	assert.Contains(t, replier.last(t), "couldn't understand")
	assert.Contains(t, replier.last(t), "1 - SMITH, JOHN", "re-prompt repeats the party list")
}

func TestChoosePartyGibberishReprompts(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}, {Name: "DOE, JANE"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "purple monkey", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedParty, reg.State)
	assert.Contains(t, replier.last(t), "couldn't understand")
}

func TestFinalQuestionYes(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "yes", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateReminding, reg.State)
	assert.Contains(t, replier.last(t), "attempt to send you a reminder")
}

func TestFinalQuestionNo(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "NO", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateUnsubscribed, reg.State)
	assert.Contains(t, replier.last(t), "Registration cancelled")
}

func TestFinalQuestionGibberishReprompts(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, replier)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "maybe?", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedReminder, reg.State)
	assert.Contains(t, replier.last(t), "couldn't understand")
	assert.Contains(t, replier.last(t), "We found a case for SMITH, JOHN")
}

func TestFinalQuestionDetectsConcurrentTransition(t *testing.T) {
	// A second answer racing the first finds the registration already moved
	// out of ASKED_REMINDER. The compare-and-set update surfaces the race
	// instead of silently rewriting the state.
	s := store.NewMemoryStore()
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}

	setup := newTestDriver(s, lookup, &recordingReplier{})
	require.NoError(t, setup.Parse(context.Background(), "CF-2016-42", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	replier := &recordingReplier{}
	replier.hook = func() {
		// Simulate the racing turn winning while this reply is in flight.
		err := s.UpdateRegistrationState(context.Background(), reg.ID,
			registration.StateAskedReminder, registration.StateUnsubscribed)
		require.NoError(t, err)
		replier.hook = nil
	}
	d := newTestDriver(s, lookup, replier)

	err := d.Parse(context.Background(), "YES", "+15551234567")
	require.ErrorIs(t, err, store.ErrStaleRegistration)

	after, getErr := s.GetRegistrationByID(context.Background(), reg.ID)
	require.NoError(t, getErr)
	assert.Equal(t, registration.StateUnsubscribed, after.State, "the first transition stands")
}

func TestParsePrefersOldestPendingRegistration(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{}
	lookup := fixedLookup{
		"CF-2016-1": {{Name: "SMITH, JOHN"}},
		"CF-2016-2": {{Name: "DOE, JANE"}},
	}
	d := newTestDriver(s, lookup, replier)

	// Finish one conversation so a REMINDING registration exists, then
	// start a second one.
	require.NoError(t, d.Parse(context.Background(), "CF-2016-1", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "YES", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "CF-2016-2", "+15551234567"))
	require.NoError(t, d.Parse(context.Background(), "YES", "+15551234567"))

	regs, err := s.GetRegistrationsByContact(context.Background(), "+15551234567", "sms")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	for _, reg := range regs {
		assert.Equal(t, registration.StateReminding, reg.State)
	}
}

func TestParseReplyFailureLeavesStateUntouched(t *testing.T) {
	s := store.NewMemoryStore()
	replier := &recordingReplier{err: errors.New("carrier rejected")}
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, replier)

	err := d.Parse(context.Background(), "CF-2016-42", "+15551234567")
	require.Error(t, err)

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateUnbound, reg.State,
		"state advances only after the question is delivered")
}

func TestParseDoneHookRuns(t *testing.T) {
	s := store.NewMemoryStore()
	lookup := fixedLookup{}
	called := 0
	d := NewDriver("sms", s, lookup, testComposer(), &recordingReplier{},
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithDoneHook(func() { called++ }))

	require.NoError(t, d.Parse(context.Background(), "CF-0000-00", "+15551234567"))
	assert.Equal(t, 1, called)
}

func TestParseNilReplierIsSilent(t *testing.T) {
	s := store.NewMemoryStore()
	lookup := fixedLookup{"CF-2016-42": {{Name: "SMITH, JOHN"}}}
	d := newTestDriver(s, lookup, nil)

	require.NoError(t, d.Parse(context.Background(), "CF-2016-42", "+15551234567"))

	reg := onlyRegistration(t, s, "+15551234567")
	assert.Equal(t, registration.StateAskedReminder, reg.State)
}
