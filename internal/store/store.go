// ABOUTME: Store interface and persistence types for courtbot registrations
// ABOUTME: Defines sentinel errors, the sent-message dedupe key and the Store contract

package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicbots/courtbot/internal/registration"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleRegistration is returned when a state update finds the registration
// no longer in the expected state. A second inbound message racing the first
// surfaces here instead of silently overwriting the transition.
var ErrStaleRegistration = errors.New("registration state changed concurrently")

// ErrDuplicateSentMessage is returned when a dedupe record already exists for
// the same reminder key.
var ErrDuplicateSentMessage = errors.New("sent message already recorded")

// SentMessage is the dedupe record written after a reminder goes out. All
// fields except CreatedAt form the key; a matching record means the reminder
// for that exact event was already delivered to that registration.
type SentMessage struct {
	Contact           string
	CommunicationType string
	Name              string
	EventDate         string
	EventDescription  string
	CaseNumber        string
	CreatedAt         time.Time
}

// Store persists registrations and sent-message dedupe records. Schema
// initialization happens once when the concrete store is constructed.
type Store interface {
	// CreateRegistration inserts a new registration and returns its assigned
	// id. Contact, communication type, case number and state must be set by
	// the caller; timestamps and id are filled in here.
	CreateRegistration(ctx context.Context, reg *registration.Registration) (string, error)

	GetRegistrationByID(ctx context.Context, id string) (*registration.Registration, error)

	// GetRegistrationsByContact lists a contact's registrations for one
	// communication type, oldest first.
	GetRegistrationsByContact(ctx context.Context, contact, communicationType string) ([]*registration.Registration, error)

	// GetRegistrationsByState lists every registration currently in the
	// given state, for the batch sweeps.
	GetRegistrationsByState(ctx context.Context, state registration.State) ([]*registration.Registration, error)

	UpdateRegistrationName(ctx context.Context, id, name string) error

	// UpdateRegistrationState moves a registration from one state to
	// another. The update is compare-and-set on the current state: if the
	// registration is no longer in from, ErrStaleRegistration is returned
	// and nothing changes.
	UpdateRegistrationState(ctx context.Context, id string, from, to registration.State) error

	// GetSentMessage looks up the dedupe record matching the key fields of m.
	// Returns ErrNotFound when the reminder has not been sent.
	GetSentMessage(ctx context.Context, m SentMessage) (*SentMessage, error)

	// CreateSentMessage records a delivered reminder. Returns
	// ErrDuplicateSentMessage if the key already exists.
	CreateSentMessage(ctx context.Context, m SentMessage) error

	// Close releases any resources held by the store.
	Close() error
}
