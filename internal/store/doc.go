// ABOUTME: Package documentation for courtbot persistence
// ABOUTME: Describes the Store contract, state CAS semantics and reminder dedupe

// Package store persists registrations and sent-message dedupe records.
//
// # Implementations
//
// Two implementations of the Store interface ship with the engine:
//
//   - SQLiteStore: production store backed by modernc.org/sqlite. Schema is
//     created on open and column migrations run automatically, which is the
//     engine's one-time migrate step.
//   - MemoryStore: map-backed store with identical semantics, used by tests
//     and the console harness.
//
// # Concurrency
//
// The conversation driver reads a registration, asks a question, and writes
// the new state when the answer arrives. Two messages from the same contact
// racing each other would silently lose one transition with a plain UPDATE,
// so UpdateRegistrationState is compare-and-set on the current state and
// returns ErrStaleRegistration when it loses the race. Callers treat that as
// the turn ending without a state change; the contact's retry resolves it.
//
// # Reminder dedupe
//
// A SentMessage row keyed by (contact, communication type, party name, event
// date, event description, case number) is written after each reminder send.
// The unique index makes the write race-safe: a second writer gets
// ErrDuplicateSentMessage instead of a second row, giving at-most-once
// reminder delivery per distinct event per registration.
package store
