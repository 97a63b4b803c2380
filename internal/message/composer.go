// ABOUTME: Composer capability interface for outgoing conversation text
// ABOUTME: Swappable implementations are chosen at startup, not at emission time

package message

import "github.com/civicbots/courtbot/internal/registration"

// NoMessage is the sentinel returned when no composer was configured for a
// message. It surfaces loudly in transcripts, which is the point.
const NoMessage = "NO MESSAGE PROVIDED"

// Composer produces every piece of outgoing text plus the input predicates
// the conversation driver needs. Implementations own the language; the
// engine owns the flow.
type Composer interface {
	// Reminder is the sweep-originated text for one due event.
	Reminder(reg *registration.Registration, evt registration.CaseEvent) string

	// AskReminder asks whether the contact wants reminders for the party.
	AskReminder(contact string, reg *registration.Registration, party registration.Party) string

	// AskParty asks which of several parties the contact is, 1-indexed.
	AskParty(contact string, reg *registration.Registration, parties []registration.Party) string

	// NoCase says the case number matched nothing.
	NoCase(caseNumber string) string

	// Expired says the unbound registration aged out before a case appeared.
	Expired(reg *registration.Registration) string

	// Confirm acknowledges an opt-in.
	Confirm(contact string, reg *registration.Registration) string

	// Cancel acknowledges an opt-out.
	Cancel(contact string, reg *registration.Registration) string

	// Remote tells a contact somebody else signed them up.
	Remote(user, caseNumber, name string) string

	// BadMessage re-presents the last question after uninterpretable input.
	BadMessage(text, lastMessage string) string

	// IsYes and IsNo interpret answers to the final question.
	IsYes(text string) bool
	IsNo(text string) bool

	// Ordinal parses a 1-indexed party selection from the text.
	Ordinal(text string) (int, bool)
}

// Unconfigured is the default composer: every message is the NoMessage
// sentinel and no input is ever interpreted. It exists so a partially wired
// engine fails visibly instead of panicking.
type Unconfigured struct{}

var _ Composer = Unconfigured{}

func (Unconfigured) Reminder(*registration.Registration, registration.CaseEvent) string {
	return NoMessage
}

func (Unconfigured) AskReminder(string, *registration.Registration, registration.Party) string {
	return NoMessage
}

func (Unconfigured) AskParty(string, *registration.Registration, []registration.Party) string {
	return NoMessage
}

func (Unconfigured) NoCase(string) string { return NoMessage }

func (Unconfigured) Expired(*registration.Registration) string { return NoMessage }

func (Unconfigured) Confirm(string, *registration.Registration) string { return NoMessage }

func (Unconfigured) Cancel(string, *registration.Registration) string { return NoMessage }

func (Unconfigured) Remote(string, string, string) string { return NoMessage }

func (Unconfigured) BadMessage(string, string) string { return NoMessage }

func (Unconfigured) IsYes(string) bool { return false }

func (Unconfigured) IsNo(string) bool { return false }

func (Unconfigured) Ordinal(string) (int, bool) { return 0, false }
