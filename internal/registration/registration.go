// ABOUTME: Core domain types for courtbot registrations and case data
// ABOUTME: Defines Registration, Party and CaseEvent shared across the engine

package registration

import "time"

// Registration records one subscriber's interest in one court case. It is
// created UNBOUND when a contact sends an unrecognized case number and is
// mutated by the conversation driver and the batch sweeps as the sign-up
// progresses. Registrations are never hard-deleted; UNSUBSCRIBED is a
// soft-terminal state.
type Registration struct {
	ID                string
	Contact           string // phone number or console address
	CommunicationType string // transport tag that owns this registration, e.g. "sms", "console"
	CaseNumber        string
	Name              string // resolved party name, empty until disambiguated
	State             State
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Party is a named participant in a court case. Several parties may share a
// case number, which forces the disambiguation question.
type Party struct {
	Name string
}

// CaseEvent is a scheduled occurrence (hearing, filing) for a case party.
// Date stays a raw string here; case-data sources report wildly different
// formats and the reminder sweep owns the parsing.
type CaseEvent struct {
	Date        string
	Description string
}
