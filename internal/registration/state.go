// ABOUTME: Registration lifecycle states and the transition validity table
// ABOUTME: States progress UNBOUND -> ASKED_PARTY -> ASKED_REMINDER -> REMINDING, with UNSUBSCRIBED terminal

package registration

import "fmt"

// State is the position of a registration in the sign-up conversation.
type State int

const (
	// StateUnbound means the case number has not been matched to any party yet.
	StateUnbound State = 0

	// StateAskedParty means the contact was asked which of several parties they are.
	StateAskedParty State = 1

	// StateAskedReminder means the contact was asked whether they want reminders.
	StateAskedReminder State = 2

	// StateReminding means the contact opted in and receives due-event reminders.
	StateReminding State = 3

	// StateUnsubscribed means the contact opted out or the registration expired.
	StateUnsubscribed State = 4
)

// String returns the canonical lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateAskedParty:
		return "asked-party"
	case StateAskedReminder:
		return "asked-reminder"
	case StateReminding:
		return "reminding"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s >= StateUnbound && s <= StateUnsubscribed
}

// Pending reports whether a registration in this state is waiting for the
// contact to answer a question we already sent. Pending registrations gate
// new conversations for the same contact.
func (s State) Pending() bool {
	return s == StateAskedParty || s == StateAskedReminder
}

// Terminal reports whether the interactive flow is finished for this state.
// REMINDING is terminal for onboarding but is still visited repeatedly by the
// reminder sweep.
func (s State) Terminal() bool {
	return s == StateReminding || s == StateUnsubscribed
}

// transitions lists the legal state changes. Staying in place (re-prompts)
// is not a transition and is always allowed.
var transitions = map[State][]State{
	StateUnbound:       {StateAskedParty, StateAskedReminder, StateUnsubscribed},
	StateAskedParty:    {StateAskedReminder, StateUnsubscribed},
	StateAskedReminder: {StateReminding, StateUnsubscribed},
	StateReminding:     {StateUnsubscribed},
	StateUnsubscribed:  {},
}

// CanTransition reports whether moving a registration from one state to
// another follows an edge of the lifecycle.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
