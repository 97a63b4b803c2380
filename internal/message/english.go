// ABOUTME: English message templates and answer predicates
// ABOUTME: Court URL and bot title come from configuration, not the environment

package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/civicbots/courtbot/internal/registration"
)

// English composes courtbot messages in English.
type English struct {
	// PublicURL is where contacts can verify case details themselves.
	PublicURL string
	// Title signs outgoing reminders, e.g. "OKC Courtbot".
	Title string
}

var _ Composer = English{}

func (e English) Reminder(reg *registration.Registration, evt registration.CaseEvent) string {
	return fmt.Sprintf("Reminder: It appears you have an event on %s\ndescription: %s. "+
		"You should confirm your case date and time by going to %s. - %s",
		evt.Date, evt.Description, e.PublicURL, e.Title)
}

func (e English) AskReminder(contact string, reg *registration.Registration, party registration.Party) string {
	return fmt.Sprintf("We found a case for %s. Would you like a courtesy reminder "+
		"the day before any events? (reply YES or NO)", party.Name)
}

func (e English) AskParty(contact string, reg *registration.Registration, parties []registration.Party) string {
	var b strings.Builder
	b.WriteString("We found a case for multiple parties, please specify which party " +
		"you are by entering the number shown:\n\n")
	for i, p := range parties {
		fmt.Fprintf(&b, "%d - %s\n", i+1, p.Name)
	}
	return b.String()
}

func (e English) NoCase(caseNumber string) string {
	return fmt.Sprintf("We were unable to find any case for %s. "+
		"We'll keep checking for up to a week; you can also verify the case number at %s.",
		caseNumber, e.PublicURL)
}

func (e English) Expired(reg *registration.Registration) string {
	return fmt.Sprintf("We haven't been able to find your court case. "+
		"You can go to %s for more information. - %s", e.PublicURL, e.Title)
}

func (e English) Confirm(contact string, reg *registration.Registration) string {
	return "We'll attempt to send you a reminder for any upcoming events related to the case."
}

func (e English) Cancel(contact string, reg *registration.Registration) string {
	return "Registration cancelled."
}

func (e English) Remote(user, caseNumber, name string) string {
	return fmt.Sprintf("You've been signed up for court case reminders by %s for court case %s "+
		"for party %s.\nWould you like a courtesy reminder the day before any events? (reply YES or NO)",
		user, caseNumber, name)
}

func (e English) BadMessage(text, lastMessage string) string {
	return fmt.Sprintf("I'm sorry, we couldn't understand %q.\n\n%s", text, lastMessage)
}

func (e English) IsYes(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "YES")
}

func (e English) IsNo(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "NO")
}

// Ordinal accepts any positive integer; range checking against the party
// list belongs to the driver.
func (e English) Ordinal(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
