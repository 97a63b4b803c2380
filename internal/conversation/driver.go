// ABOUTME: Conversation state machine interpreting inbound texts against pending registrations
// ABOUTME: Each turn loads the active registration, computes the transition and emits one reply

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicbots/courtbot/internal/courterr"
	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/registration"
	"github.com/civicbots/courtbot/internal/store"
)

// RegistrationStore is the persistence surface the driver needs.
// store.SQLiteStore and store.MemoryStore both satisfy it.
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, reg *registration.Registration) (string, error)
	GetRegistrationByID(ctx context.Context, id string) (*registration.Registration, error)
	GetRegistrationsByContact(ctx context.Context, contact, communicationType string) ([]*registration.Registration, error)
	UpdateRegistrationName(ctx context.Context, id, name string) error
	UpdateRegistrationState(ctx context.Context, id string, from, to registration.State) error
}

// PartyLookup aggregates case parties across the registered case-data
// sources. bus.Bus satisfies it.
type PartyLookup interface {
	CaseParties(ctx context.Context, caseNumber string) []registration.Party
}

// Replier delivers the driver's reply on the transport the inbound message
// arrived on. Parse resolves only after delivery completes; a nil Replier
// means the transport declined to respond, which is not an error.
type Replier interface {
	Reply(ctx context.Context, msg string) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, msg string) error

func (f ReplierFunc) Reply(ctx context.Context, msg string) error { return f(ctx, msg) }

// Driver runs one communication type's registration conversations. It is
// cheap to construct; transports typically build one per inbound message
// with a Replier bound to that message's response cycle.
type Driver struct {
	communicationType string
	regs              RegistrationStore
	lookup            PartyLookup
	composer          message.Composer
	replier           Replier
	logger            *slog.Logger
	done              func()
}

// Option adjusts Driver construction.
type Option func(*Driver)

// WithDoneHook installs an observability hook invoked after every parsed
// turn, successful or not.
func WithDoneHook(fn func()) Option {
	return func(d *Driver) { d.done = fn }
}

// NewDriver creates a conversation driver bound to one communication type.
// composer may be nil, in which case replies carry the NoMessage sentinel.
func NewDriver(communicationType string, regs RegistrationStore, lookup PartyLookup,
	composer message.Composer, replier Replier, logger *slog.Logger, opts ...Option) *Driver {
	if composer == nil {
		composer = message.Unconfigured{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		communicationType: communicationType,
		regs:              regs,
		lookup:            lookup,
		composer:          composer,
		replier:           replier,
		logger:            logger.With("component", "conversation", "communication_type", communicationType),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Parse interprets one inbound text from a contact and advances their
// registration. With no pending registration the text is treated as a case
// number and a new conversation starts. Errors are logged and returned; the
// turn ends without a state change and the contact's retry of the same text
// is the recovery path.
func (d *Driver) Parse(ctx context.Context, text, from string) error {
	d.logger.Debug("parsing inbound text", "from", from)
	if d.done != nil {
		defer d.done()
	}

	active, err := d.fetchActive(ctx, from)
	if err != nil {
		d.logger.Error("fetching active registration failed", "from", from, "error", err)
		return err
	}

	switch {
	case active == nil:
		err = d.createNewConversation(ctx, text, from)
	case active.State == registration.StateAskedParty:
		err = d.chooseParty(ctx, active, text, from)
	case active.State == registration.StateAskedReminder:
		err = d.finalQuestion(ctx, active, text, from)
	default:
		// fetchActive only returns pending states; anything else is a bug.
		err = fmt.Errorf("registration %s in unexpected state %s", active.ID, active.State)
	}
	if err != nil {
		d.logger.Error("conversation turn failed", "from", from, "error", err)
		return err
	}
	return nil
}

// fetchActive returns the contact's first pending registration, or nil when
// every registration is REMINDING, UNBOUND or UNSUBSCRIBED.
func (d *Driver) fetchActive(ctx context.Context, from string) (*registration.Registration, error) {
	regs, err := d.regs.GetRegistrationsByContact(ctx, from, d.communicationType)
	if err != nil {
		return nil, fmt.Errorf("listing registrations for %s: %w", from, err)
	}
	for _, reg := range regs {
		if reg.State.Pending() {
			return reg, nil
		}
	}
	return nil, nil
}

// reply delivers the composed text on the inbound transport and waits for
// delivery to complete.
func (d *Driver) reply(ctx context.Context, msg string) error {
	if d.replier == nil {
		return nil
	}
	if err := d.replier.Reply(ctx, msg); err != nil {
		return courterr.Wrap(courterr.KindAPISend, d.communicationType, "", err)
	}
	return nil
}

// createNewConversation registers the text as a case number and asks the
// appropriate first question.
func (d *Driver) createNewConversation(ctx context.Context, text, from string) error {
	d.logger.Info("creating new registration", "case_number", text)

	reg := &registration.Registration{
		Contact:           from,
		CommunicationType: d.communicationType,
		CaseNumber:        text,
		State:             registration.StateUnbound,
	}
	id, err := d.regs.CreateRegistration(ctx, reg)
	if err != nil {
		return fmt.Errorf("creating registration: %w", err)
	}
	reg, err = d.regs.GetRegistrationByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reloading registration %s: %w", id, err)
	}

	parties := d.lookup.CaseParties(ctx, text)
	switch {
	case len(parties) > 1:
		d.logger.Info("multiple parties found", "case_number", text, "count", len(parties))
		if err := d.reply(ctx, d.composer.AskParty(from, reg, parties)); err != nil {
			return err
		}
		return d.regs.UpdateRegistrationState(ctx, id,
			registration.StateUnbound, registration.StateAskedParty)

	case len(parties) == 1:
		d.logger.Info("exactly one party found", "case_number", text, "party", parties[0].Name)
		if err := d.regs.UpdateRegistrationName(ctx, id, parties[0].Name); err != nil {
			return fmt.Errorf("resolving party name: %w", err)
		}
		if err := d.reply(ctx, d.composer.AskReminder(from, reg, parties[0])); err != nil {
			return err
		}
		return d.regs.UpdateRegistrationState(ctx, id,
			registration.StateUnbound, registration.StateAskedReminder)

	default:
		// Registration stays UNBOUND; the missing-case sweep keeps looking.
		return d.reply(ctx, d.composer.NoCase(text))
	}
}

// chooseParty resolves the disambiguation answer. Ordinal selection is tried
// first; a case-insensitive substring match runs after and overwrites the
// ordinal pick when both hit.
func (d *Driver) chooseParty(ctx context.Context, reg *registration.Registration, text, from string) error {
	parties := d.lookup.CaseParties(ctx, reg.CaseNumber)

	var matched *registration.Party
	if ord, ok := d.composer.Ordinal(text); ok {
		d.logger.Info("trying ordinal party choice", "ordinal", ord, "parties", len(parties))
		if ord >= 1 && ord <= len(parties) {
			matched = &parties[ord-1]
		} else {
			d.logger.Info("ordinal out of range", "ordinal", ord)
		}
	}

	if needle := strings.ToUpper(strings.TrimSpace(text)); needle != "" {
		for i := range parties {
			if strings.Contains(strings.ToUpper(parties[i].Name), needle) {
				matched = &parties[i]
				break
			}
		}
	}

	if matched == nil {
		d.logger.Info("no party matched", "case_number", reg.CaseNumber)
		return d.reply(ctx, d.composer.BadMessage(text, d.composer.AskParty(from, reg, parties)))
	}

	if err := d.regs.UpdateRegistrationName(ctx, reg.ID, matched.Name); err != nil {
		return fmt.Errorf("resolving party name: %w", err)
	}
	if err := d.reply(ctx, d.composer.AskReminder(from, reg, *matched)); err != nil {
		return err
	}
	return d.regs.UpdateRegistrationState(ctx, reg.ID,
		registration.StateAskedParty, registration.StateAskedReminder)
}

// finalQuestion interprets the answer to "do you want reminders".
func (d *Driver) finalQuestion(ctx context.Context, reg *registration.Registration, text, from string) error {
	switch {
	case d.composer.IsYes(text):
		if err := d.reply(ctx, d.composer.Confirm(from, reg)); err != nil {
			return err
		}
		err := d.regs.UpdateRegistrationState(ctx, reg.ID,
			registration.StateAskedReminder, registration.StateReminding)
		if errors.Is(err, store.ErrStaleRegistration) {
			d.logger.Warn("registration transitioned concurrently", "id", reg.ID)
		}
		return err

	case d.composer.IsNo(text):
		if err := d.reply(ctx, d.composer.Cancel(from, reg)); err != nil {
			return err
		}
		return d.regs.UpdateRegistrationState(ctx, reg.ID,
			registration.StateAskedReminder, registration.StateUnsubscribed)

	default:
		party := registration.Party{Name: reg.Name}
		return d.reply(ctx, d.composer.BadMessage(text, d.composer.AskReminder(from, reg, party)))
	}
}
