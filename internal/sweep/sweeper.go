// ABOUTME: Batch sweeps over registrations: due reminders and unbound case resolution
// ABOUTME: Bounded worker pool; one registration's failure never stops the sweep

package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicbots/courtbot/internal/dedupe"
	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/registration"
	"github.com/civicbots/courtbot/internal/store"
)

// The sent-key cache only needs to cover back-to-back sweep runs within one
// process; the sent-message table is the durable dedupe record.
const (
	sentCacheTTL     = 48 * time.Hour
	sentCacheMaxSize = 4096
)

// SweepStore is the persistence surface the sweeps need. store.SQLiteStore
// and store.MemoryStore both satisfy it.
type SweepStore interface {
	GetRegistrationsByState(ctx context.Context, state registration.State) ([]*registration.Registration, error)
	UpdateRegistrationName(ctx context.Context, id, name string) error
	UpdateRegistrationState(ctx context.Context, id string, from, to registration.State) error
	GetSentMessage(ctx context.Context, m store.SentMessage) (*store.SentMessage, error)
	CreateSentMessage(ctx context.Context, m store.SentMessage) error
}

// CaseLookup aggregates case data across the registered sources. bus.Bus
// satisfies it.
type CaseLookup interface {
	CaseParties(ctx context.Context, caseNumber string) []registration.Party
	CasePartyEvents(ctx context.Context, caseNumber, partyName string) []registration.CaseEvent
}

// Dispatcher sends unsolicited outbound messages. bus.Bus satisfies it.
type Dispatcher interface {
	SendNonReply(ctx context.Context, to, msg, communicationType string) error
}

// Options tune the sweeps. Zero values get sensible defaults from NewSweeper.
type Options struct {
	// ReminderDaysOut sends a reminder when an event's calendar-day offset
	// from today is in [0, ReminderDaysOut). Default 2: today's events and
	// tomorrow's, so the day-before reminder the sign-up promises goes out.
	ReminderDaysOut int

	// UnboundTTL is how long an unbound registration waits for its case to
	// appear before it expires. Default 7 days.
	UnboundTTL time.Duration

	// Location interprets zoneless event dates and day boundaries.
	// Default time.Local.
	Location *time.Location

	// Workers bounds concurrent per-registration processing. Default 4.
	Workers int
}

func (o *Options) applyDefaults() {
	if o.ReminderDaysOut <= 0 {
		o.ReminderDaysOut = 2
	}
	if o.UnboundTTL <= 0 {
		o.UnboundTTL = 7 * 24 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}

// Sweeper runs the two periodic jobs: delivering due reminders to opted-in
// registrations and retrying case lookup for registrations whose case number
// matched nothing at sign-up time.
type Sweeper struct {
	store    SweepStore
	lookup   CaseLookup
	sender   Dispatcher
	composer message.Composer
	seen     *dedupe.Cache
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// SweeperOption adjusts Sweeper construction.
type SweeperOption func(*Sweeper)

// WithClock overrides the sweep's time source for tests.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a sweeper. composer may be nil, which degrades every
// outbound message to the unconfigured sentinel.
func NewSweeper(st SweepStore, lookup CaseLookup, sender Dispatcher,
	composer message.Composer, opts Options, logger *slog.Logger, sopts ...SweeperOption) *Sweeper {
	opts.applyDefaults()
	if composer == nil {
		composer = message.Unconfigured{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		store:    st,
		lookup:   lookup,
		sender:   sender,
		composer: composer,
		seen:     dedupe.New(sentCacheTTL, sentCacheMaxSize),
		opts:     opts,
		logger:   logger.With("component", "sweep"),
		now:      time.Now,
	}
	for _, opt := range sopts {
		opt(s)
	}
	return s
}

// Close releases the sweeper's in-process dedupe cache.
func (s *Sweeper) Close() { s.seen.Close() }

// SendDueReminders delivers one reminder per upcoming event to every
// REMINDING registration. Each event is sent at most once ever; the durable
// sent-message record enforces that across processes and restarts.
func (s *Sweeper) SendDueReminders(ctx context.Context) error {
	regs, err := s.store.GetRegistrationsByState(ctx, registration.StateReminding)
	if err != nil {
		return fmt.Errorf("listing reminding registrations: %w", err)
	}
	s.logger.Info("reminder sweep starting", "registrations", len(regs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, reg := range regs {
		reg := reg
		g.Go(func() error {
			if err := s.remindOne(gctx, reg); err != nil {
				s.logger.Error("reminder delivery failed",
					"registration_id", reg.ID, "case_number", reg.CaseNumber, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) remindOne(ctx context.Context, reg *registration.Registration) error {
	events := s.lookup.CasePartyEvents(ctx, reg.CaseNumber, reg.Name)
	var firstErr error
	for _, evt := range events {
		when, err := parseEventDate(evt.Date, s.opts.Location)
		if err != nil {
			s.logger.Warn("skipping event with unparseable date",
				"case_number", reg.CaseNumber, "date", evt.Date)
			continue
		}
		days := daysUntil(s.now(), when, s.opts.Location)
		if days < 0 || days >= s.opts.ReminderDaysOut {
			continue
		}
		if err := s.sendReminder(ctx, reg, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Sweeper) sendReminder(ctx context.Context, reg *registration.Registration, evt registration.CaseEvent) error {
	record := store.SentMessage{
		Contact:           reg.Contact,
		CommunicationType: reg.CommunicationType,
		Name:              reg.Name,
		EventDate:         evt.Date,
		EventDescription:  evt.Description,
		CaseNumber:        reg.CaseNumber,
	}
	key := sentCacheKey(record)
	if s.seen.Check(key) {
		return nil
	}
	if _, err := s.store.GetSentMessage(ctx, record); err == nil {
		s.seen.Mark(key)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking sent message: %w", err)
	}

	msg := s.composer.Reminder(reg, evt)
	if err := s.sender.SendNonReply(ctx, reg.Contact, msg, reg.CommunicationType); err != nil {
		return err
	}
	if err := s.store.CreateSentMessage(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateSentMessage) {
			// Another sweep won the race after we looked; the contact may
			// get one extra text but the record stays consistent.
			s.seen.Mark(key)
			return nil
		}
		return fmt.Errorf("recording sent message: %w", err)
	}
	s.seen.Mark(key)
	s.logger.Info("reminder sent",
		"registration_id", reg.ID, "case_number", reg.CaseNumber, "event_date", evt.Date)
	return nil
}

func sentCacheKey(m store.SentMessage) string {
	return m.Contact + "\x00" + m.CommunicationType + "\x00" + m.Name + "\x00" +
		m.EventDate + "\x00" + m.EventDescription + "\x00" + m.CaseNumber
}

// CheckMissingCases retries case lookup for UNBOUND registrations. A
// registration whose case has appeared resumes the sign-up conversation;
// one that stays unmatched past the TTL is expired with a final notice.
func (s *Sweeper) CheckMissingCases(ctx context.Context) error {
	regs, err := s.store.GetRegistrationsByState(ctx, registration.StateUnbound)
	if err != nil {
		return fmt.Errorf("listing unbound registrations: %w", err)
	}
	s.logger.Info("missing-case sweep starting", "registrations", len(regs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, reg := range regs {
		reg := reg
		g.Go(func() error {
			if err := s.resolveOne(gctx, reg); err != nil {
				s.logger.Error("unbound registration check failed",
					"registration_id", reg.ID, "case_number", reg.CaseNumber, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) resolveOne(ctx context.Context, reg *registration.Registration) error {
	parties := s.lookup.CaseParties(ctx, reg.CaseNumber)
	switch {
	case len(parties) > 1:
		msg := s.composer.AskParty(reg.Contact, reg, parties)
		if err := s.sender.SendNonReply(ctx, reg.Contact, msg, reg.CommunicationType); err != nil {
			return err
		}
		return s.store.UpdateRegistrationState(ctx, reg.ID,
			registration.StateUnbound, registration.StateAskedParty)

	case len(parties) == 1:
		if err := s.store.UpdateRegistrationName(ctx, reg.ID, parties[0].Name); err != nil {
			return fmt.Errorf("resolving party name: %w", err)
		}
		msg := s.composer.AskReminder(reg.Contact, reg, parties[0])
		if err := s.sender.SendNonReply(ctx, reg.Contact, msg, reg.CommunicationType); err != nil {
			return err
		}
		return s.store.UpdateRegistrationState(ctx, reg.ID,
			registration.StateUnbound, registration.StateAskedReminder)

	default:
		if s.now().Sub(reg.CreatedAt) < s.opts.UnboundTTL {
			return nil
		}
		s.logger.Info("expiring unbound registration",
			"registration_id", reg.ID, "case_number", reg.CaseNumber)
		msg := s.composer.Expired(reg)
		if err := s.sender.SendNonReply(ctx, reg.Contact, msg, reg.CommunicationType); err != nil {
			return err
		}
		return s.store.UpdateRegistrationState(ctx, reg.ID,
			registration.StateUnbound, registration.StateUnsubscribed)
	}
}
