// ABOUTME: Explicitly constructed hub connecting the engine to its pluggable collaborators
// ABOUTME: Registers case-data sources, outbound senders and lookup-error observers

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civicbots/courtbot/internal/courterr"
	"github.com/civicbots/courtbot/internal/registration"
)

// defaultLookupTimeout bounds a single case-data source call so a hung
// collaborator cannot stall a conversation turn indefinitely.
const defaultLookupTimeout = 10 * time.Second

// CaseSource retrieves parties and scheduled events for a case from one
// backing API. Implementations live outside the engine; the bus aggregates
// across all of them.
type CaseSource interface {
	// API names the source for error attribution.
	API() string

	Parties(ctx context.Context, caseNumber string) ([]registration.Party, error)
	PartyEvents(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error)
}

// Sender delivers fire-and-forget outbound messages for one communication
// type. Interactive replies do not go through Senders; they ride the
// transport's own request/response cycle.
type Sender interface {
	CommunicationType() string
	Send(ctx context.Context, to, msg string) error
}

// LookupErrorObserver receives the domain errors collected during one
// aggregated lookup. Observers run synchronously after aggregation.
type LookupErrorObserver func(caseNumber string, errs []*courterr.Error)

// Bus is the process hub the conversation driver and the sweeps talk to.
// Construct one with New and pass it to every component; there is no global
// instance.
type Bus struct {
	mu        sync.RWMutex
	sources   []CaseSource
	senders   []Sender
	observers []LookupErrorObserver

	lookupTimeout time.Duration
	notifyErrors  bool
	logger        *slog.Logger
}

// Option adjusts Bus construction.
type Option func(*Bus)

// WithLookupTimeout overrides the per-source lookup deadline. Zero disables it.
func WithLookupTimeout(d time.Duration) Option {
	return func(b *Bus) { b.lookupTimeout = d }
}

// WithoutErrorNotify disables observer notification after aggregation.
// Collected errors are still returned by the Lookup* methods.
func WithoutErrorNotify() Option {
	return func(b *Bus) { b.notifyErrors = false }
}

// New creates an empty Bus. Pass nil logger for the default.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		lookupTimeout: defaultLookupTimeout,
		notifyErrors:  true,
		logger:        logger.With("component", "bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterSource adds a case-data source. Aggregation preserves registration
// order for deterministic party numbering.
func (b *Bus) RegisterSource(src CaseSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, src)
	b.logger.Debug("case source registered", "api", src.API())
}

// RegisterSender adds an outbound sender for its communication type.
func (b *Bus) RegisterSender(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.senders = append(b.senders, s)
	b.logger.Debug("sender registered", "communication_type", s.CommunicationType())
}

// OnLookupError registers an observer for aggregated lookup errors.
func (b *Bus) OnLookupError(obs LookupErrorObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, obs)
}

// CommunicationTypes lists the transport tags of all registered senders.
func (b *Bus) CommunicationTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]string, 0, len(b.senders))
	for _, s := range b.senders {
		types = append(types, s.CommunicationType())
	}
	return types
}

func (b *Bus) snapshotSources() []CaseSource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]CaseSource, len(b.sources))
	copy(out, b.sources)
	return out
}

func (b *Bus) notify(caseNumber string, errs []*courterr.Error) {
	if !b.notifyErrors || len(errs) == 0 {
		return
	}
	b.mu.RLock()
	observers := make([]LookupErrorObserver, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, obs := range observers {
		obs(caseNumber, errs)
	}
}

// sourceCtx applies the per-lookup deadline.
func (b *Bus) sourceCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.lookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.lookupTimeout)
}

// SourceFuncs adapts plain functions into a CaseSource. Handy for tests and
// for integrators whose source is a couple of closures.
type SourceFuncs struct {
	Name      string
	PartiesFn func(ctx context.Context, caseNumber string) ([]registration.Party, error)
	EventsFn  func(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error)
}

func (s SourceFuncs) API() string { return s.Name }

func (s SourceFuncs) Parties(ctx context.Context, caseNumber string) ([]registration.Party, error) {
	if s.PartiesFn == nil {
		return nil, nil
	}
	return s.PartiesFn(ctx, caseNumber)
}

func (s SourceFuncs) PartyEvents(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error) {
	if s.EventsFn == nil {
		return nil, nil
	}
	return s.EventsFn(ctx, caseNumber, partyName)
}
