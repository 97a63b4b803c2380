// ABOUTME: Adapter for case-data APIs that report party names as comma-separated strings
// ABOUTME: Keeps CSV parsing out of the core so the engine only ever sees Party values

package bus

import (
	"context"
	"strings"

	"github.com/civicbots/courtbot/internal/registration"
)

// PartyNamesFunc fetches the raw party payload for a case: either a single
// name or a comma-separated list, as some court APIs return.
type PartyNamesFunc func(ctx context.Context, caseNumber string) (string, error)

// PartyEventsFunc fetches scheduled events for one party of a case.
type PartyEventsFunc func(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error)

// CSVSource wraps a CSV-speaking lookup into a CaseSource. Names are split on
// commas and trimmed here; empty segments are dropped so the aggregator only
// sees well-formed parties from this source.
type CSVSource struct {
	api    string
	names  PartyNamesFunc
	events PartyEventsFunc
}

// NewCSVSource builds the adapter. events may be nil for sources that only
// know parties.
func NewCSVSource(api string, names PartyNamesFunc, events PartyEventsFunc) *CSVSource {
	return &CSVSource{api: api, names: names, events: events}
}

func (s *CSVSource) API() string { return s.api }

func (s *CSVSource) Parties(ctx context.Context, caseNumber string) ([]registration.Party, error) {
	raw, err := s.names(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	return SplitPartyNames(raw), nil
}

func (s *CSVSource) PartyEvents(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events(ctx, caseNumber, partyName)
}

// SplitPartyNames turns a comma-separated name payload into parties,
// trimming whitespace and dropping empty segments.
func SplitPartyNames(raw string) []registration.Party {
	var parties []registration.Party
	for _, segment := range strings.Split(raw, ",") {
		name := strings.TrimSpace(segment)
		if name == "" {
			continue
		}
		parties = append(parties, registration.Party{Name: name})
	}
	return parties
}
