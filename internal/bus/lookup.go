// ABOUTME: Aggregated case-party and case-event lookups across all registered sources
// ABOUTME: Partial failures are collected as domain errors and never discard sibling successes

package bus

import (
	"context"
	"strings"
	"sync"

	"github.com/civicbots/courtbot/internal/courterr"
	"github.com/civicbots/courtbot/internal/registration"
)

// PartyResult is the outcome of one aggregated party lookup. Parties holds
// every well-formed, deduplicated name any source returned; Errors holds one
// entry per failed source or malformed party.
type PartyResult struct {
	Parties []registration.Party
	Errors  []*courterr.Error
}

// EventResult is the outcome of one aggregated case-event lookup.
type EventResult struct {
	Events []registration.CaseEvent
	Errors []*courterr.Error
}

// LookupParties queries every registered source for the case's parties and
// aggregates the results. A failing source contributes an error, not an
// abort: the lookup succeeds with partial data whenever any source succeeds.
// Party names are trimmed and deduplicated preserving first occurrence, with
// source registration order kept stable so ordinal answers stay meaningful
// between turns. Registered observers are notified of the collected errors.
func (b *Bus) LookupParties(ctx context.Context, caseNumber string) PartyResult {
	sources := b.snapshotSources()

	type slot struct {
		parties []registration.Party
		err     error
	}
	slots := make([]slot, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src CaseSource) {
			defer wg.Done()
			sctx, cancel := b.sourceCtx(ctx)
			defer cancel()
			slots[i].parties, slots[i].err = src.Parties(sctx, caseNumber)
		}(i, src)
	}
	wg.Wait()

	var res PartyResult
	seen := make(map[string]struct{})
	for i, src := range sources {
		if slots[i].err != nil {
			b.logger.Warn("party lookup failed",
				"api", src.API(), "case_number", caseNumber, "error", slots[i].err)
			res.Errors = append(res.Errors,
				courterr.Wrap(courterr.KindAPIRetrieval, src.API(), caseNumber, slots[i].err))
			continue
		}
		for _, p := range slots[i].parties {
			name := strings.TrimSpace(p.Name)
			if name == "" {
				res.Errors = append(res.Errors,
					courterr.New(courterr.KindAPIRetrieval, src.API(), caseNumber, "empty party name"))
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			res.Parties = append(res.Parties, registration.Party{Name: name})
		}
	}

	b.notify(caseNumber, res.Errors)
	return res
}

// CaseParties is the convenience form of LookupParties for callers that only
// need the party list; errors still reach the registered observers.
func (b *Bus) CaseParties(ctx context.Context, caseNumber string) []registration.Party {
	return b.LookupParties(ctx, caseNumber).Parties
}

// LookupPartyEvents queries every registered source for the party's scheduled
// events. Same aggregation contract as LookupParties, minus name parsing:
// events are opaque and simply concatenated in source order.
func (b *Bus) LookupPartyEvents(ctx context.Context, caseNumber, partyName string) EventResult {
	sources := b.snapshotSources()

	type slot struct {
		events []registration.CaseEvent
		err    error
	}
	slots := make([]slot, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src CaseSource) {
			defer wg.Done()
			sctx, cancel := b.sourceCtx(ctx)
			defer cancel()
			slots[i].events, slots[i].err = src.PartyEvents(sctx, caseNumber, partyName)
		}(i, src)
	}
	wg.Wait()

	var res EventResult
	for i, src := range sources {
		if slots[i].err != nil {
			b.logger.Warn("party event lookup failed",
				"api", src.API(), "case_number", caseNumber, "party", partyName, "error", slots[i].err)
			res.Errors = append(res.Errors,
				courterr.Wrap(courterr.KindAPIRetrieval, src.API(), caseNumber, slots[i].err))
			continue
		}
		res.Events = append(res.Events, slots[i].events...)
	}

	b.notify(caseNumber, res.Errors)
	return res
}

// CasePartyEvents is the convenience form of LookupPartyEvents.
func (b *Bus) CasePartyEvents(ctx context.Context, caseNumber, partyName string) []registration.CaseEvent {
	return b.LookupPartyEvents(ctx, caseNumber, partyName).Events
}
