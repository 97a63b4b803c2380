// ABOUTME: Package documentation for the collaborator bus
// ABOUTME: Explains source aggregation, sender routing and error observation

// Package bus decouples the courtbot engine from its external collaborators:
// case-data retrieval, outbound message delivery, and error observation.
//
// # Construction
//
// A Bus is built explicitly and handed to every component that needs it; the
// engine has no process-wide instance:
//
//	b := bus.New(logger)
//	b.RegisterSource(oscnSource)
//	b.RegisterSender(twilioClient)
//	b.OnLookupError(func(caseNumber string, errs []*courterr.Error) { ... })
//
// # Lookup aggregation
//
// LookupParties and LookupPartyEvents fan a query out to every registered
// source and aggregate successes and failures independently. One source
// failing never discards what the others found; each failure becomes a
// courterr.Error of kind api-retrieval-error carrying the case number and the
// original cause. Party names are trimmed and deduplicated preserving first
// occurrence, which keeps 1-indexed ordinal answers stable between turns.
//
// Sources that report party names as comma-separated strings are wrapped in a
// CSVSource so the parsing never leaks into the core data model.
//
// # Outbound dispatch
//
// SendNonReply routes sweep-originated and follow-up messages to senders by
// communication type. A missing sender resolves the send rather than failing
// it; interactive replies instead travel back on the inbound transport's own
// request/response cycle and never pass through here.
package bus
