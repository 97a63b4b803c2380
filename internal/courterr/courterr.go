// ABOUTME: Tagged domain errors wrapping failures surfaced by external collaborators
// ABOUTME: The engine never lets a foreign error shape cross into core logic unwrapped

package courterr

import (
	"fmt"
	"time"
)

// Kind classifies where in the engine a collaborator failure happened.
type Kind string

const (
	// KindAPIRetrieval marks a case-data lookup that failed or returned
	// malformed data.
	KindAPIRetrieval Kind = "api-retrieval-error"

	// KindAPISend marks a transport send that failed.
	KindAPISend Kind = "api-send-error"

	// KindGeneral marks everything else.
	KindGeneral Kind = "general"
)

// Error carries a classified collaborator failure with enough context to
// diagnose it later: which API, which case, when, and the original cause.
type Error struct {
	Kind       Kind
	Message    string
	CaseNumber string
	API        string
	Timestamp  time.Time
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.CaseNumber != "" {
		return fmt.Sprintf("%s (api=%s case=%s): %s", e.Kind, e.API, e.CaseNumber, msg)
	}
	return fmt.Sprintf("%s (api=%s): %s", e.Kind, e.API, msg)
}

// Unwrap exposes the original cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap classifies a collaborator error. If cause is already a courterr.Error
// it is returned unchanged so classification survives re-aggregation.
func Wrap(kind Kind, api, caseNumber string, cause error) *Error {
	if wrapped, ok := cause.(*Error); ok {
		return wrapped
	}
	return &Error{
		Kind:       kind,
		CaseNumber: caseNumber,
		API:        api,
		Timestamp:  time.Now().UTC(),
		Cause:      cause,
	}
}

// New builds a classified error without an underlying cause, for failures the
// engine detects itself (malformed payload entries and the like).
func New(kind Kind, api, caseNumber, message string) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		CaseNumber: caseNumber,
		API:        api,
		Timestamp:  time.Now().UTC(),
	}
}
