package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrAlreadyProcessed marks a duplicate dispatcher invocation: the
	// trigger's processed flag already flipped. Callers treat it as success.
	ErrAlreadyProcessed = errors.New("trigger already processed")

	// ErrAlreadyResolved marks a second resolution attempt on a proposal
	// that is already accepted or dismissed.
	ErrAlreadyResolved = errors.New("proposal already resolved")
)
