package policy

import "errors"

// Reason is a stable reason code for policy-store failures (spec.md §4.3).
type Reason string

const (
	ReasonPolicyInvalid   Reason = "PolicyInvalid"
	ReasonHashMismatch    Reason = "HashMismatch"
	ReasonStalePolicy     Reason = "StalePolicy"
	ReasonUnauthenticated Reason = "Unauthenticated"
)

// Error is the policy package's single error type.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Reason == e.Reason
	}
	return false
}

func newErr(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

var (
	ErrHashMismatch    = &Error{Reason: ReasonHashMismatch}
	ErrStalePolicy     = &Error{Reason: ReasonStalePolicy}
	ErrUnauthenticated = &Error{Reason: ReasonUnauthenticated}
)
