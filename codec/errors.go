package codec

import "errors"

// Reason is a stable, switchable reason code for codec failures (spec.md
// §4.1's decode error list).
type Reason string

const (
	ReasonSchemaMismatch Reason = "SchemaMismatch"
	ReasonNonCanonical   Reason = "NonCanonical"
	ReasonDuplicateKey   Reason = "DuplicateKey"
	ReasonUnknownField   Reason = "UnknownField"
	ReasonLengthOverflow Reason = "LengthOverflow"
)

// Error is the codec package's single error type; every encode/decode
// failure carries one of the Reason constants so callers can switch on it
// instead of matching message text.
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

func newErr(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

// Is supports errors.Is(err, codec.ErrNonCanonical) style sentinels by
// reason code rather than identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Reason == e.Reason
	}
	return false
}

// Sentinel values usable with errors.Is to match on reason only.
var (
	ErrSchemaMismatch = &Error{Reason: ReasonSchemaMismatch}
	ErrNonCanonical   = &Error{Reason: ReasonNonCanonical}
	ErrDuplicateKey   = &Error{Reason: ReasonDuplicateKey}
	ErrUnknownField   = &Error{Reason: ReasonUnknownField}
	ErrLengthOverflow = &Error{Reason: ReasonLengthOverflow}
)
