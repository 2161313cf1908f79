package manifest

import (
	"encoding/hex"
	"errors"
)

// Reason is a stable reason code for manifest validation failures.
type Reason string

const (
	ReasonPolicyInvalid Reason = "PolicyInvalid"
	ReasonHashMismatch  Reason = "HashMismatch"
)

// Error is the manifest package's single error type.
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

// ErrHashMismatch is returned when a manifest's declared interface_hash
// does not match the recomputed value.
var ErrHashMismatch = &Error{Reason: ReasonHashMismatch}

// mustHexDecode decodes s as hex, returning nil on failure so the caller's
// length check in ids.DigestFromBytes produces the validation error.
func mustHexDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
