// Package crypto implements the Mesh's Crypto Primitives (CP): Ed25519
// identity signatures, X25519 ephemeral key agreement, an AEAD for session
// frames with a keyed MAC over an explicit AAD, a hybrid public-key scheme
// for sealing policy bundles, and the signed-envelope format used by
// capability tokens.
//
// No algorithm agility beyond the explicit suite tag carried in the
// envelope's protected header: every primitive is fixed, matching spec.md
// §4.2.
package crypto

import "errors"

// Reason is a stable reason code for crypto failures.
type Reason string

const (
	ReasonInvalidKeyLength   Reason = "InvalidKeyLength"
	ReasonSignatureInvalid   Reason = "SignatureInvalid"
	ReasonDecryptionFailed   Reason = "DecryptionFailed"
	ReasonNonceReused        Reason = "NonceReused"
	ReasonReplayDetected     Reason = "ReplayDetected"
	ReasonEnvelopeMalformed  Reason = "EnvelopeMalformed"
	ReasonUnsupportedAlg     Reason = "UnsupportedAlgorithm"
)

// Error is the crypto package's single error type. Decryption failures
// always carry ReasonDecryptionFailed with no further detail, per spec.md
// §4.2's "decryption failure reveals only a single opaque error".
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
	ErrInvalidKeyLength  = &Error{Reason: ReasonInvalidKeyLength}
	ErrSignatureInvalid  = &Error{Reason: ReasonSignatureInvalid}
	ErrDecryptionFailed  = &Error{Reason: ReasonDecryptionFailed}
	ErrNonceReused       = &Error{Reason: ReasonNonceReused}
	ErrReplayDetected    = &Error{Reason: ReasonReplayDetected}
	ErrEnvelopeMalformed = &Error{Reason: ReasonEnvelopeMalformed}
	ErrUnsupportedAlg    = &Error{Reason: ReasonUnsupportedAlg}
)
