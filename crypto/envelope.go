package crypto

// AlgEdDSA is the COSE algorithm identifier for EdDSA (RFC 8152),
// carried in the envelope's protected header exactly as spec.md §6
// requires.
const AlgEdDSA int8 = -8

// ProtectedHeader declares the signature algorithm used over an envelope.
// It is part of the signed range; unprotected metadata never is.
type ProtectedHeader struct {
	Alg int8
}

// bytes renders the protected header in a fixed, deterministic layout:
// a 4-byte magic tag followed by the single algorithm byte. This is the
// exact byte range the signature covers.
func (h ProtectedHeader) bytes() []byte {
	return []byte{'F', 'C', 'P', '1', byte(h.Alg)}
}

// Envelope is the three-part signed structure carrying capability tokens
// (spec.md §6): a protected header, a payload, and a signature computed
// over protected_header||payload exactly. UnprotectedMetadata travels
// alongside the envelope but is never part of the signed range.
type Envelope struct {
	Protected           ProtectedHeader
	Payload             []byte
	Signature           [64]byte
	UnprotectedMetadata map[string]string
}

// Seal signs payload under key, producing a complete Envelope with
// ProtectedHeader{Alg: AlgEdDSA}.
func Seal(key SigningKey, payload []byte, unprotected map[string]string) Envelope {
	header := ProtectedHeader{Alg: AlgEdDSA}
	signed := append(append([]byte{}, header.bytes()...), payload...)
	sig := key.Sign(signed)
	return Envelope{
		Protected:           header,
		Payload:             payload,
		Signature:           sig,
		UnprotectedMetadata: unprotected,
	}
}

// Verify checks e's signature against pub. UnprotectedMetadata is not
// covered by the signature and is ignored here, by design.
func (e Envelope) Verify(pub PublicKey) error {
	if e.Protected.Alg != AlgEdDSA {
		return ErrUnsupportedAlg
	}
	signed := append(append([]byte{}, e.Protected.bytes()...), e.Payload...)
	return Verify(pub, signed, e.Signature)
}
