package admission

import (
	"time"

	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/manifest"
)

// CapabilityToken is the claims a signed capability-token envelope
// carries (spec.md §3): a principal asserting the right to exercise
// capability within zone during a bounded validity window. Tokens are
// stateless; revocation is via a per-zone revocation head, checked
// separately by the caller before Evaluate is invoked.
type CapabilityToken struct {
	Principal  string
	Capability string
	Zone       ids.ZoneID
	IssuedAt   time.Time
	NotBefore  time.Time
	NotAfter   time.Time
	Nonce      string
	// Approval is the approval tier the token's issuer attested to; it
	// must meet or exceed the operation's required tier.
	Approval manifest.ApprovalTier
}

// VerifyEnvelope re-verifies env's signature against the issuing zone's
// trust root and, on success, returns env's payload unmodified. Callers
// are expected to have already decoded the payload into a
// CapabilityToken via the codec.
func VerifyEnvelope(env crypto.Envelope, trustRoot crypto.PublicKey) ([]byte, error) {
	if err := env.Verify(trustRoot); err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// withinValidity reports whether now falls within [NotBefore, NotAfter].
func (t CapabilityToken) withinValidity(now time.Time) bool {
	return !now.Before(t.NotBefore) && !now.After(t.NotAfter)
}
