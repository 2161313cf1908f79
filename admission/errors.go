// Package admission implements the Mesh's Admission & Capability Engine
// (ACE): the gate for every inter-zone or cross-connector operation
// (spec.md §4.4). It verifies capability tokens, evaluates zone policy,
// enforces rate/usage budgets, and records a capability-usage event for
// every outcome.
package admission

// ReasonCode is one of spec.md §4.4's named, auditable admission reason
// codes. Every deny or deny_retry_after decision carries exactly one; an
// admit decision carries none.
type ReasonCode string

const (
	ReasonTokenExpired             ReasonCode = "TokenExpired"
	ReasonTokenReplayed            ReasonCode = "TokenReplayed"
	ReasonSignatureInvalid         ReasonCode = "SignatureInvalid"
	ReasonCapabilityForbidden      ReasonCode = "CapabilityForbidden"
	ReasonApprovalMissing          ReasonCode = "ApprovalMissing"
	ReasonPolicyDeny               ReasonCode = "PolicyDeny"
	ReasonRateLimited              ReasonCode = "RateLimited"
	ReasonBudgetExceeded           ReasonCode = "BudgetExceeded"
	ReasonTransportLanForbidden    ReasonCode = "TransportLanForbidden"
	ReasonTransportDerpForbidden   ReasonCode = "TransportDerpForbidden"
	ReasonTransportFunnelForbidden ReasonCode = "TransportFunnelForbidden"
	ReasonZoneIntegrityViolation   ReasonCode = "ZoneIntegrityViolation"
	ReasonSchemaMismatch           ReasonCode = "SchemaMismatch"

	// ReasonExclusiveHeld is a supplemented reason code (not in the
	// distilled spec's non-exhaustive list, but present in its scenario
	// 5 and in the original source's lease semantics): a concurrent
	// attempt to claim an exclusive resource another admitted request
	// currently holds.
	ReasonExclusiveHeld ReasonCode = "ExclusiveHeld"
)
