package admission

import (
	"net"
	"time"

	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/manifest"
	"github.com/fcpmesh/mesh/policy"
)

// Outcome is the coarse admission verdict.
type Outcome string

const (
	Admit          Outcome = "admit"
	Deny           Outcome = "deny"
	DenyRetryAfter Outcome = "deny_retry_after"
)

// Decision is ACE's single, auditable admission verdict for one request
// (spec.md §4.4).
type Decision struct {
	Outcome    Outcome
	Reason     ReasonCode // zero value on Admit
	RetryAfter time.Duration
}

// State is a step in the per-operation state machine (spec.md §4.4): a
// linear walk from Received to Admitted, or a single jump to Denied.
// Partial state never leaks into TSO.
type State string

const (
	StateReceived      State = "Received"
	StateVerified      State = "Verified"
	StateAuthorized    State = "Authorized"
	StateBudgetChecked State = "BudgetChecked"
	StateAdmitted      State = "Admitted"
	StateDenied        State = "Denied"
)

// NetworkContext carries the information ACE's step 7 network-constraint
// check needs when an operation's effect crosses the network boundary.
type NetworkContext struct {
	CrossesBoundary bool
	TargetHost      string
}

// Request is one inbound operation attempt.
type Request struct {
	Envelope          crypto.Envelope
	Token             CapabilityToken
	TrustRoot         crypto.PublicKey
	Now               time.Time
	Manifest          manifest.ConnectorManifest
	OperationName     string
	TargetZone        ids.ZoneID
	SourceZone        ids.ZoneID // zero value means same-zone; no cross-zone check applies
	Taints            []string   // principal taint labels, checked against the target zone's denylist
	Roles             []string   // principal roles, checked against the target zone's requirement
	Pool              string
	ExclusiveResource string // empty means this operation claims nothing exclusive
	Network           NetworkContext
}

// CapabilityUsageEvent is recorded for every admission attempt regardless
// of outcome (spec.md §4.4 step 8).
type CapabilityUsageEvent struct {
	Zone       ids.ZoneID
	Connector  string
	Capability string
	Principal  string
	Operation  string
	Outcome    Outcome // Admit or Deny; a DenyRetryAfter decision is recorded as Deny
	Reason     ReasonCode
	OccurredAt time.Time
	FinalState State
}

// Recorder receives a CapabilityUsageEvent after every Evaluate call.
type Recorder interface {
	RecordCapabilityUsage(CapabilityUsageEvent)
}

var approvalRank = map[manifest.ApprovalTier]int{
	manifest.ApprovalNone:        0,
	manifest.ApprovalInteractive: 1,
	manifest.ApprovalTwoParty:    2,
}

// Engine is ACE: the admission gate for every inter-zone or
// cross-connector operation.
type Engine struct {
	Replay   *ReplayCache
	Limiter  *RateLimiter
	Leases   *ExclusiveLeases
	Policy   *policy.Store
	Recorder Recorder
}

// NewEngine constructs an Engine from its collaborators. policyStore and
// recorder may both be nil: a nil policyStore skips step 5's bundle
// resolution entirely, and a nil recorder simply drops usage events.
func NewEngine(replay *ReplayCache, limiter *RateLimiter, leases *ExclusiveLeases, policyStore *policy.Store, recorder Recorder) *Engine {
	return &Engine{Replay: replay, Limiter: limiter, Leases: leases, Policy: policyStore, Recorder: recorder}
}

// Evaluate runs spec.md §4.4's eight-step admission algorithm and returns
// a single Decision, recording a CapabilityUsageEvent regardless of the
// outcome.
func (e *Engine) Evaluate(req Request) Decision {
	state := StateReceived
	decision := e.evaluateInner(req, &state)
	e.record(req, decision, state)
	return decision
}

func (e *Engine) evaluateInner(req Request, state *State) Decision {
	// Step 1: verify the capability-token envelope's signature.
	if err := req.Envelope.Verify(req.TrustRoot); err != nil {
		*state = StateDenied
		return deny(ReasonSignatureInvalid)
	}
	*state = StateVerified

	// Step 2: validity window and replay.
	if !req.Token.withinValidity(req.Now) {
		*state = StateDenied
		return deny(ReasonTokenExpired)
	}
	if e.Replay != nil && e.Replay.Observe(req.Token.Nonce, req.Now) {
		*state = StateDenied
		return deny(ReasonTokenReplayed)
	}

	// Step 3: capability present and not forbidden.
	if !req.Manifest.HasRequiredCapability(req.Token.Capability) {
		*state = StateDenied
		return deny(ReasonCapabilityForbidden)
	}

	// Step 4: approval tier.
	op, hasOp := req.Manifest.Operations[req.OperationName]
	required := manifest.ApprovalNone
	if hasOp {
		required = op.RequiresApproval
	}
	if approvalRank[req.Token.Approval] < approvalRank[required] {
		*state = StateDenied
		return deny(ReasonApprovalMissing)
	}
	*state = StateAuthorized

	// Step 5: resolve the active policy bundle for the target zone and
	// apply cross-zone, taint, and role rules, plus exclusive-resource
	// claims (spec.md §8 scenario 5).
	if e.Policy != nil {
		snapshot, ok := e.Policy.Resolve(req.TargetZone)
		if !ok {
			*state = StateDenied
			return deny(ReasonZoneIntegrityViolation)
		}
		if !req.SourceZone.IsZero() && req.SourceZone != req.TargetZone {
			if !snapshot.AllowAnyCrossZone && !containsString(snapshot.AllowedCrossZones, req.SourceZone.String()) {
				*state = StateDenied
				return deny(ReasonZoneIntegrityViolation)
			}
		}
		for _, taint := range req.Taints {
			if containsString(snapshot.DeniedTaints, taint) {
				*state = StateDenied
				return deny(ReasonPolicyDeny)
			}
		}
		if len(snapshot.RequiredRoles) > 0 && !anyMatch(snapshot.RequiredRoles, req.Roles) {
			*state = StateDenied
			return deny(ReasonPolicyDeny)
		}
	}

	if req.ExclusiveResource != "" && e.Leases != nil {
		if !e.Leases.TryAcquire(req.ExclusiveResource, req.Token.Principal) {
			*state = StateDenied
			return deny(ReasonExclusiveHeld)
		}
	}

	// Step 6: rate limits at operation/pool granularity.
	if e.Limiter != nil && req.Pool != "" {
		allowed, retryAfter := e.Limiter.Allow(req.Pool, req.Now)
		if !allowed {
			*state = StateDenied
			return denyRetryAfter(ReasonRateLimited, retryAfter)
		}
	}
	*state = StateBudgetChecked

	// Step 7: network constraints, only when the operation's effect
	// crosses the network boundary.
	if req.Network.CrossesBoundary && hasOp && op.NetworkConstraints != nil {
		if reason, violated := checkNetworkConstraints(*op.NetworkConstraints, req.Network.TargetHost); violated {
			*state = StateDenied
			return deny(reason)
		}
	}

	*state = StateAdmitted
	return Decision{Outcome: Admit}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// anyMatch reports whether any of held intersects required.
func anyMatch(required, held []string) bool {
	for _, r := range required {
		if containsString(held, r) {
			return true
		}
	}
	return false
}

func checkNetworkConstraints(nc manifest.NetworkConstraints, host string) (ReasonCode, bool) {
	for _, denied := range nc.DenyHosts {
		if denied == host {
			return ReasonPolicyDeny, true
		}
	}
	if len(nc.AllowHosts) > 0 {
		allowed := false
		for _, h := range nc.AllowHosts {
			if h == host {
				allowed = true
				break
			}
		}
		if !allowed {
			return ReasonPolicyDeny, true
		}
	}
	ip := net.ParseIP(host)
	if ip != nil {
		if nc.DenyIPLiterals {
			return ReasonPolicyDeny, true
		}
		if nc.DenyLocalhost && ip.IsLoopback() {
			return ReasonPolicyDeny, true
		}
		if nc.DenyPrivateRanges && ip.IsPrivate() {
			return ReasonPolicyDeny, true
		}
	} else if nc.DenyLocalhost && (host == "localhost") {
		return ReasonPolicyDeny, true
	}
	return "", false
}

func deny(reason ReasonCode) Decision {
	return Decision{Outcome: Deny, Reason: reason}
}

func denyRetryAfter(reason ReasonCode, retryAfter time.Duration) Decision {
	return Decision{Outcome: DenyRetryAfter, Reason: reason, RetryAfter: retryAfter}
}

func (e *Engine) record(req Request, decision Decision, state State) {
	if e.Recorder == nil {
		return
	}
	// A retry-after denial is recorded as a plain deny; the retry delay
	// is carried only by the returned Decision.
	outcome := decision.Outcome
	if outcome == DenyRetryAfter {
		outcome = Deny
	}
	e.Recorder.RecordCapabilityUsage(CapabilityUsageEvent{
		Zone:       req.TargetZone,
		Connector:  req.Manifest.Connector.ID,
		Capability: req.Token.Capability,
		Principal:  req.Token.Principal,
		Operation:  req.OperationName,
		Outcome:    outcome,
		Reason:     decision.Reason,
		OccurredAt: req.Now,
		FinalState: state,
	})
}
