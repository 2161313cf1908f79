// Package policy implements the policy-bundle half of the Mesh's Policy &
// Manifest Store (PMS): signed, versioned policy bundles applied
// atomically to a zone, with compare-and-swap ingestion on
// (zone_id, policy_seq) (spec.md §4.3), grounded on
// original_source/flywheel_connectors/crates/fcp-conformance/tests/policy_bundle_schema.rs's
// wire shape.
package policy

import (
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/fcpmesh/mesh/codec"
	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/telemetry"
	"github.com/fcpmesh/mesh/zone"
)

// PolicyObjectRef names one policy object covered by a bundle.
type PolicyObjectRef struct {
	ObjectID   string `json:"object_id"`
	SchemaID   string `json:"schema_id"`
	ObjectHash string `json:"object_hash"`
}

// Signature is the bundle's detached signature block.
type Signature struct {
	Algorithm    string   `json:"algorithm"`
	KeyID        string   `json:"key_id"`
	Signature    string   `json:"signature"`
	SignedFields []string `json:"signed_fields"`
}

// Budget names a rate/usage ceiling a bundle imposes on one pool, returned
// in the resolved Snapshot (spec.md §4.3's "budgets"). ACE's rate limiter
// is configured with its own pool mapping and does not read it.
type Budget struct {
	Pool          string `json:"pool"`
	WindowSeconds int    `json:"window_seconds"`
	MaxRequests   int    `json:"max_requests"`
}

// ZoneRules is the resolved rule content a bundle governs beyond the
// opaque policy-object catalog: the zone's transport policy, its usage
// budgets, and the cross-zone/taint/role admission rules ACE's step 5
// applies (spec.md §4.3 resolve() contract, §4.4 step 5).
type ZoneRules struct {
	Transport zone.TransportPolicy `json:"transport"`
	Budgets   []Budget             `json:"budgets,omitempty"`

	// AllowedCrossZones lists source zone ids permitted to address this
	// zone across a boundary; ignored when AllowAnyCrossZone is set.
	AllowedCrossZones []string `json:"allowed_cross_zones,omitempty"`
	AllowAnyCrossZone bool     `json:"allow_any_cross_zone,omitempty"`

	// DeniedTaints lists principal taint labels this zone refuses outright.
	DeniedTaints []string `json:"denied_taints,omitempty"`

	// RequiredRoles, when non-empty, requires the principal to carry at
	// least one of the listed roles.
	RequiredRoles []string `json:"required_roles,omitempty"`
}

// Bundle is the wire shape of a PolicyBundle (spec.md §6): `format`,
// `schema_version`, `bundle_id`, `zone_id`, `policy_seq`, `hash_algo`,
// `bundle_hash`, `policies[]`, `rules`, and a detached `signature`.
type Bundle struct {
	Format        string            `json:"format"`
	SchemaVersion string            `json:"schema_version"`
	BundleID      string            `json:"bundle_id"`
	ZoneID        string            `json:"zone_id"`
	PolicySeq     uint64            `json:"policy_seq"`
	HashAlgo      string            `json:"hash_algo"`
	BundleHash    string            `json:"bundle_hash"`
	Policies      []PolicyObjectRef `json:"policies"`
	Rules         ZoneRules         `json:"rules"`
	Signature     Signature         `json:"signature"`
}

// hashedFields returns the byte parts covered by bundle_hash: every field
// except bundle_hash itself and the signature, matching spec.md §3.
func (b Bundle) hashedFields() [][]byte {
	parts := [][]byte{
		[]byte(b.Format), []byte(b.SchemaVersion), []byte(b.BundleID),
		[]byte(b.ZoneID), []byte(b.HashAlgo),
	}
	var seq [8]byte
	for i := 0; i < 8; i++ {
		seq[i] = byte(b.PolicySeq >> (8 * i))
	}
	parts = append(parts, seq[:])
	for _, p := range b.Policies {
		parts = append(parts, []byte(p.ObjectID), []byte(p.SchemaID), []byte(p.ObjectHash))
	}
	parts = append(parts, b.Rules.hashedFields()...)
	return parts
}

// hashedFields flattens r into the deterministic byte parts folded into a
// bundle's hash: every field in a fixed order, so two bundles with
// identical rule content always hash identically.
func (r ZoneRules) hashedFields() [][]byte {
	parts := [][]byte{
		boolByte(r.Transport.AllowLan), boolByte(r.Transport.AllowDerp), boolByte(r.Transport.AllowFunnel),
	}
	for _, b := range r.Budgets {
		parts = append(parts, []byte(b.Pool), []byte(strconv.Itoa(b.WindowSeconds)), []byte(strconv.Itoa(b.MaxRequests)))
	}
	for _, z := range r.AllowedCrossZones {
		parts = append(parts, []byte(z))
	}
	parts = append(parts, boolByte(r.AllowAnyCrossZone))
	for _, t := range r.DeniedTaints {
		parts = append(parts, []byte(t))
	}
	for _, role := range r.RequiredRoles {
		parts = append(parts, []byte(role))
	}
	return parts
}

func boolByte(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// computeBundleHash derives bundle_hash from every field but itself and
// the signature, rendered as "blake3-256:<hex>" to match the wire prefix
// the original implementation uses.
func computeBundleHash(b Bundle) string {
	digest := codec.KeyedDigest(b.hashedFields()...)
	return "blake3-256:" + hex.EncodeToString(digest[:])
}

// ComputeBundleHash exposes computeBundleHash to callers that need to
// stamp bundle_hash before signing a new bundle.
func ComputeBundleHash(b Bundle) string {
	return computeBundleHash(b)
}

// Verify checks bundle_hash and the Ed25519 signature over the hashed
// fields. It does not check policy_seq monotonicity; that is Store's job.
func Verify(b Bundle, signerKey crypto.PublicKey) error {
	if b.Format != "fcp-policy-bundle" {
		return newErr(ReasonPolicyInvalid, "unexpected bundle format "+b.Format)
	}
	if b.HashAlgo != "blake3-256" {
		return newErr(ReasonPolicyInvalid, "unsupported hash_algo "+b.HashAlgo)
	}
	if computeBundleHash(b) != b.BundleHash {
		return ErrHashMismatch
	}
	if b.Signature.Algorithm != "ed25519" {
		return newErr(ReasonUnauthenticated, "unsupported signature algorithm "+b.Signature.Algorithm)
	}
	sigBytes, err := hex.DecodeString(b.Signature.Signature)
	if err != nil || len(sigBytes) != 64 {
		return ErrUnauthenticated
	}
	var sig [64]byte
	copy(sig[:], sigBytes)
	digest := codec.KeyedDigest(b.hashedFields()...)
	if err := crypto.Verify(signerKey, digest[:], sig); err != nil {
		return ErrUnauthenticated
	}
	return nil
}

// Snapshot is the read-only view PMS.resolve() returns for a zone: the
// zone's transport policy, its usage budgets, and the cross-zone/taint/
// role rules ACE's step 5 applies (spec.md §4.3).
type Snapshot struct {
	TransportAllowLan    bool
	TransportAllowDerp   bool
	TransportAllowFunnel bool
	ActiveBundleID       string
	PolicySeq            uint64

	Budgets           []Budget
	AllowedCrossZones []string
	AllowAnyCrossZone bool
	DeniedTaints      []string
	RequiredRoles     []string
}

// Store holds the authoritative per-zone policy bundle catalog. Readers
// see a consistent snapshot for the duration of a request; writers take
// the lock only for the atomic compare-and-swap (spec.md §5).
type Store struct {
	mu      sync.RWMutex
	current map[ids.ZoneID]Bundle
	metrics *telemetry.Metrics
}

// NewStore constructs an empty policy store.
func NewStore() *Store {
	return &Store{current: make(map[ids.ZoneID]Bundle)}
}

// NewStoreWithMetrics constructs an empty policy store that reports every
// Ingest outcome through metrics.
func NewStoreWithMetrics(metrics *telemetry.Metrics) *Store {
	return &Store{current: make(map[ids.ZoneID]Bundle), metrics: metrics}
}

// Ingest verifies signerKey over bundle, checks policy_seq > current_seq
// for the zone, and stores it atomically. A non-monotonic policy_seq, a
// bad signature, or a bundle_hash mismatch leaves state unchanged.
func (s *Store) Ingest(zoneID ids.ZoneID, bundle Bundle, signerKey crypto.PublicKey) error {
	if err := Verify(bundle, signerKey); err != nil {
		s.observe(zoneID, "invalid")
		return err
	}

	s.mu.Lock()
	current, ok := s.current[zoneID]
	if ok && bundle.PolicySeq <= current.PolicySeq {
		s.mu.Unlock()
		s.observe(zoneID, "stale")
		return ErrStalePolicy
	}
	s.current[zoneID] = bundle
	s.mu.Unlock()
	s.observe(zoneID, "admitted")
	return nil
}

func (s *Store) observe(zoneID ids.ZoneID, outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePolicyRollout(zoneID.String(), outcome)
	}
}

// Resolve returns a read-only snapshot of zoneID's active policy. The
// second return value is false if no bundle has ever been ingested for
// zoneID.
func (s *Store) Resolve(zoneID ids.ZoneID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.current[zoneID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		TransportAllowLan:    b.Rules.Transport.AllowLan,
		TransportAllowDerp:   b.Rules.Transport.AllowDerp,
		TransportAllowFunnel: b.Rules.Transport.AllowFunnel,
		ActiveBundleID:       b.BundleID,
		PolicySeq:            b.PolicySeq,
		Budgets:              b.Rules.Budgets,
		AllowedCrossZones:    b.Rules.AllowedCrossZones,
		AllowAnyCrossZone:    b.Rules.AllowAnyCrossZone,
		DeniedTaints:         b.Rules.DeniedTaints,
		RequiredRoles:        b.Rules.RequiredRoles,
	}, true
}

// CurrentSeq returns the current policy_seq for zoneID, or 0 if unset.
func (s *Store) CurrentSeq(zoneID ids.ZoneID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[zoneID].PolicySeq
}
