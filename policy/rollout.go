package policy

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/fcpmesh/mesh/codec"
	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
)

// RolloutState is one stage of a PolicyBundle's lifecycle (spec.md §3):
// proposed → signed → distributed → active (acknowledged by a quorum of
// zone roots).
type RolloutState string

const (
	RolloutProposed    RolloutState = "proposed"
	RolloutSigned      RolloutState = "signed"
	RolloutDistributed RolloutState = "distributed"
	RolloutActive      RolloutState = "active"
)

// DefaultMaxRolloutAttempts is the bounded ceiling on background
// policy-rollout retries (spec.md §9 open question 2: "the maximum-attempt
// ceiling for background policy rollout is not stated by the source;
// implementers must choose a bounded value and expose it as
// configuration").
const DefaultMaxRolloutAttempts = 5

// Distributor pushes a signed bundle to one zone root and reports whether
// it acknowledged.
type Distributor interface {
	Distribute(ctx context.Context, root ids.NodeID, bundle Bundle) (acked bool, err error)
}

// Rollout drives a signed bundle from Distributed to Active: fanning it
// out to every zone root and declaring it Active once a quorum (strict
// majority) acknowledges, retrying non-acked roots up to maxAttempts
// times per root.
type Rollout struct {
	Distributor Distributor
	MaxAttempts int
	QuorumRoots []ids.NodeID
}

// NewRollout constructs a Rollout with the given roots and attempt
// ceiling; a non-positive maxAttempts falls back to
// DefaultMaxRolloutAttempts.
func NewRollout(dist Distributor, roots []ids.NodeID, maxAttempts int) *Rollout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRolloutAttempts
	}
	return &Rollout{Distributor: dist, MaxAttempts: maxAttempts, QuorumRoots: roots}
}

// Run distributes bundle to every root, retrying each unacknowledged root
// up to MaxAttempts times, and returns RolloutActive once a strict
// majority of roots have acknowledged. It returns RolloutDistributed (not
// an error) if the attempt ceiling is reached without reaching quorum:
// the bundle remains distributed, eligible for a later rollout attempt.
func (r *Rollout) Run(ctx context.Context, bundle Bundle) (RolloutState, error) {
	if len(r.QuorumRoots) == 0 {
		return RolloutState(""), fmt.Errorf("policy: rollout requires at least one quorum root")
	}

	acked := make(map[ids.NodeID]bool, len(r.QuorumRoots))
	quorum := len(r.QuorumRoots)/2 + 1

	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		for _, root := range r.QuorumRoots {
			if acked[root] {
				continue
			}
			ok, err := r.Distributor.Distribute(ctx, root, bundle)
			if err != nil {
				continue
			}
			if ok {
				acked[root] = true
			}
		}
		if countAcked(acked) >= quorum {
			return RolloutActive, nil
		}
		if ctx.Err() != nil {
			return RolloutDistributed, ctx.Err()
		}
	}
	return RolloutDistributed, nil
}

func countAcked(acked map[ids.NodeID]bool) int {
	n := 0
	for _, v := range acked {
		if v {
			n++
		}
	}
	return n
}

// SignBundle computes bundle_hash over b's hashed fields and signs that
// digest with key, returning b with BundleHash and Signature populated
// (the proposed → signed transition).
func SignBundle(b Bundle, keyID string, key crypto.SigningKey) Bundle {
	b.BundleHash = computeBundleHash(b)
	digest := codec.KeyedDigest(b.hashedFields()...)
	sig := key.Sign(digest[:])
	b.Signature = Signature{
		Algorithm:    "ed25519",
		KeyID:        keyID,
		Signature:    hex.EncodeToString(sig[:]),
		SignedFields: []string{"format", "schema_version", "bundle_id", "zone_id", "policy_seq", "hash_algo", "policies", "rules"},
	}
	return b
}
