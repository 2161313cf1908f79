package policy_test

import (
	"encoding/hex"
	"testing"

	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/policy"
	"github.com/fcpmesh/mesh/telemetry"
	"github.com/fcpmesh/mesh/zone"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func signedBundle(t *testing.T, key crypto.SigningKey, zoneID string, seq uint64) policy.Bundle {
	t.Helper()
	b := policy.Bundle{
		Format:        "fcp-policy-bundle",
		SchemaVersion: "1.0",
		BundleID:      "bundle-" + zoneID,
		ZoneID:        zoneID,
		PolicySeq:     seq,
		HashAlgo:      "blake3-256",
		Policies: []policy.PolicyObjectRef{
			{ObjectID: "obj-001", SchemaID: "fcp.core:ZonePolicy@1.0", ObjectHash: "blake3-256:" + hex.EncodeToString(make([]byte, 32))},
		},
	}
	// Compute bundle_hash and signature the same way Verify checks them,
	// by round-tripping through an unsigned bundle first.
	hashed := policy.ComputeBundleHash(b)
	b.BundleHash = hashed
	digest, err := hex.DecodeString(hashed[len("blake3-256:"):])
	require.NoError(t, err)
	var digestArr [32]byte
	copy(digestArr[:], digest)
	sig := key.Sign(digestArr[:])
	b.Signature = policy.Signature{
		Algorithm:    "ed25519",
		KeyID:        "key-001",
		Signature:    hex.EncodeToString(sig[:]),
		SignedFields: []string{"bundle_id", "zone_id", "policy_seq", "bundle_hash"},
	}
	return b
}

func TestPolicyRolloutThenStaleReject(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	store := policy.NewStore()
	zone := ids.MustZoneID("z:work")

	b4 := signedBundle(t, key, "z:work", 4)
	require.NoError(t, store.Ingest(zone, b4, key.PublicKey()))
	require.EqualValues(t, 4, store.CurrentSeq(zone))

	b5 := signedBundle(t, key, "z:work", 5)
	require.NoError(t, store.Ingest(zone, b5, key.PublicKey()))
	require.EqualValues(t, 5, store.CurrentSeq(zone))

	// Re-ingest the same policy_seq: must be rejected, state unchanged.
	err = store.Ingest(zone, b5, key.PublicKey())
	require.ErrorIs(t, err, policy.ErrStalePolicy)
	require.EqualValues(t, 5, store.CurrentSeq(zone))
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	b := signedBundle(t, key, "z:work", 1)
	b.BundleHash = "blake3-256:" + hex.EncodeToString(make([]byte, 32))

	err = policy.Verify(b, key.PublicKey())
	require.ErrorIs(t, err, policy.ErrHashMismatch)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	other, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	b := signedBundle(t, key, "z:work", 1)

	err = policy.Verify(b, other.PublicKey())
	require.ErrorIs(t, err, policy.ErrUnauthenticated)
}

func TestResolveReturnsFalseForUnknownZone(t *testing.T) {
	t.Parallel()

	store := policy.NewStore()
	_, ok := store.Resolve(ids.MustZoneID("z:unseen"))
	require.False(t, ok)
}

func TestResolvePopulatesTransportBudgetsAndRules(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	store := policy.NewStore()
	zoneID := ids.MustZoneID("z:work")

	b := policy.Bundle{
		Format:        "fcp-policy-bundle",
		SchemaVersion: "1.0",
		BundleID:      "bundle-z:work",
		ZoneID:        "z:work",
		PolicySeq:     1,
		HashAlgo:      "blake3-256",
		Rules: policy.ZoneRules{
			Transport:         zone.TransportPolicy{AllowLan: true, AllowDerp: true},
			Budgets:           []policy.Budget{{Pool: "twitter_api", WindowSeconds: 60, MaxRequests: 100}},
			AllowedCrossZones: []string{"z:partner"},
			DeniedTaints:      []string{"quarantined"},
			RequiredRoles:     []string{"operator"},
		},
	}
	b = policy.SignBundle(b, "key-001", key)
	require.NoError(t, store.Ingest(zoneID, b, key.PublicKey()))

	snap, ok := store.Resolve(zoneID)
	require.True(t, ok)
	require.True(t, snap.TransportAllowLan)
	require.True(t, snap.TransportAllowDerp)
	require.False(t, snap.TransportAllowFunnel)
	require.Equal(t, []policy.Budget{{Pool: "twitter_api", WindowSeconds: 60, MaxRequests: 100}}, snap.Budgets)
	require.Equal(t, []string{"z:partner"}, snap.AllowedCrossZones)
	require.Equal(t, []string{"quarantined"}, snap.DeniedTaints)
	require.Equal(t, []string{"operator"}, snap.RequiredRoles)
}

func TestIngestRecordsPolicyRolloutMetric(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	store := policy.NewStoreWithMetrics(metrics)
	zoneID := ids.MustZoneID("z:work")

	b := signedBundle(t, key, "z:work", 1)
	require.NoError(t, store.Ingest(zoneID, b, key.PublicKey()))

	// One successful Ingest counts exactly one policy rollout.
	families, err := reg.Gather()
	require.NoError(t, err)
	var rollouts float64
	for _, mf := range families {
		if mf.GetName() != "mesh_policy_rollouts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			rollouts += m.GetCounter().GetValue()
		}
	}
	require.Equal(t, 1.0, rollouts)
}
