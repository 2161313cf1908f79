package policy_test

import (
	"context"
	"testing"

	"github.com/fcpmesh/mesh/crypto"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/policy"
	"github.com/stretchr/testify/require"
)

type fakeDistributor struct {
	acksFor map[ids.NodeID]int // root -> number of attempts before it acks
	seen    map[ids.NodeID]int
}

func (f *fakeDistributor) Distribute(_ context.Context, root ids.NodeID, _ policy.Bundle) (bool, error) {
	f.seen[root]++
	return f.seen[root] >= f.acksFor[root], nil
}

func TestRolloutReachesActiveOnQuorum(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	b := signedBundle(t, key, "z:work", 1)

	roots := []ids.NodeID{ids.NewNodeID("root-a"), ids.NewNodeID("root-b"), ids.NewNodeID("root-c")}
	dist := &fakeDistributor{
		acksFor: map[ids.NodeID]int{roots[0]: 1, roots[1]: 1, roots[2]: 100},
		seen:    map[ids.NodeID]int{},
	}
	rollout := policy.NewRollout(dist, roots, 3)

	state, err := rollout.Run(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, policy.RolloutActive, state)
}

func TestRolloutStaysDistributedWhenQuorumUnreachable(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	b := signedBundle(t, key, "z:work", 1)

	roots := []ids.NodeID{ids.NewNodeID("root-a"), ids.NewNodeID("root-b"), ids.NewNodeID("root-c")}
	dist := &fakeDistributor{
		acksFor: map[ids.NodeID]int{roots[0]: 1, roots[1]: 100, roots[2]: 100},
		seen:    map[ids.NodeID]int{},
	}
	rollout := policy.NewRollout(dist, roots, 2)

	state, err := rollout.Run(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, policy.RolloutDistributed, state)
}

func TestDefaultMaxRolloutAttemptsAppliedWhenUnset(t *testing.T) {
	t.Parallel()

	rollout := policy.NewRollout(&fakeDistributor{acksFor: map[ids.NodeID]int{}, seen: map[ids.NodeID]int{}}, []ids.NodeID{ids.NewNodeID("root-a")}, 0)
	require.Equal(t, policy.DefaultMaxRolloutAttempts, rollout.MaxAttempts)
}
